/*
ledger.go - Append-only movement journal

PURPOSE:
  The Journal records every change a command makes to a stock quantity or a
  customer counter. Ledgers keep current values on their records for O(1)
  reads; the journal explains how those values got there.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, movements cannot be modified
  3. BALANCED CORRECTIONS: an edit or delete is recorded as reversal
     movements referencing the same sale or ticket, followed by new apply
     movements for the edit

EXAMPLE FLOW (sale of 2 units edited to 1 unit):
  1. Record sale:  stock -2 (apply), purchases +1 (apply)
  2. Edit sale:    stock +2 (reversal), purchases -1 (reversal),
                   stock -1 (apply), purchases +1 (apply)

  Stock journal for the item: [-2, +2, -1] = -1 net

SEE ALSO:
  - store.go: Persistence interface for movements
  - shop/engine.go: Writes movements inside each command's transaction
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// MOVEMENT - One signed change to a quantity or counter
// =============================================================================

// MovementKind names which value changed.
type MovementKind string

const (
	MovementStock     MovementKind = "stock"     // inventory item quantity
	MovementPurchases MovementKind = "purchases" // customer purchase counter
	MovementServices  MovementKind = "services"  // customer service counter
)

// MovementType distinguishes original effects from their reversals.
type MovementType string

const (
	MovementApply    MovementType = "apply"
	MovementReversal MovementType = "reversal"
)

type Movement struct {
	ID          string
	Kind        MovementKind
	SubjectID   string // item id or customer id
	Delta       int
	Type        MovementType
	ReferenceID string // sale id or ticket id
	Reason      string
	Actor       string
	At          time.Time
}

// MovementFilter narrows a journal query. Zero fields match everything.
type MovementFilter struct {
	SubjectID   string
	ReferenceID string
	Kind        MovementKind
}

func (f MovementFilter) Match(m Movement) bool {
	if f.SubjectID != "" && f.SubjectID != m.SubjectID {
		return false
	}
	if f.ReferenceID != "" && f.ReferenceID != m.ReferenceID {
		return false
	}
	if f.Kind != "" && f.Kind != m.Kind {
		return false
	}
	return true
}

// =============================================================================
// JOURNAL
// =============================================================================

// Journal collects movements for one command and flushes them in one batch.
type Journal struct {
	Store  MovementStore
	Clock  Clock
	Actor  string
	Reason string

	pending []Movement
}

// NewJournal creates a journal writing through store.
func NewJournal(store MovementStore, clock Clock, actor string) *Journal {
	return &Journal{Store: store, Clock: clock, Actor: actor}
}

// Record queues a movement. Zero deltas are dropped.
func (j *Journal) Record(kind MovementKind, subjectID string, delta int, typ MovementType, referenceID string) {
	if j == nil || delta == 0 {
		return
	}
	j.pending = append(j.pending, Movement{
		ID:          NewID(),
		Kind:        kind,
		SubjectID:   subjectID,
		Delta:       delta,
		Type:        typ,
		ReferenceID: referenceID,
		Reason:      j.Reason,
		Actor:       j.Actor,
		At:          j.Clock.Now(),
	})
}

// Pending returns the queued, unflushed movements.
func (j *Journal) Pending() []Movement {
	out := make([]Movement, len(j.pending))
	copy(out, j.pending)
	return out
}

// Flush appends all queued movements.
func (j *Journal) Flush(ctx context.Context) error {
	if j == nil || len(j.pending) == 0 {
		return nil
	}
	if err := j.Store.AppendMovements(ctx, j.pending); err != nil {
		return err
	}
	j.pending = nil
	return nil
}

// NetDelta sums the deltas of movements matching the filter.
func NetDelta(movements []Movement, f MovementFilter) int {
	net := 0
	for _, m := range movements {
		if f.Match(m) {
			net += m.Delta
		}
	}
	return net
}

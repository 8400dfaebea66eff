/*
store.go - Persistence interfaces shared by every store implementation

PURPOSE:
  Defines the interface between the journal and the database. Entity
  repositories (items, customers, sales...) are declared by their ledger
  packages; shop.Store composes them all with the interfaces here.

APPEND-ONLY CONTRACT:
  MovementStore and SequenceStore never rewrite history:
  - AppendMovements(): batch write, no Update or Delete
  - NextSequence(): monotonically increasing per prefix

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory maps (default runtime store)
  - store/sqlite/sqlite.go: SQLite persistence

SEE ALSO:
  - ledger.go: Journal built on MovementStore
  - shop/store.go: Composite Store with WithTx
*/
package generic

import "context"

// MovementStore persists journal movements. Append-only.
type MovementStore interface {
	// AppendMovements persists movements in order. Either all are written
	// or none are.
	AppendMovements(ctx context.Context, movements []Movement) error

	// Movements returns movements matching the filter, oldest first.
	Movements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// SequenceStore hands out per-prefix sequence numbers (invoice numbering).
type SequenceStore interface {
	// NextSequence returns the next value for prefix, starting at 1.
	NextSequence(ctx context.Context, prefix string) (int64, error)
}

package generic

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

// =============================================================================
// ERRORS
// =============================================================================

func TestErrors_Classification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		client   bool
	}{
		{"validation", Invalid("email", "is required"), ErrValidation, true},
		{"transition", fmt.Errorf("%w: pending -> completed", ErrInvalidTransition), ErrValidation, true},
		{"duplicate", &DuplicateError{Entity: "customer", Field: "email", Value: "a@b.c"}, ErrDuplicate, true},
		{"stock", &InsufficientStockError{ItemID: "w1", Available: 1, Requested: 2}, ErrInsufficientStock, true},
		{"not found", fmt.Errorf("record sale: %w", NotFound("item", "w1")), ErrNotFound, false},
		{"permission", &PermissionError{Role: "staff", Section: "users"}, ErrPermission, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.client, IsClientError(tt.err))
			assert.Equal(t, errors.Is(tt.err, ErrNotFound), IsNotFound(tt.err))
		})
	}
}

func TestErrors_As(t *testing.T) {
	err := fmt.Errorf("add customer: %w", &DuplicateError{Entity: "customer", Field: "phone", Value: "+91-1"})

	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "phone", dup.Field)
	assert.Contains(t, err.Error(), "+91-1")
}

// =============================================================================
// DATE RANGES
// =============================================================================

func TestDateRange(t *testing.T) {
	r, err := ParseDateRange("2025-03-01", "2025-03-10")
	require.NoError(t, err)

	assert.True(t, r.Contains(now))
	assert.True(t, r.Contains(time.Date(2025, time.March, 10, 23, 59, 0, 0, time.UTC)), "to is inclusive")
	assert.False(t, r.Contains(time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "[2025-03-01, 2025-03-10]", r.String())

	_, err = ParseDateRange("2025-03-10", "2025-03-01")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseDateRange("March", "2025-03-01")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMonthRange(t *testing.T) {
	feb, err := MonthRange(2024, time.February)
	require.NoError(t, err)
	assert.True(t, feb.Contains(time.Date(2024, time.February, 29, 18, 0, 0, 0, time.UTC)))
	assert.False(t, feb.Contains(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))

	_, err = MonthRange(2024, 13)
	assert.ErrorIs(t, err, ErrValidation)
}

// =============================================================================
// SEARCH AND VALIDATION
// =============================================================================

func TestMatches(t *testing.T) {
	assert.True(t, Matches("", "anything"))
	assert.True(t, Matches("  sub ", "Rolex", "Submariner"))
	assert.False(t, Matches("omega", "Rolex", "Submariner"))
}

func TestValidate_NamesJSONField(t *testing.T) {
	type input struct {
		Name  string `json:"name" validate:"required"`
		Phone string `json:"phone" validate:"required,phone"`
	}

	err := Validate(input{Phone: "+91-9876543210"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "name", ve.Field)
	assert.Equal(t, "is required", ve.Message)

	err = Validate(input{Name: "Raj", Phone: "call me"})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "phone", ve.Field)

	assert.NoError(t, Validate(input{Name: "Raj", Phone: "+91-9876543210"}))
}

func TestTotal(t *testing.T) {
	assert.Equal(t, "30000", Total(Money(15000), 2).String())
	assert.True(t, MustParseDecimal("not money").IsZero())
}

// =============================================================================
// JOURNAL
// =============================================================================

type movementLog struct {
	moves []Movement
	fail  error
}

func (l *movementLog) AppendMovements(_ context.Context, m []Movement) error {
	if l.fail != nil {
		return l.fail
	}
	l.moves = append(l.moves, m...)
	return nil
}

func (l *movementLog) Movements(_ context.Context, f MovementFilter) ([]Movement, error) {
	var out []Movement
	for _, m := range l.moves {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func TestJournal_FlushesOneBatch(t *testing.T) {
	// GIVEN: A journal for one command
	log := &movementLog{}
	j := NewJournal(log, FixedClock(now), "staff")
	j.Reason = "record sale"

	// WHEN: Recording an apply, a zero delta and a reversal
	j.Record(MovementStock, "w1", -2, MovementApply, "s1")
	j.Record(MovementPurchases, "c1", 0, MovementApply, "s1")
	j.Record(MovementStock, "w1", 2, MovementReversal, "s1")
	require.Len(t, j.Pending(), 2)
	assert.Empty(t, log.moves, "nothing is written before Flush")

	require.NoError(t, j.Flush(context.Background()))

	// THEN: Both movements carry the command context and net to zero
	require.Len(t, log.moves, 2)
	for _, m := range log.moves {
		assert.Equal(t, "staff", m.Actor)
		assert.Equal(t, "record sale", m.Reason)
		assert.Equal(t, now, m.At)
	}
	assert.Equal(t, 0, NetDelta(log.moves, MovementFilter{SubjectID: "w1"}))
	assert.Empty(t, j.Pending())
}

func TestJournal_FlushErrorKeepsPending(t *testing.T) {
	log := &movementLog{fail: errors.New("disk full")}
	j := NewJournal(log, FixedClock(now), "staff")
	j.Record(MovementServices, "c1", 1, MovementApply, "t1")

	assert.Error(t, j.Flush(context.Background()))
	assert.Len(t, j.Pending(), 1)

	var nilJournal *Journal
	nilJournal.Record(MovementStock, "w1", 1, MovementApply, "s1")
	assert.NoError(t, nilJournal.Flush(context.Background()))
}

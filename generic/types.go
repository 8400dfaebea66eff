/*
Package generic provides the shared kernel of the shop engine.

PURPOSE:
  This package contains the domain-agnostic pieces every ledger builds on:
  money arithmetic, record identifiers, the clock, date ranges, substring
  search, validation and the error taxonomy. It also defines the
  append-only movement journal that records every stock and counter change.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal helpers (never float64 for prices)
  - NewID: opaque record identifiers
  - Clock: injectable time source so tests can pin "today"

DESIGN PRINCIPLES:
  1. Precision: prices and totals use decimal.Decimal
  2. Determinism: all timestamps come from a Clock
  3. No domain knowledge: inventory, sales etc. live in their own packages

USAGE:
  total := generic.Money(900000).Mul(decimal.NewFromInt(2))
  id := generic.NewID()

SEE ALSO:
  - errors.go: Error taxonomy shared by all ledgers
  - ledger.go: Append-only movement journal
  - time.go: Date ranges for reporting filters
*/
package generic

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Money builds a decimal amount from a float literal. Use for constants and
// tests; parse user input with ParseMoney.
func Money(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// ParseMoney parses a decimal string such as "1250.50".
func ParseMoney(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// MustParseDecimal parses s and returns zero on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Total returns price * quantity.
func Total(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// NewID returns a new random record identifier.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock returns the current time. Ledgers never call time.Now directly.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock frozen at t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Now calls c, falling back to the system clock when c is nil.
func (c Clock) Now() time.Time {
	if c == nil {
		return SystemClock()
	}
	return c()
}

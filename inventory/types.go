/*
Package inventory implements the stock ledger of watches on hand.

PURPOSE:
  Holds stock items and the quantity primitives every other ledger uses.
  The item status is derived: an item is "sold" exactly when its quantity
  is zero, and "available" otherwise.

KEY TYPES:
  Item:       A stock record (code, brand, model, price, quantity, status)
  NewItem:    Input for AddItem
  ItemUpdate: Input for UpdateItem
  Repository: Persistence port implemented by the stores

SEE ALSO:
  - ledger.go: Operations and invariants
  - code.go: Brand-prefixed code generation
*/
package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status of a stock item.
type Status string

const (
	StatusAvailable Status = "available"
	StatusSold      Status = "sold"
)

// LowStockThreshold is the quantity at or below which an in-stock item is
// reported as running low.
const LowStockThreshold = 2

// StatusFor derives the status from a quantity.
func StatusFor(quantity int) Status {
	if quantity == 0 {
		return StatusSold
	}
	return StatusAvailable
}

type Item struct {
	ID          string
	Code        string
	Brand       string
	Model       string
	Price       decimal.Decimal
	Quantity    int
	Status      Status
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Name is the display name used on sales and invoices.
func (i Item) Name() string {
	return strings.TrimSpace(i.Brand + " " + i.Model)
}

// Value is price * quantity.
func (i Item) Value() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NewItem is the input for AddItem. An empty Code is generated from Brand.
type NewItem struct {
	Code        string          `json:"code" validate:"max=32"`
	Brand       string          `json:"brand" validate:"required"`
	Model       string          `json:"model" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	Description string          `json:"description"`
}

// ItemUpdate is the input for UpdateItem. All fields are replaced.
type ItemUpdate struct {
	Code        string          `json:"code" validate:"required,max=32"`
	Brand       string          `json:"brand" validate:"required"`
	Model       string          `json:"model" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	Description string          `json:"description"`
}

// Stats summarizes the stock on hand.
type Stats struct {
	TotalItems int
	Available  int
	Sold       int
	LowStock   int
	TotalValue decimal.Decimal
}

// Repository persists items. Implementations return *generic.NotFoundError
// from GetItem when the id is unknown.
type Repository interface {
	GetItem(ctx context.Context, id string) (Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	SaveItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id string) error
}

/*
Package sales records completed sales and keeps stock and customer counters
consistent with them.

PURPOSE:
  A sale moves units out of inventory, adds one to the customer's purchase
  counter and issues exactly one Sales invoice. Edits and deletes undo those
  effects first, so the ledgers always look as if the current set of sales
  had been recorded from scratch.

CRITICAL INVARIANTS:
  1. item quantity = initial stock - Σ quantity of live sales of that item
  2. customer purchases = number of live sales for that customer
  3. one Sales invoice per recorded sale; edits and deletes issue none and
     retract none

SEE ALSO:
  - ledger.go: Record, Edit, Delete and queries
  - generic/ledger.go: Movement journal written by every command
*/
package sales

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const StatusCompleted Status = "completed"

// PaymentMethods lists the accepted payment methods.
var PaymentMethods = []string{"Cash", "Card", "UPI", "Bank Transfer"}

type Sale struct {
	ID            string
	Timestamp     time.Time
	CustomerID    string
	CustomerName  string
	WatchID       string
	WatchName     string
	WatchCode     string
	Brand         string
	Price         decimal.Decimal
	Quantity      int
	TotalAmount   decimal.Decimal
	PaymentMethod string
	Status        Status
	CreatedBy     string
	InvoiceID     string
	UpdatedAt     time.Time
}

// Input is used by both Record and Edit.
type Input struct {
	CustomerID    string          `json:"customer_id" validate:"required"`
	WatchID       string          `json:"watch_id" validate:"required"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity" validate:"gt=0"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=Cash Card UPI 'Bank Transfer'"`
}

type Stats struct {
	Count           int
	TotalRevenue    decimal.Decimal
	AverageSale     decimal.Decimal
	UnitsSold       int
	ByPaymentMethod map[string]decimal.Decimal
	ByBrand         map[string]decimal.Decimal
}

// Repository persists sales. GetSale returns *generic.NotFoundError for
// unknown ids.
type Repository interface {
	GetSale(ctx context.Context, id string) (Sale, error)
	ListSales(ctx context.Context) ([]Sale, error)
	SaveSale(ctx context.Context, s Sale) error
	DeleteSale(ctx context.Context, id string) error
}

/*
Package invoices is the append-only invoice ledger.

PURPOSE:
  Invoices are projections of sale and service events taken at issue time.
  They copy the customer's contact details and the item or ticket details,
  so later edits to customers, stock or tickets never change an issued
  invoice. There is no update or delete operation.

NUMBERING:
  Each type has its own prefix and sequence:
    Sales                    SAL-000001, SAL-000002, ...
    Service Acknowledgement  ACK-000001, ...
    Service Completion       SVC-000001, ...

SEE ALSO:
  - ledger.go: Constructors and queries
  - format.go: Currency rendering
*/
package invoices

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeSales                  Type = "Sales"
	TypeServiceAcknowledgement Type = "Service Acknowledgement"
	TypeServiceCompletion      Type = "Service Completion"
)

// Prefix returns the invoice number prefix for t.
func (t Type) Prefix() string {
	switch t {
	case TypeSales:
		return "SAL"
	case TypeServiceAcknowledgement:
		return "ACK"
	case TypeServiceCompletion:
		return "SVC"
	}
	return "INV"
}

// SubType is the document title printed on the invoice.
func (t Type) SubType() string {
	switch t {
	case TypeSales:
		return "Sales Invoice"
	case TypeServiceAcknowledgement:
		return "Watch Received"
	case TypeServiceCompletion:
		return "Service Bill"
	}
	return ""
}

// ParseType accepts the type names and their number prefixes.
func ParseType(s string) (Type, bool) {
	for _, t := range []Type{TypeSales, TypeServiceAcknowledgement, TypeServiceCompletion} {
		if s == string(t) || s == t.Prefix() {
			return t, true
		}
	}
	return "", false
}

type RelatedType string

const (
	RelatedSale    RelatedType = "sale"
	RelatedService RelatedType = "service"
)

const StatusGenerated = "generated"

// SaleLine is the sold item as it was at issue time.
type SaleLine struct {
	WatchID       string          `json:"watch_id"`
	WatchCode     string          `json:"watch_code"`
	WatchName     string          `json:"watch_name"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	PaymentMethod string          `json:"payment_method"`
}

// ServiceLine is the serviced watch and the work done.
type ServiceLine struct {
	WatchName       string          `json:"watch_name"`
	Brand           string          `json:"brand"`
	Model           string          `json:"model"`
	DialColor       string          `json:"dial_color"`
	MovementNo      string          `json:"movement_no"`
	Gender          string          `json:"gender"`
	CaseType        string          `json:"case_type"`
	StrapType       string          `json:"strap_type"`
	Issue           string          `json:"issue"`
	EstimatedCost   decimal.Decimal `json:"estimated_cost"`
	WorkDescription string          `json:"work_description,omitempty"`
	ImageRef        string          `json:"image_ref,omitempty"`
	WarrantyMonths  int             `json:"warranty_months,omitempty"`
}

type Invoice struct {
	ID              string
	InvoiceNo       string
	Type            Type
	SubType         string
	RelatedID       string
	RelatedType     RelatedType
	CustomerID      string
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	Amount          decimal.Decimal
	Status          string
	CreatedBy       string
	IssuedAt        time.Time

	Sale    *SaleLine    // set for TypeSales
	Service *ServiceLine // set for both service types
}

type Stats struct {
	Total        int
	ByType       map[Type]int
	TotalRevenue decimal.Decimal
}

// Repository stores invoices. Issued invoices are never updated or deleted.
type Repository interface {
	AppendInvoice(ctx context.Context, inv Invoice) error
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	ListInvoices(ctx context.Context) ([]Invoice, error)
}

package invoices

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
)

// SaleSource is everything FromSale snapshots.
type SaleSource struct {
	SaleID    string
	Customer  customers.Customer
	Line      SaleLine
	Amount    decimal.Decimal
	CreatedBy string
}

// ServiceSource is everything the service constructors snapshot. Cost is
// the ticket cost at issue time.
type ServiceSource struct {
	TicketID  string
	Customer  customers.Customer
	Line      ServiceLine
	Cost      decimal.Decimal
	CreatedBy string
}

type Ledger struct {
	repo  Repository
	seq   generic.SequenceStore
	clock generic.Clock
}

func NewLedger(repo Repository, seq generic.SequenceStore, clock generic.Clock) *Ledger {
	return &Ledger{repo: repo, seq: seq, clock: clock}
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// FromSale issues the Sales invoice for a recorded sale.
func (l *Ledger) FromSale(ctx context.Context, src SaleSource) (Invoice, error) {
	line := src.Line
	return l.issue(ctx, Invoice{
		Type:        TypeSales,
		RelatedID:   src.SaleID,
		RelatedType: RelatedSale,
		Amount:      src.Amount,
		CreatedBy:   src.CreatedBy,
		Sale:        &line,
	}, src.Customer)
}

// FromServiceAcknowledgement issues the zero-amount receipt handed over when
// a watch is received. The estimated cost is kept on the line.
func (l *Ledger) FromServiceAcknowledgement(ctx context.Context, src ServiceSource) (Invoice, error) {
	line := src.Line
	line.EstimatedCost = src.Cost
	return l.issue(ctx, Invoice{
		Type:        TypeServiceAcknowledgement,
		RelatedID:   src.TicketID,
		RelatedType: RelatedService,
		Amount:      decimal.Zero,
		CreatedBy:   src.CreatedBy,
		Service:     &line,
	}, src.Customer)
}

// FromServiceCompletion issues the bill for a completed ticket.
func (l *Ledger) FromServiceCompletion(ctx context.Context, src ServiceSource) (Invoice, error) {
	line := src.Line
	line.EstimatedCost = src.Cost
	return l.issue(ctx, Invoice{
		Type:        TypeServiceCompletion,
		RelatedID:   src.TicketID,
		RelatedType: RelatedService,
		Amount:      src.Cost,
		CreatedBy:   src.CreatedBy,
		Service:     &line,
	}, src.Customer)
}

func (l *Ledger) issue(ctx context.Context, inv Invoice, c customers.Customer) (Invoice, error) {
	n, err := l.seq.NextSequence(ctx, inv.Type.Prefix())
	if err != nil {
		return Invoice{}, fmt.Errorf("allocate invoice number: %w", err)
	}
	inv.ID = generic.NewID()
	inv.InvoiceNo = FormatNumber(inv.Type, n)
	inv.SubType = inv.Type.SubType()
	inv.CustomerID = c.ID
	inv.CustomerName = c.Name
	inv.CustomerPhone = c.Phone
	inv.CustomerAddress = c.Address
	inv.Status = StatusGenerated
	inv.IssuedAt = l.clock.Now()
	if err := l.repo.AppendInvoice(ctx, inv); err != nil {
		return Invoice{}, fmt.Errorf("append invoice: %w", err)
	}
	return inv, nil
}

// FormatNumber renders sequence n of type t, e.g. SAL-000042.
func FormatNumber(t Type, n int64) string {
	return fmt.Sprintf("%s-%06d", t.Prefix(), n)
}

// =============================================================================
// QUERIES
// =============================================================================

func (l *Ledger) Get(ctx context.Context, id string) (Invoice, error) {
	return l.repo.GetInvoice(ctx, id)
}

// List returns all invoices, newest first.
func (l *Ledger) List(ctx context.Context) ([]Invoice, error) {
	all, err := l.repo.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].IssuedAt.Equal(all[j].IssuedAt) {
			return all[i].InvoiceNo > all[j].InvoiceNo
		}
		return all[i].IssuedAt.After(all[j].IssuedAt)
	})
	return all, nil
}

// ListFor returns the invoices issued for one sale or ticket, oldest first.
// Invoices outlive their source, so a deleted sale still has its invoice.
func (l *Ledger) ListFor(ctx context.Context, relatedID string, relatedType RelatedType) ([]Invoice, error) {
	all, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	out := generic.Filter(all, func(inv Invoice) bool {
		return inv.RelatedID == relatedID && inv.RelatedType == relatedType
	})
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (l *Ledger) ByType(ctx context.Context, t Type) ([]Invoice, error) {
	all, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	return generic.Filter(all, func(inv Invoice) bool { return inv.Type == t }), nil
}

// Search matches number, type, customer and amount.
func (l *Ledger) Search(ctx context.Context, query string) ([]Invoice, error) {
	all, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	return generic.Filter(all, func(inv Invoice) bool {
		fields := []string{inv.InvoiceNo, string(inv.Type), inv.SubType, inv.CustomerName,
			inv.CustomerPhone, inv.Amount.String()}
		if inv.Sale != nil {
			fields = append(fields, inv.Sale.WatchName, inv.Sale.WatchCode, inv.Sale.PaymentMethod)
		}
		if inv.Service != nil {
			fields = append(fields, inv.Service.WatchName, inv.Service.Issue, strconv.Itoa(inv.Service.WarrantyMonths))
		}
		return generic.Matches(query, fields...)
	}), nil
}

func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	all, err := l.repo.ListInvoices(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{ByType: map[Type]int{}, TotalRevenue: decimal.Zero}
	for _, inv := range all {
		s.Total++
		s.ByType[inv.Type]++
		s.TotalRevenue = s.TotalRevenue.Add(inv.Amount)
	}
	return s, nil
}

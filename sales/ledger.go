package sales

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/inventory"
	"github.com/warp/watchcraft/invoices"
)

// Ledger coordinates a sale across the inventory, customer and invoice
// ledgers. It expects to run inside one store transaction per command.
type Ledger struct {
	repo      Repository
	inventory *inventory.Ledger
	customers *customers.Ledger
	invoices  *invoices.Ledger
	journal   *generic.Journal
	clock     generic.Clock
}

// NewLedger wires a sales ledger. journal may be nil.
func NewLedger(repo Repository, items *inventory.Ledger, people *customers.Ledger,
	bills *invoices.Ledger, journal *generic.Journal, clock generic.Clock) *Ledger {
	return &Ledger{
		repo:      repo,
		inventory: items,
		customers: people,
		invoices:  bills,
		journal:   journal,
		clock:     clock,
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

// Record validates a sale, takes the units out of stock, counts the
// purchase and issues the Sales invoice.
func (l *Ledger) Record(ctx context.Context, in Input, createdBy string) (Sale, invoices.Invoice, error) {
	if err := validateInput(in); err != nil {
		return Sale{}, invoices.Invoice{}, err
	}
	customer, item, err := l.resolve(ctx, in)
	if err != nil {
		return Sale{}, invoices.Invoice{}, err
	}
	if item.Quantity < in.Quantity {
		return Sale{}, invoices.Invoice{}, &generic.InsufficientStockError{
			ItemID: item.ID, Available: item.Quantity, Requested: in.Quantity,
		}
	}

	now := l.clock.Now()
	sale := Sale{
		ID:        generic.NewID(),
		Timestamp: now,
		Status:    StatusCompleted,
		CreatedBy: createdBy,
		UpdatedAt: now,
	}
	fill(&sale, in, customer, item)

	customer, err = l.apply(ctx, sale)
	if err != nil {
		return Sale{}, invoices.Invoice{}, err
	}

	inv, err := l.invoices.FromSale(ctx, invoices.SaleSource{
		SaleID:   sale.ID,
		Customer: customer,
		Line: invoices.SaleLine{
			WatchID:       sale.WatchID,
			WatchCode:     sale.WatchCode,
			WatchName:     sale.WatchName,
			Price:         sale.Price,
			Quantity:      sale.Quantity,
			PaymentMethod: sale.PaymentMethod,
		},
		Amount:    sale.TotalAmount,
		CreatedBy: createdBy,
	})
	if err != nil {
		return Sale{}, invoices.Invoice{}, err
	}
	sale.InvoiceID = inv.ID

	if err := l.repo.SaveSale(ctx, sale); err != nil {
		return Sale{}, invoices.Invoice{}, fmt.Errorf("save sale: %w", err)
	}
	return sale, inv, nil
}

// Edit reverses the sale's effects, checks the new quantity against the
// stock that is then on hand, and applies the new values. The result is the
// same as deleting the sale and recording it again, except that the id,
// timestamp and invoice are kept.
func (l *Ledger) Edit(ctx context.Context, id string, in Input) (Sale, error) {
	if err := validateInput(in); err != nil {
		return Sale{}, err
	}
	sale, err := l.repo.GetSale(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if _, _, err := l.resolve(ctx, in); err != nil {
		return Sale{}, err
	}

	if err := l.reverse(ctx, sale); err != nil {
		return Sale{}, err
	}

	customer, item, err := l.resolve(ctx, in)
	if err != nil {
		return Sale{}, err
	}
	if item.Quantity < in.Quantity {
		return Sale{}, &generic.InsufficientStockError{
			ItemID: item.ID, Available: item.Quantity, Requested: in.Quantity,
		}
	}

	fill(&sale, in, customer, item)
	sale.UpdatedAt = l.clock.Now()
	if _, err := l.apply(ctx, sale); err != nil {
		return Sale{}, err
	}
	if err := l.repo.SaveSale(ctx, sale); err != nil {
		return Sale{}, fmt.Errorf("save sale: %w", err)
	}
	return sale, nil
}

// Delete returns the units to stock, lowers the purchase counter and
// removes the sale. Its invoice stays on file.
func (l *Ledger) Delete(ctx context.Context, id string) (Sale, error) {
	sale, err := l.repo.GetSale(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if err := l.reverse(ctx, sale); err != nil {
		return Sale{}, err
	}
	if err := l.repo.DeleteSale(ctx, id); err != nil {
		return Sale{}, fmt.Errorf("delete sale: %w", err)
	}
	return sale, nil
}

// apply takes the sale's units out of stock and counts the purchase.
func (l *Ledger) apply(ctx context.Context, s Sale) (customers.Customer, error) {
	_, removed, err := l.inventory.DecreaseQuantity(ctx, s.WatchID, s.Quantity)
	if err != nil {
		return customers.Customer{}, fmt.Errorf("decrease stock: %w", err)
	}
	l.journal.Record(generic.MovementStock, s.WatchID, -removed, generic.MovementApply, s.ID)

	c, err := l.customers.IncrementPurchases(ctx, s.CustomerID)
	if err != nil {
		return customers.Customer{}, fmt.Errorf("count purchase: %w", err)
	}
	l.journal.Record(generic.MovementPurchases, s.CustomerID, 1, generic.MovementApply, s.ID)
	return c, nil
}

// reverse undoes apply for a stored sale.
func (l *Ledger) reverse(ctx context.Context, s Sale) error {
	if _, err := l.inventory.IncreaseQuantity(ctx, s.WatchID, s.Quantity); err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	l.journal.Record(generic.MovementStock, s.WatchID, s.Quantity, generic.MovementReversal, s.ID)

	before, err := l.customers.FindByID(ctx, s.CustomerID)
	if err != nil {
		return fmt.Errorf("uncount purchase: %w", err)
	}
	after, err := l.customers.DecrementPurchases(ctx, s.CustomerID)
	if err != nil {
		return fmt.Errorf("uncount purchase: %w", err)
	}
	l.journal.Record(generic.MovementPurchases, s.CustomerID, after.Purchases-before.Purchases,
		generic.MovementReversal, s.ID)
	return nil
}

func (l *Ledger) resolve(ctx context.Context, in Input) (customers.Customer, inventory.Item, error) {
	c, err := l.customers.FindByID(ctx, in.CustomerID)
	if err != nil {
		return customers.Customer{}, inventory.Item{}, err
	}
	item, err := l.inventory.FindByID(ctx, in.WatchID)
	if err != nil {
		return customers.Customer{}, inventory.Item{}, err
	}
	return c, item, nil
}

func validateInput(in Input) error {
	if err := generic.Validate(in); err != nil {
		return err
	}
	if !in.Price.IsPositive() {
		return generic.Invalid("price", "must be greater than 0")
	}
	return nil
}

func fill(s *Sale, in Input, c customers.Customer, item inventory.Item) {
	s.CustomerID = c.ID
	s.CustomerName = c.Name
	s.WatchID = item.ID
	s.WatchName = item.Name()
	s.WatchCode = item.Code
	s.Brand = item.Brand
	s.Price = in.Price
	s.Quantity = in.Quantity
	s.TotalAmount = generic.Total(in.Price, in.Quantity)
	s.PaymentMethod = in.PaymentMethod
}

// =============================================================================
// QUERIES
// =============================================================================

func (l *Ledger) Get(ctx context.Context, id string) (Sale, error) {
	return l.repo.GetSale(ctx, id)
}

// List returns all sales, newest first.
func (l *Ledger) List(ctx context.Context) ([]Sale, error) {
	all, err := l.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	return all, nil
}

// References reports how many sales point at an inventory item.
func (l *Ledger) References(ctx context.Context, watchID string) (int, error) {
	all, err := l.repo.ListSales(ctx)
	if err != nil {
		return 0, err
	}
	return len(generic.Filter(all, func(s Sale) bool { return s.WatchID == watchID })), nil
}

func (l *Ledger) ByCustomer(ctx context.Context, customerID string) ([]Sale, error) {
	return l.where(ctx, func(s Sale) bool { return s.CustomerID == customerID })
}

// Recent returns up to limit sales, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Sale, error) {
	all, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (l *Ledger) FilterByDateRange(ctx context.Context, r generic.DateRange) ([]Sale, error) {
	return l.where(ctx, func(s Sale) bool { return r.Contains(s.Timestamp) })
}

func (l *Ledger) FilterByMonth(ctx context.Context, year int, month time.Month) ([]Sale, error) {
	r, err := generic.MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return l.FilterByDateRange(ctx, r)
}

// Search matches customer, watch, amounts, payment method and date.
func (l *Ledger) Search(ctx context.Context, query string) ([]Sale, error) {
	return l.where(ctx, func(s Sale) bool {
		return generic.Matches(query, s.CustomerName, s.WatchName, s.WatchCode, s.PaymentMethod,
			s.Price.String(), s.TotalAmount.String(), strconv.Itoa(s.Quantity),
			s.Timestamp.Format(generic.DateLayout))
	})
}

func (l *Ledger) where(ctx context.Context, keep func(Sale) bool) ([]Sale, error) {
	all, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	return generic.Filter(all, keep), nil
}

// Stats summarizes revenue over all sales.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	all, err := l.repo.ListSales(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(all), nil
}

// Summarize computes Stats for an arbitrary set of sales.
func Summarize(list []Sale) Stats {
	s := Stats{
		TotalRevenue:    decimal.Zero,
		AverageSale:     decimal.Zero,
		ByPaymentMethod: map[string]decimal.Decimal{},
		ByBrand:         map[string]decimal.Decimal{},
	}
	for _, sale := range list {
		s.Count++
		s.UnitsSold += sale.Quantity
		s.TotalRevenue = s.TotalRevenue.Add(sale.TotalAmount)
		s.ByPaymentMethod[sale.PaymentMethod] = s.ByPaymentMethod[sale.PaymentMethod].Add(sale.TotalAmount)
		s.ByBrand[sale.Brand] = s.ByBrand[sale.Brand].Add(sale.TotalAmount)
	}
	if s.Count > 0 {
		s.AverageSale = s.TotalRevenue.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	}
	return s
}

// MonthlyRevenue returns revenue per month of year, January first.
func (l *Ledger) MonthlyRevenue(ctx context.Context, year int) ([12]decimal.Decimal, error) {
	var out [12]decimal.Decimal
	for i := range out {
		out[i] = decimal.Zero
	}
	all, err := l.repo.ListSales(ctx)
	if err != nil {
		return out, err
	}
	for _, sale := range all {
		if sale.Timestamp.Year() == year {
			m := sale.Timestamp.Month() - 1
			out[m] = out[m].Add(sale.TotalAmount)
		}
	}
	return out, nil
}

package shop

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/watchcraft/access"
	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/inventory"
	"github.com/warp/watchcraft/invoices"
	"github.com/warp/watchcraft/sales"
	"github.com/warp/watchcraft/tickets"
)

// Filter narrows list queries. Zero fields match everything.
type Filter struct {
	Query      string             // case-insensitive substring
	Range      *generic.DateRange // by record timestamp
	CustomerID string
	Status     string // service status or invoice type
}

// =============================================================================
// INVENTORY
// =============================================================================

func (e *Engine) GetInventoryItem(ctx context.Context, actor Actor, id string) (inventory.Item, error) {
	var item inventory.Item
	err := e.query(actor, access.SectionInventory, func(l *ledgers) error {
		var err error
		item, err = l.inventory.FindByID(ctx, id)
		return err
	})
	return item, err
}

// ListInventory returns items matching f. Range applies to CreatedAt.
func (e *Engine) ListInventory(ctx context.Context, actor Actor, f Filter) ([]inventory.Item, error) {
	var out []inventory.Item
	err := e.query(actor, access.SectionInventory, func(l *ledgers) error {
		found, err := l.inventory.Search(ctx, f.Query)
		if err != nil {
			return err
		}
		out = generic.Filter(found, func(it inventory.Item) bool {
			return f.Range == nil || f.Range.Contains(it.CreatedAt)
		})
		return nil
	})
	return out, err
}

func (e *Engine) AvailableInventory(ctx context.Context, actor Actor) ([]inventory.Item, error) {
	var out []inventory.Item
	err := e.query(actor, access.SectionInventory, func(l *ledgers) error {
		var err error
		out, err = l.inventory.FindAvailable(ctx)
		return err
	})
	return out, err
}

// LowStock lists in-stock items at or below threshold. A threshold of 0
// matches nothing; callers without a value use LowStockThreshold.
func (e *Engine) LowStock(ctx context.Context, actor Actor, threshold int) ([]inventory.Item, error) {
	if threshold < 0 {
		return nil, generic.Invalid("threshold", "must not be negative")
	}
	var out []inventory.Item
	err := e.query(actor, access.SectionInventory, func(l *ledgers) error {
		var err error
		out, err = l.inventory.LowStock(ctx, threshold)
		return err
	})
	return out, err
}

// GenerateCode previews the next code for brand.
func (e *Engine) GenerateCode(ctx context.Context, actor Actor, brand string) (string, error) {
	var code string
	err := e.query(actor, access.SectionInventory, func(l *ledgers) error {
		var err error
		code, err = l.inventory.GenerateCode(ctx, brand)
		return err
	})
	return code, err
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (e *Engine) GetCustomer(ctx context.Context, actor Actor, id string) (customers.Customer, error) {
	var c customers.Customer
	err := e.query(actor, access.SectionCustomers, func(l *ledgers) error {
		var err error
		c, err = l.customers.FindByID(ctx, id)
		return err
	})
	return c, err
}

// ListCustomers returns customers matching f. Range applies to CreatedAt;
// CustomerID selects a single customer.
func (e *Engine) ListCustomers(ctx context.Context, actor Actor, f Filter) ([]customers.Customer, error) {
	var out []customers.Customer
	err := e.query(actor, access.SectionCustomers, func(l *ledgers) error {
		found, err := l.customers.Search(ctx, f.Query)
		if err != nil {
			return err
		}
		out = generic.Filter(found, func(c customers.Customer) bool {
			return (f.Range == nil || f.Range.Contains(c.CreatedAt)) &&
				(f.CustomerID == "" || f.CustomerID == c.ID)
		})
		return nil
	})
	return out, err
}

// CustomerHistory is a customer with their sales and service tickets.
type CustomerHistory struct {
	Customer customers.Customer
	Sales    []sales.Sale
	Tickets  []tickets.Ticket
}

func (e *Engine) GetCustomerHistory(ctx context.Context, actor Actor, id string) (CustomerHistory, error) {
	var h CustomerHistory
	err := e.query(actor, access.SectionCustomers, func(l *ledgers) error {
		var err error
		if h.Customer, err = l.customers.FindByID(ctx, id); err != nil {
			return err
		}
		if h.Sales, err = l.sales.ByCustomer(ctx, id); err != nil {
			return err
		}
		h.Tickets, err = l.tickets.ByCustomer(ctx, id)
		return err
	})
	return h, err
}

// =============================================================================
// SALES
// =============================================================================

func (e *Engine) GetSale(ctx context.Context, actor Actor, id string) (sales.Sale, error) {
	var s sales.Sale
	err := e.query(actor, access.SectionSales, func(l *ledgers) error {
		var err error
		s, err = l.sales.Get(ctx, id)
		return err
	})
	return s, err
}

// ListSales returns sales matching f, newest first.
func (e *Engine) ListSales(ctx context.Context, actor Actor, f Filter) ([]sales.Sale, error) {
	var out []sales.Sale
	err := e.query(actor, access.SectionSales, func(l *ledgers) error {
		found, err := l.sales.Search(ctx, f.Query)
		if err != nil {
			return err
		}
		out = generic.Filter(found, func(s sales.Sale) bool {
			return (f.Range == nil || f.Range.Contains(s.Timestamp)) &&
				(f.CustomerID == "" || f.CustomerID == s.CustomerID)
		})
		return nil
	})
	return out, err
}

// =============================================================================
// SERVICE TICKETS
// =============================================================================

func (e *Engine) GetServiceTicket(ctx context.Context, actor Actor, id string) (tickets.Ticket, error) {
	var t tickets.Ticket
	err := e.query(actor, access.SectionService, func(l *ledgers) error {
		var err error
		t, err = l.tickets.Get(ctx, id)
		return err
	})
	return t, err
}

// ListServiceTickets returns tickets matching f, newest first. f.Status is
// a ticket status.
func (e *Engine) ListServiceTickets(ctx context.Context, actor Actor, f Filter) ([]tickets.Ticket, error) {
	var status tickets.Status
	if f.Status != "" {
		s, ok := tickets.ParseStatus(f.Status)
		if !ok {
			return nil, generic.Invalid("status", "unknown service status")
		}
		status = s
	}
	var out []tickets.Ticket
	err := e.query(actor, access.SectionService, func(l *ledgers) error {
		found, err := l.tickets.Search(ctx, f.Query)
		if err != nil {
			return err
		}
		out = generic.Filter(found, func(t tickets.Ticket) bool {
			return (f.Range == nil || f.Range.Contains(t.Timestamp)) &&
				(f.CustomerID == "" || f.CustomerID == t.CustomerID) &&
				(status == "" || status == t.Status)
		})
		return nil
	})
	return out, err
}

// =============================================================================
// INVOICES
// =============================================================================

func (e *Engine) GetInvoice(ctx context.Context, actor Actor, id string) (invoices.Invoice, error) {
	var inv invoices.Invoice
	err := e.query(actor, access.SectionInvoices, func(l *ledgers) error {
		var err error
		inv, err = l.invoices.Get(ctx, id)
		return err
	})
	return inv, err
}

// ListInvoicesFor returns the invoices of one sale or service ticket.
func (e *Engine) ListInvoicesFor(ctx context.Context, actor Actor, relatedID string, relatedType invoices.RelatedType) ([]invoices.Invoice, error) {
	if relatedType != invoices.RelatedSale && relatedType != invoices.RelatedService {
		return nil, generic.Invalid("related_type", "must be sale or service")
	}
	var out []invoices.Invoice
	err := e.query(actor, access.SectionInvoices, func(l *ledgers) error {
		var err error
		out, err = l.invoices.ListFor(ctx, relatedID, relatedType)
		return err
	})
	return out, err
}

// ListInvoices returns invoices matching f, newest first. f.Status is an
// invoice type or prefix.
func (e *Engine) ListInvoices(ctx context.Context, actor Actor, f Filter) ([]invoices.Invoice, error) {
	var typ invoices.Type
	if f.Status != "" {
		t, ok := invoices.ParseType(f.Status)
		if !ok {
			return nil, generic.Invalid("type", "unknown invoice type")
		}
		typ = t
	}
	var out []invoices.Invoice
	err := e.query(actor, access.SectionInvoices, func(l *ledgers) error {
		found, err := l.invoices.Search(ctx, f.Query)
		if err != nil {
			return err
		}
		out = generic.Filter(found, func(inv invoices.Invoice) bool {
			return (f.Range == nil || f.Range.Contains(inv.IssuedAt)) &&
				(f.CustomerID == "" || f.CustomerID == inv.CustomerID) &&
				(typ == "" || typ == inv.Type)
		})
		return nil
	})
	return out, err
}

// =============================================================================
// REPORTS
// =============================================================================

// MonthlyRevenue returns sales revenue per calendar month of year.
func (e *Engine) MonthlyRevenue(ctx context.Context, actor Actor, year int) ([12]decimal.Decimal, error) {
	var out [12]decimal.Decimal
	err := e.query(actor, access.SectionSales, func(l *ledgers) error {
		var err error
		out, err = l.sales.MonthlyRevenue(ctx, year)
		return err
	})
	return out, err
}

// SalesReport summarizes the sales recorded inside r.
func (e *Engine) SalesReport(ctx context.Context, actor Actor, r generic.DateRange) (sales.Stats, error) {
	var st sales.Stats
	err := e.query(actor, access.SectionSales, func(l *ledgers) error {
		found, err := l.sales.FilterByDateRange(ctx, r)
		if err != nil {
			return err
		}
		st = sales.Summarize(found)
		return nil
	})
	return st, err
}

// =============================================================================
// JOURNAL
// =============================================================================

// Journal returns movements matching filter, oldest first.
func (e *Engine) Journal(ctx context.Context, actor Actor, filter generic.MovementFilter) ([]generic.Movement, error) {
	if err := e.authorize(actor, access.SectionDashboard); err != nil {
		return nil, err
	}
	return e.store.Movements(ctx, filter)
}

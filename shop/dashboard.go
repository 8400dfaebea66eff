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

// dashboardListSize bounds the recent-sales and open-ticket lists.
const dashboardListSize = 5

// Dashboard is the landing-page summary.
type Dashboard struct {
	Inventory inventory.Stats
	Customers customers.Stats
	Sales     sales.Stats
	Services  tickets.Stats
	Invoices  invoices.Stats

	// Today covers sales recorded today and tickets completed today.
	TodaySales   int
	TodayRevenue decimal.Decimal

	RecentSales []sales.Sale
	OpenTickets []tickets.Ticket
	LowStock    []inventory.Item
}

func (e *Engine) Dashboard(ctx context.Context, actor Actor) (Dashboard, error) {
	var d Dashboard
	err := e.query(actor, access.SectionDashboard, func(l *ledgers) error {
		var err error
		if d.Inventory, err = l.inventory.Stats(ctx); err != nil {
			return err
		}
		if d.Customers, err = l.customers.Stats(ctx); err != nil {
			return err
		}
		if d.Sales, err = l.sales.Stats(ctx); err != nil {
			return err
		}
		if d.Services, err = l.tickets.Stats(ctx); err != nil {
			return err
		}
		if d.Invoices, err = l.invoices.Stats(ctx); err != nil {
			return err
		}

		now := e.clock.Now()
		today, err := generic.NewDateRange(now, now)
		if err != nil {
			return err
		}
		soldToday, err := l.sales.FilterByDateRange(ctx, today)
		if err != nil {
			return err
		}
		doneToday, err := l.tickets.CompletedBetween(ctx, today)
		if err != nil {
			return err
		}
		d.TodaySales = len(soldToday)
		d.TodayRevenue = sales.Summarize(soldToday).TotalRevenue
		for _, t := range doneToday {
			d.TodayRevenue = d.TodayRevenue.Add(t.Cost)
		}

		if d.RecentSales, err = l.sales.Recent(ctx, dashboardListSize); err != nil {
			return err
		}
		if d.OpenTickets, err = l.tickets.Incomplete(ctx, dashboardListSize); err != nil {
			return err
		}
		d.LowStock, err = l.inventory.LowStock(ctx, e.lowStock)
		return err
	})
	return d, err
}

package sales_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/generic/store"
	"github.com/warp/watchcraft/inventory"
	"github.com/warp/watchcraft/invoices"
	"github.com/warp/watchcraft/sales"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	ctx      context.Context
	items    *inventory.Ledger
	people   *customers.Ledger
	bills    *invoices.Ledger
	journal  *generic.Journal
	ledger   *sales.Ledger
	customer customers.Customer
	watch    inventory.Item
}

func newFixture(t *testing.T, stock int) *fixture {
	t.Helper()
	clock := generic.FixedClock(time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))
	mem := store.NewMemory()
	f := &fixture{ctx: context.Background()}
	f.items = inventory.NewLedger(mem, clock)
	f.people = customers.NewLedger(mem, clock)
	f.bills = invoices.NewLedger(mem, mem, clock)
	f.journal = generic.NewJournal(mem, clock, "staff")
	f.ledger = sales.NewLedger(mem, f.items, f.people, f.bills, f.journal, clock)

	var err error
	f.customer, err = f.people.AddCustomer(f.ctx, customers.Details{
		Name: "Raj Kumar", Email: "raj@email.com", Phone: "+91-9876543210",
	}, "admin")
	require.NoError(t, err)
	f.watch, err = f.items.AddItem(f.ctx, inventory.NewItem{
		Code: "ROL002", Brand: "Rolex", Model: "GMT", Price: generic.Money(900000), Quantity: stock,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) input(qty int) sales.Input {
	return sales.Input{
		CustomerID:    f.customer.ID,
		WatchID:       f.watch.ID,
		Price:         generic.Money(900000),
		Quantity:      qty,
		PaymentMethod: "Card",
	}
}

func (f *fixture) stock(t *testing.T) inventory.Item {
	t.Helper()
	item, err := f.items.FindByID(f.ctx, f.watch.ID)
	require.NoError(t, err)
	return item
}

func (f *fixture) purchases(t *testing.T) int {
	t.Helper()
	c, err := f.people.FindByID(f.ctx, f.customer.ID)
	require.NoError(t, err)
	return c.Purchases
}

// =============================================================================
// RECORD
// =============================================================================

func TestRecord_LastUnitMarksItemSold(t *testing.T) {
	// GIVEN: ROL002 with a single unit
	f := newFixture(t, 1)

	// WHEN: Selling one unit
	sale, inv, err := f.ledger.Record(f.ctx, f.input(1), "staff")
	require.NoError(t, err)

	// THEN: Stock is 0 and sold, one purchase counted, one Sales invoice
	item := f.stock(t)
	assert.Equal(t, 0, item.Quantity)
	assert.Equal(t, inventory.StatusSold, item.Status)
	assert.Equal(t, 1, f.purchases(t))

	assert.Equal(t, sales.StatusCompleted, sale.Status)
	assert.Equal(t, "Rolex GMT", sale.WatchName)
	assert.True(t, sale.TotalAmount.Equal(generic.Money(900000)))
	assert.Equal(t, inv.ID, sale.InvoiceID)

	related, err := f.bills.ListFor(f.ctx, sale.ID, invoices.RelatedSale)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, invoices.TypeSales, related[0].Type)
	assert.Equal(t, "SAL-000001", related[0].InvoiceNo)
}

func TestRecord_InsufficientStock(t *testing.T) {
	f := newFixture(t, 2)

	_, _, err := f.ledger.Record(f.ctx, f.input(3), "staff")

	var stock *generic.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, 2, stock.Available)
	assert.Equal(t, 3, stock.Requested)
	assert.Equal(t, 2, f.stock(t).Quantity)
	assert.Equal(t, 0, f.purchases(t))
}

func TestRecord_Validation(t *testing.T) {
	f := newFixture(t, 2)

	tests := []struct {
		name  string
		edit  func(*sales.Input)
		field string
	}{
		{"missing customer", func(in *sales.Input) { in.CustomerID = "" }, "customer_id"},
		{"zero quantity", func(in *sales.Input) { in.Quantity = 0 }, "quantity"},
		{"zero price", func(in *sales.Input) { in.Price = generic.Money(0) }, "price"},
		{"unknown payment", func(in *sales.Input) { in.PaymentMethod = "Barter" }, "payment_method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input(1)
			tt.edit(&in)
			_, _, err := f.ledger.Record(f.ctx, in, "staff")
			var verr *generic.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestRecord_AcceptsBankTransfer(t *testing.T) {
	f := newFixture(t, 1)
	in := f.input(1)
	in.PaymentMethod = "Bank Transfer"

	_, _, err := f.ledger.Record(f.ctx, in, "staff")
	assert.NoError(t, err)
}

func TestRecord_UnknownReferences(t *testing.T) {
	f := newFixture(t, 1)

	in := f.input(1)
	in.WatchID = "missing"
	_, _, err := f.ledger.Record(f.ctx, in, "staff")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	in = f.input(1)
	in.CustomerID = "missing"
	_, _, err = f.ledger.Record(f.ctx, in, "staff")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// EDIT / DELETE
// =============================================================================

func TestEdit_ValidatesAgainstRestoredStock(t *testing.T) {
	// GIVEN: 3 in stock, a sale of 2 leaves 1
	f := newFixture(t, 3)
	sale, _, err := f.ledger.Record(f.ctx, f.input(2), "staff")
	require.NoError(t, err)
	require.Equal(t, 1, f.stock(t).Quantity)

	// WHEN: Editing the sale to 3 units (1 on hand + 2 restored)
	edited, err := f.ledger.Edit(f.ctx, sale.ID, f.input(3))
	require.NoError(t, err)

	// THEN: Stock is 0, purchases still 1, invoice unchanged
	assert.Equal(t, 0, f.stock(t).Quantity)
	assert.Equal(t, 1, f.purchases(t))
	assert.Equal(t, sale.InvoiceID, edited.InvoiceID)
	assert.True(t, edited.TotalAmount.Equal(generic.Money(2700000)))

	all, err := f.bills.List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "edit issues no new invoice")
}

func TestEdit_RejectsMoreThanAvailable(t *testing.T) {
	f := newFixture(t, 3)
	sale, _, err := f.ledger.Record(f.ctx, f.input(2), "staff")
	require.NoError(t, err)

	_, err = f.ledger.Edit(f.ctx, sale.ID, f.input(4))

	var stock *generic.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, 3, stock.Available)
}

func TestEditThenDelete_EqualsNeverSelling(t *testing.T) {
	f := newFixture(t, 5)
	sale, _, err := f.ledger.Record(f.ctx, f.input(2), "staff")
	require.NoError(t, err)

	_, err = f.ledger.Edit(f.ctx, sale.ID, f.input(4))
	require.NoError(t, err)
	_, err = f.ledger.Delete(f.ctx, sale.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, f.stock(t).Quantity)
	assert.Equal(t, inventory.StatusAvailable, f.stock(t).Status)
	assert.Equal(t, 0, f.purchases(t))
}

func TestDelete_KeepsInvoiceAndClampsCounter(t *testing.T) {
	f := newFixture(t, 1)
	sale, inv, err := f.ledger.Record(f.ctx, f.input(1), "staff")
	require.NoError(t, err)

	// Counter already lowered out of band
	_, err = f.people.DecrementPurchases(f.ctx, f.customer.ID)
	require.NoError(t, err)

	_, err = f.ledger.Delete(f.ctx, sale.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, f.purchases(t))
	assert.Equal(t, 1, f.stock(t).Quantity)

	kept, err := f.bills.Get(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.ID, kept.RelatedID)

	_, err = f.ledger.Get(f.ctx, sale.ID)
	assert.True(t, generic.IsNotFound(err))
}

func TestJournal_RecordsApplyAndReversal(t *testing.T) {
	f := newFixture(t, 5)
	sale, _, err := f.ledger.Record(f.ctx, f.input(2), "staff")
	require.NoError(t, err)
	_, err = f.ledger.Edit(f.ctx, sale.ID, f.input(1))
	require.NoError(t, err)

	pending := f.journal.Pending()
	stock := generic.MovementFilter{SubjectID: f.watch.ID, Kind: generic.MovementStock}
	assert.Equal(t, -1, generic.NetDelta(pending, stock))
	assert.Equal(t, 1, generic.NetDelta(pending, generic.MovementFilter{Kind: generic.MovementPurchases}))

	var reversals int
	for _, m := range pending {
		if m.Type == generic.MovementReversal {
			reversals++
		}
	}
	assert.Equal(t, 2, reversals)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestQueriesAndStats(t *testing.T) {
	f := newFixture(t, 5)
	_, _, err := f.ledger.Record(f.ctx, f.input(1), "staff")
	require.NoError(t, err)
	cash := f.input(2)
	cash.PaymentMethod = "Cash"
	_, _, err = f.ledger.Record(f.ctx, cash, "staff")
	require.NoError(t, err)

	mine, err := f.ledger.ByCustomer(f.ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	recent, err := f.ledger.Recent(f.ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	march, err := f.ledger.FilterByMonth(f.ctx, 2025, time.March)
	require.NoError(t, err)
	assert.Len(t, march, 2)
	april, err := f.ledger.FilterByMonth(f.ctx, 2025, time.April)
	require.NoError(t, err)
	assert.Empty(t, april)

	r, err := generic.ParseDateRange("2025-03-10", "2025-03-10")
	require.NoError(t, err)
	inRange, err := f.ledger.FilterByDateRange(f.ctx, r)
	require.NoError(t, err)
	assert.Len(t, inRange, 2)

	found, err := f.ledger.Search(f.ctx, "cash")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	refs, err := f.ledger.References(f.ctx, f.watch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, refs)

	stats, err := f.ledger.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 3, stats.UnitsSold)
	assert.True(t, stats.TotalRevenue.Equal(generic.Money(2700000)))
	assert.True(t, stats.AverageSale.Equal(generic.Money(1350000)))
	assert.True(t, stats.ByPaymentMethod["Cash"].Equal(generic.Money(1800000)))
	assert.True(t, stats.ByBrand["Rolex"].Equal(generic.Money(2700000)))

	monthly, err := f.ledger.MonthlyRevenue(f.ctx, 2025)
	require.NoError(t, err)
	assert.True(t, monthly[time.March-1].Equal(generic.Money(2700000)))
	assert.True(t, monthly[0].IsZero())
}

package invoices_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/generic/store"
	"github.com/warp/watchcraft/invoices"
)

var issuedAt = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func newTestLedger() *invoices.Ledger {
	mem := store.NewMemory()
	return invoices.NewLedger(mem, mem, generic.FixedClock(issuedAt))
}

var customer = customers.Customer{
	ID:      "cust-1",
	Name:    "Raj Kumar",
	Phone:   "+91-9876543210",
	Address: "123 MG Road, Bangalore",
}

func saleSource(id string) invoices.SaleSource {
	return invoices.SaleSource{
		SaleID:   id,
		Customer: customer,
		Line: invoices.SaleLine{
			WatchID: "w-1", WatchCode: "ROL002", WatchName: "Rolex GMT",
			Price: generic.Money(900000), Quantity: 1, PaymentMethod: "Card",
		},
		Amount:    generic.Money(900000),
		CreatedBy: "staff",
	}
}

func serviceSource(id string) invoices.ServiceSource {
	return invoices.ServiceSource{
		TicketID:  id,
		Customer:  customer,
		Line:      invoices.ServiceLine{WatchName: "Omega Seamaster", Brand: "Omega", Issue: "Battery"},
		Cost:      generic.Money(1500),
		CreatedBy: "staff",
	}
}

func TestFromSale_SnapshotsCustomerAndNumbersSequentially(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	first, err := l.FromSale(ctx, saleSource("sale-1"))
	require.NoError(t, err)
	second, err := l.FromSale(ctx, saleSource("sale-2"))
	require.NoError(t, err)

	assert.Equal(t, "SAL-000001", first.InvoiceNo)
	assert.Equal(t, "SAL-000002", second.InvoiceNo)
	assert.Equal(t, "Sales Invoice", first.SubType)
	assert.Equal(t, invoices.RelatedSale, first.RelatedType)
	assert.Equal(t, "Raj Kumar", first.CustomerName)
	assert.Equal(t, "123 MG Road, Bangalore", first.CustomerAddress)
	assert.Equal(t, invoices.StatusGenerated, first.Status)
	assert.True(t, first.Amount.Equal(generic.Money(900000)))
	require.NotNil(t, first.Sale)
	assert.Equal(t, "ROL002", first.Sale.WatchCode)
}

func TestServiceInvoices_HaveOwnSequences(t *testing.T) {
	// GIVEN: A sale invoice already exists
	l := newTestLedger()
	ctx := context.Background()
	_, err := l.FromSale(ctx, saleSource("sale-1"))
	require.NoError(t, err)

	// WHEN: Issuing acknowledgement and completion for a ticket
	ack, err := l.FromServiceAcknowledgement(ctx, serviceSource("svc-1"))
	require.NoError(t, err)
	src := serviceSource("svc-1")
	src.Line.WorkDescription = "Replaced battery"
	src.Line.WarrantyMonths = 6
	done, err := l.FromServiceCompletion(ctx, src)
	require.NoError(t, err)

	// THEN: Each prefix starts at 1, acknowledgement is free
	assert.Equal(t, "ACK-000001", ack.InvoiceNo)
	assert.True(t, ack.Amount.IsZero())
	assert.True(t, ack.Service.EstimatedCost.Equal(generic.Money(1500)))
	assert.Equal(t, "SVC-000001", done.InvoiceNo)
	assert.True(t, done.Amount.Equal(generic.Money(1500)))
	assert.Equal(t, 6, done.Service.WarrantyMonths)

	related, err := l.ListFor(ctx, "svc-1", invoices.RelatedService)
	require.NoError(t, err)
	require.Len(t, related, 2)
	assert.Equal(t, invoices.TypeServiceAcknowledgement, related[0].Type)
	assert.Equal(t, invoices.TypeServiceCompletion, related[1].Type)
}

func TestSnapshot_IsNotAffectedByLaterCustomerChanges(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	src := saleSource("sale-1")
	inv, err := l.FromSale(ctx, src)
	require.NoError(t, err)

	src.Customer.Name = "Renamed"
	got, err := l.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Raj Kumar", got.CustomerName)
}

func TestQueries(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	_, err := l.FromSale(ctx, saleSource("sale-1"))
	require.NoError(t, err)
	_, err = l.FromServiceAcknowledgement(ctx, serviceSource("svc-1"))
	require.NoError(t, err)
	_, err = l.FromServiceCompletion(ctx, serviceSource("svc-1"))
	require.NoError(t, err)

	sales, err := l.ByType(ctx, invoices.TypeSales)
	require.NoError(t, err)
	assert.Len(t, sales, 1)

	found, err := l.Search(ctx, "seamaster")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = l.Search(ctx, "SAL-0000")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByType[invoices.TypeServiceCompletion])
	assert.True(t, stats.TotalRevenue.Equal(generic.Money(901500)), "got %s", stats.TotalRevenue)

	_, err = l.Get(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}

func TestParseType(t *testing.T) {
	typ, ok := invoices.ParseType("ACK")
	assert.True(t, ok)
	assert.Equal(t, invoices.TypeServiceAcknowledgement, typ)

	typ, ok = invoices.ParseType("Sales")
	assert.True(t, ok)
	assert.Equal(t, invoices.TypeSales, typ)

	_, ok = invoices.ParseType("refund")
	assert.False(t, ok)
}

func TestFormatAmount(t *testing.T) {
	f, err := invoices.NewFormatter("usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", f.Code())

	got := f.FormatAmount(generic.Money(1250.5))
	assert.Contains(t, got, "$")
	assert.Contains(t, got, "1,250.50")

	_, err = invoices.NewFormatter("nope")
	assert.Error(t, err)
}

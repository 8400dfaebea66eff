package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/generic/store"
	"github.com/warp/watchcraft/inventory"
	"github.com/warp/watchcraft/invoices"
	"github.com/warp/watchcraft/shop"
	"github.com/warp/watchcraft/tickets"
)

func item(id, code string, qty int) inventory.Item {
	return inventory.Item{
		ID: id, Code: code, Brand: "Rolex", Model: "Submariner",
		Price: generic.Money(850000), Quantity: qty, Status: inventory.StatusFor(qty),
	}
}

func TestMemory_GetMissingReturnsNotFound(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	_, err := mem.GetItem(ctx, "nope")
	assert.True(t, generic.IsNotFound(err))
	_, err = mem.GetCustomer(ctx, "nope")
	assert.True(t, generic.IsNotFound(err))
	_, err = mem.GetSale(ctx, "nope")
	assert.True(t, generic.IsNotFound(err))
	_, err = mem.GetTicket(ctx, "nope")
	assert.True(t, generic.IsNotFound(err))
	_, err = mem.GetInvoice(ctx, "nope")
	assert.True(t, generic.IsNotFound(err))
	_, err = mem.GetUser(ctx, "nope")
	assert.True(t, generic.IsNotFound(err))
	assert.True(t, generic.IsNotFound(mem.DeleteItem(ctx, "nope")))
}

func TestMemory_UniqueItemCode(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.SaveItem(ctx, item("a", "ROL001", 1)))

	// Re-saving the same record is an update.
	require.NoError(t, mem.SaveItem(ctx, item("a", "ROL001", 3)))

	err := mem.SaveItem(ctx, item("b", "ROL001", 1))
	assert.ErrorIs(t, err, generic.ErrDuplicate)
}

func TestMemory_InvoicesAreAppendOnly(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	inv := invoices.Invoice{ID: "i1", InvoiceNo: "SAL-000001", Type: invoices.TypeSales}
	require.NoError(t, mem.AppendInvoice(ctx, inv))

	assert.ErrorIs(t, mem.AppendInvoice(ctx, inv), generic.ErrDuplicate)
	assert.ErrorIs(t, mem.AppendInvoice(ctx, invoices.Invoice{ID: "i2", InvoiceNo: "SAL-000001"}), generic.ErrDuplicate)
}

func TestMemory_SequencesPerPrefix(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := mem.NextSequence(ctx, "SAL")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	n, err := mem.NextSequence(ctx, "ACK")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemory_MovementsFilteredInOrder(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.AppendMovements(ctx, []generic.Movement{
		{ID: "1", Kind: generic.MovementStock, SubjectID: "w1", Delta: -2, ReferenceID: "s1"},
		{ID: "2", Kind: generic.MovementPurchases, SubjectID: "c1", Delta: 1, ReferenceID: "s1"},
		{ID: "3", Kind: generic.MovementStock, SubjectID: "w1", Delta: 2, ReferenceID: "s1"},
	}))

	got, err := mem.Movements(ctx, generic.MovementFilter{SubjectID: "w1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

func TestMemory_TicketNotesAreCopied(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	tk := tickets.Ticket{ID: "t1", Notes: []tickets.Note{{Text: "received"}}}
	require.NoError(t, mem.SaveTicket(ctx, tk))

	tk.Notes[0].Text = "changed"
	got, err := mem.GetTicket(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "received", got.Notes[0].Text)
}

func TestMemory_InvoiceLinesAreCopied(t *testing.T) {
	// GIVEN: A stored sales invoice
	mem := store.NewMemory()
	ctx := context.Background()
	inv := invoices.Invoice{
		ID: "i1", InvoiceNo: "SAL-000001", Type: invoices.TypeSales,
		Sale: &invoices.SaleLine{WatchID: "w1", WatchName: "Rolex Submariner", Quantity: 1},
	}
	require.NoError(t, mem.AppendInvoice(ctx, inv))

	// WHEN: Both the written and the read copies are changed
	inv.Sale.WatchName = "changed"
	got, err := mem.GetInvoice(ctx, "i1")
	require.NoError(t, err)
	got.Sale.WatchName = "changed again"
	listed, err := mem.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].Sale.Quantity = 9

	// THEN: The stored invoice is untouched
	got, err = mem.GetInvoice(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Rolex Submariner", got.Sale.WatchName)
	assert.Equal(t, 1, got.Sale.Quantity)
}

func TestMemory_TicketCompletionIsCopied(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	tk := tickets.Ticket{ID: "t1", Completion: &tickets.Completion{Description: "Crown replaced", WarrantyMonths: 6}}
	require.NoError(t, mem.SaveTicket(ctx, tk))

	tk.Completion.WarrantyMonths = 60
	got, err := mem.GetTicket(ctx, "t1")
	require.NoError(t, err)
	got.Completion.Description = "changed"

	got, err = mem.GetTicket(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Crown replaced", got.Completion.Description)
	assert.Equal(t, 6, got.Completion.WarrantyMonths)
}

func TestMemory_WithTxCommits(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	err := mem.WithTx(ctx, func(tx shop.Tables) error {
		return tx.SaveItem(ctx, item("a", "ROL001", 1))
	})
	require.NoError(t, err)

	_, err = mem.GetItem(ctx, "a")
	assert.NoError(t, err)
}

func TestMemory_WithTxRollsBackEveryTable(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.SaveItem(ctx, item("a", "ROL001", 5)))
	boom := errors.New("boom")

	// WHEN: a transaction writes to several tables and then fails
	err := mem.WithTx(ctx, func(tx shop.Tables) error {
		require.NoError(t, tx.SaveItem(ctx, item("a", "ROL001", 0)))
		require.NoError(t, tx.SaveItem(ctx, item("b", "OME001", 1)))
		require.NoError(t, tx.AppendInvoice(ctx, invoices.Invoice{ID: "i1", InvoiceNo: "SAL-000001"}))
		require.NoError(t, tx.AppendMovements(ctx, []generic.Movement{{ID: "m1", Delta: -5}}))
		_, err := tx.NextSequence(ctx, "SAL")
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	// THEN: nothing the transaction wrote is visible
	got, err := mem.GetItem(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	_, err = mem.GetItem(ctx, "b")
	assert.True(t, generic.IsNotFound(err))
	list, err := mem.ListInvoices(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	moves, err := mem.Movements(ctx, generic.MovementFilter{})
	require.NoError(t, err)
	assert.Empty(t, moves)
	n, err := mem.NextSequence(ctx, "SAL")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemory_WithTxHonorsCancelledContext(t *testing.T) {
	mem := store.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := mem.WithTx(ctx, func(shop.Tables) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemory_Reset(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.SaveItem(ctx, item("a", "ROL001", 1)))

	require.NoError(t, mem.Reset(ctx))

	list, err := mem.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

package tickets_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/generic/store"
	"github.com/warp/watchcraft/invoices"
	"github.com/warp/watchcraft/tickets"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var opened = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx     context.Context
	people  *customers.Ledger
	bills   *invoices.Ledger
	journal *generic.Journal
	ledger  *tickets.Ledger
	raj     customers.Customer
	priya   customers.Customer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := generic.FixedClock(opened)
	mem := store.NewMemory()
	f := &fixture{ctx: context.Background()}
	f.people = customers.NewLedger(mem, clock)
	f.bills = invoices.NewLedger(mem, mem, clock)
	f.journal = generic.NewJournal(mem, clock, "staff")
	f.ledger = tickets.NewLedger(mem, f.people, f.bills, f.journal, clock)

	var err error
	f.raj, err = f.people.AddCustomer(f.ctx, customers.Details{
		Name: "Raj Kumar", Email: "raj@email.com", Phone: "+91-9876543210",
	}, "admin")
	require.NoError(t, err)
	f.priya, err = f.people.AddCustomer(f.ctx, customers.Details{
		Name: "Priya Sharma", Email: "priya@email.com", Phone: "+91-9876543211",
	}, "admin")
	require.NoError(t, err)
	return f
}

func (f *fixture) input(customerID string) tickets.Input {
	return tickets.Input{
		CustomerID: customerID,
		Brand:      "Omega",
		Model:      "Seamaster",
		DialColor:  "Blue",
		MovementNo: "8800",
		Gender:     "Gents",
		CaseType:   "Stainless Steel",
		StrapType:  "Metal",
		Issue:      "Running slow",
		Cost:       generic.Money(2500),
	}
}

func (f *fixture) services(t *testing.T, id string) int {
	t.Helper()
	c, err := f.people.FindByID(f.ctx, id)
	require.NoError(t, err)
	return c.ServiceCount
}

func (f *fixture) invoicesFor(t *testing.T, ticketID string) []invoices.Invoice {
	t.Helper()
	list, err := f.bills.ListFor(f.ctx, ticketID, invoices.RelatedService)
	require.NoError(t, err)
	return list
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestCreate_IssuesAcknowledgement(t *testing.T) {
	f := newFixture(t)

	ticket, ack, err := f.ledger.Create(f.ctx, f.input(f.raj.ID), "staff")
	require.NoError(t, err)

	assert.Equal(t, tickets.StatusPending, ticket.Status)
	assert.Equal(t, "Omega Seamaster", ticket.WatchName)
	assert.Equal(t, "Raj Kumar", ticket.CustomerName)
	assert.Equal(t, 1, f.services(t, f.raj.ID))
	assert.Equal(t, invoices.TypeServiceAcknowledgement, ack.Type)
	assert.True(t, ack.Amount.IsZero())
	assert.Equal(t, ack.ID, ticket.AcknowledgementInvoiceID)
	assert.Len(t, f.invoicesFor(t, ticket.ID), 1)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	in := f.input(f.raj.ID)
	in.DialColor = "  "
	_, _, err := f.ledger.Create(f.ctx, in, "staff")
	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "dial_color", verr.Field)

	in = f.input(f.raj.ID)
	in.Cost = generic.Money(-1)
	_, _, err = f.ledger.Create(f.ctx, in, "staff")
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, _, err = f.ledger.Create(f.ctx, f.input("missing"), "staff")
	assert.ErrorIs(t, err, generic.ErrNotFound)
	assert.Equal(t, 0, f.services(t, f.raj.ID))
}

func TestCompletionScenario(t *testing.T) {
	// GIVEN: A new ticket moved to in-progress
	f := newFixture(t)
	ticket, _, err := f.ledger.Create(f.ctx, f.input(f.raj.ID), "staff")
	require.NoError(t, err)
	ticket, bill, err := f.ledger.Transition(f.ctx, ticket.ID, tickets.StatusInProgress, nil, "staff")
	require.NoError(t, err)
	assert.Nil(t, bill)
	require.NotNil(t, ticket.StartedAt)

	// WHEN: Completing without a work description
	_, _, err = f.ledger.Transition(f.ctx, ticket.ID, tickets.StatusCompleted, nil, "staff")

	// THEN: Rejected, still in progress
	assert.ErrorIs(t, err, generic.ErrValidation)
	_, _, err = f.ledger.Transition(f.ctx, ticket.ID, tickets.StatusCompleted,
		&tickets.Completion{Description: "   ", WarrantyMonths: 6}, "staff")
	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "description", verr.Field)
	got, err := f.ledger.Get(f.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, tickets.StatusInProgress, got.Status)

	// WHEN: Completing with description and 6 months warranty
	done, bill, err := f.ledger.Transition(f.ctx, ticket.ID, tickets.StatusCompleted,
		&tickets.Completion{Description: "Serviced movement", WarrantyMonths: 6}, "staff")
	require.NoError(t, err)

	// THEN: Completed with one completion invoice besides the acknowledgement
	assert.Equal(t, tickets.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, bill)
	assert.True(t, bill.Amount.Equal(generic.Money(2500)))
	assert.Equal(t, 6, bill.Service.WarrantyMonths)
	assert.Equal(t, "Serviced movement", bill.Service.WorkDescription)

	related := f.invoicesFor(t, ticket.ID)
	require.Len(t, related, 2)
	assert.Equal(t, invoices.TypeServiceAcknowledgement, related[0].Type)
	assert.Equal(t, invoices.TypeServiceCompletion, related[1].Type)
}

func TestTransition_WarrantyBounds(t *testing.T) {
	f := newFixture(t)
	ticket, _, err := f.ledger.Create(f.ctx, f.input(f.raj.ID), "staff")
	require.NoError(t, err)
	_, _, err = f.ledger.Transition(f.ctx, ticket.ID, tickets.StatusInProgress, nil, "staff")
	require.NoError(t, err)

	for _, months := range []int{-1, 61} {
		_, _, err = f.ledger.Transition(f.ctx, ticket.ID, tickets.StatusCompleted,
			&tickets.Completion{Description: "Done", WarrantyMonths: months}, "staff")
		assert.ErrorIs(t, err, generic.ErrValidation, "warranty %d", months)
	}

	for _, months := range []int{0, 60} {
		assert.NoError(t, generic.Validate(tickets.Completion{Description: "Done", WarrantyMonths: months}))
	}
}

func TestTransition_StateMachine(t *testing.T) {
	all := tickets.Statuses
	allowed := map[[2]tickets.Status]bool{
		{tickets.StatusPending, tickets.StatusInProgress}:   true,
		{tickets.StatusPending, tickets.StatusOnHold}:       true,
		{tickets.StatusInProgress, tickets.StatusCompleted}: true,
		{tickets.StatusInProgress, tickets.StatusOnHold}:    true,
		{tickets.StatusOnHold, tickets.StatusInProgress}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]tickets.Status{from, to}], tickets.CanTransition(from, to),
				"%s -> %s", from, to)
		}
	}
}

func TestTransition_RejectsIllegalMoves(t *testing.T) {
	f := newFixture(t)
	ticket, _, err := f.ledger.Create(f.ctx, f.input(f.raj.ID), "staff")
	require.NoError(t, err)

	// pending -> completed skips in-progress
	_, _, err = f.ledger.Transition(f.ctx, ticket.ID, tickets.StatusCompleted,
		&tickets.Completion{Description: "Done"}, "staff")
	assert.True(t, errors.Is(err, generic.ErrInvalidTransition))
	assert.True(t, errors.Is(err, generic.ErrValidation))

	// on-hold -> completed is not allowed either
	held, _, err := f.ledger.Transition(f.ctx, ticket.ID, tickets.StatusOnHold, nil, "staff")
	require.NoError(t, err)
	require.NotNil(t, held.HeldAt)
	_, _, err = f.ledger.Transition(f.ctx, ticket.ID, tickets.StatusCompleted,
		&tickets.Completion{Description: "Done"}, "staff")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	// completed is terminal
	_, _, err = f.ledger.Transition(f.ctx, ticket.ID, tickets.StatusInProgress, nil, "staff")
	require.NoError(t, err)
	_, _, err = f.ledger.Transition(f.ctx, ticket.ID, tickets.StatusCompleted,
		&tickets.Completion{Description: "Done"}, "staff")
	require.NoError(t, err)
	_, _, err = f.ledger.Transition(f.ctx, ticket.ID, tickets.StatusInProgress, nil, "staff")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	assert.Len(t, f.invoicesFor(t, ticket.ID), 2, "exactly one acknowledgement and one completion")
}

// =============================================================================
// EDIT / DELETE
// =============================================================================

func TestEdit_MovesServiceCountToNewCustomer(t *testing.T) {
	f := newFixture(t)
	ticket, _, err := f.ledger.Create(f.ctx, f.input(f.raj.ID), "staff")
	require.NoError(t, err)

	in := f.input(f.priya.ID)
	in.Cost = generic.Money(3000)
	edited, err := f.ledger.Edit(f.ctx, ticket.ID, in)
	require.NoError(t, err)

	assert.Equal(t, "Priya Sharma", edited.CustomerName)
	assert.True(t, edited.Cost.Equal(generic.Money(3000)))
	assert.Equal(t, 0, f.services(t, f.raj.ID))
	assert.Equal(t, 1, f.services(t, f.priya.ID))
	assert.Len(t, f.invoicesFor(t, ticket.ID), 1, "edit issues no invoice")

	net := generic.NetDelta(f.journal.Pending(), generic.MovementFilter{Kind: generic.MovementServices})
	assert.Equal(t, 1, net)
}

func TestDelete_DecrementsAndKeepsInvoices(t *testing.T) {
	f := newFixture(t)
	ticket, ack, err := f.ledger.Create(f.ctx, f.input(f.raj.ID), "staff")
	require.NoError(t, err)

	_, err = f.ledger.Delete(f.ctx, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, f.services(t, f.raj.ID))
	kept, err := f.bills.Get(f.ctx, ack.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, kept.RelatedID)

	_, err = f.ledger.Delete(f.ctx, ticket.ID)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestNotesAndEstimatedDelivery(t *testing.T) {
	f := newFixture(t)
	ticket, _, err := f.ledger.Create(f.ctx, f.input(f.raj.ID), "staff")
	require.NoError(t, err)

	ticket, err = f.ledger.AddNote(f.ctx, ticket.ID, "Customer called", "owner")
	require.NoError(t, err)
	require.Len(t, ticket.Notes, 1)
	assert.Equal(t, "owner", ticket.Notes[0].AddedBy)

	_, err = f.ledger.AddNote(f.ctx, ticket.ID, " ", "owner")
	assert.ErrorIs(t, err, generic.ErrValidation)

	ticket, err = f.ledger.SetEstimatedDelivery(f.ctx, ticket.ID, opened.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.NotNil(t, ticket.EstimatedDelivery)
	assert.Equal(t, "2025-03-17", ticket.EstimatedDelivery.Format(generic.DateLayout))

	_, err = f.ledger.SetEstimatedDelivery(f.ctx, ticket.ID, opened.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, generic.ErrValidation)

	ticket, err = f.ledger.SetEstimatedDelivery(f.ctx, ticket.ID, time.Time{})
	require.NoError(t, err)
	assert.Nil(t, ticket.EstimatedDelivery)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestQueriesAndStats(t *testing.T) {
	f := newFixture(t)
	first, _, err := f.ledger.Create(f.ctx, f.input(f.raj.ID), "staff")
	require.NoError(t, err)
	second := f.input(f.priya.ID)
	second.Brand = "Titan"
	second.Cost = generic.Money(500)
	_, _, err = f.ledger.Create(f.ctx, second, "staff")
	require.NoError(t, err)

	_, _, err = f.ledger.Transition(f.ctx, first.ID, tickets.StatusInProgress, nil, "staff")
	require.NoError(t, err)
	_, _, err = f.ledger.Transition(f.ctx, first.ID, tickets.StatusCompleted,
		&tickets.Completion{Description: "Cleaned", WarrantyMonths: 3}, "staff")
	require.NoError(t, err)

	pending, err := f.ledger.ByStatus(f.ctx, tickets.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	mine, err := f.ledger.ByCustomer(f.ctx, f.raj.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	open, err := f.ledger.Incomplete(f.ctx, 5)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Titan Seamaster", open[0].WatchName)

	march, err := f.ledger.FilterByMonth(f.ctx, 2025, time.March)
	require.NoError(t, err)
	assert.Len(t, march, 2)

	today, err := generic.NewDateRange(opened, opened)
	require.NoError(t, err)
	completed, err := f.ledger.CompletedBetween(f.ctx, today)
	require.NoError(t, err)
	assert.Len(t, completed, 1)

	found, err := f.ledger.Search(f.ctx, "titan")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	stats, err := f.ledger.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[tickets.StatusCompleted])
	assert.Equal(t, 1, stats.ByStatus[tickets.StatusPending])
	assert.Equal(t, 0, stats.ByStatus[tickets.StatusOnHold])
	assert.True(t, stats.Revenue.Equal(generic.Money(2500)))
	assert.True(t, stats.AverageCost.Equal(generic.Money(1500)))
}

func TestParseStatus(t *testing.T) {
	s, ok := tickets.ParseStatus(" In-Progress ")
	assert.True(t, ok)
	assert.Equal(t, tickets.StatusInProgress, s)

	_, ok = tickets.ParseStatus("cancelled")
	assert.False(t, ok)
}

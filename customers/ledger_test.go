package customers_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/generic/store"
)

func newTestLedger() *customers.Ledger {
	clock := generic.FixedClock(time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))
	return customers.NewLedger(store.NewMemory(), clock)
}

func raj() customers.Details {
	return customers.Details{
		Name:    "Raj Kumar",
		Email:   "raj@email.com",
		Phone:   "+91-9876543210",
		Address: "123 MG Road, Bangalore",
	}
}

func priya() customers.Details {
	return customers.Details{
		Name:  "Priya Sharma",
		Email: "priya@email.com",
		Phone: "+91-9876543211",
	}
}

func TestAddCustomer(t *testing.T) {
	l := newTestLedger()
	c, err := l.AddCustomer(context.Background(), raj(), "admin")
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, 0, c.Purchases)
	assert.Equal(t, 0, c.ServiceCount)
	assert.Equal(t, "admin", c.CreatedBy)
}

func TestAddCustomer_Validation(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	tests := []struct {
		name  string
		edit  func(*customers.Details)
		field string
	}{
		{"missing name", func(d *customers.Details) { d.Name = " " }, "name"},
		{"bad email", func(d *customers.Details) { d.Email = "raj-at-email" }, "email"},
		{"short phone", func(d *customers.Details) { d.Phone = "12345" }, "phone"},
		{"letters in phone", func(d *customers.Details) { d.Phone = "call-me-maybe" }, "phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := raj()
			tt.edit(&in)
			_, err := l.AddCustomer(ctx, in, "admin")
			var verr *generic.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestAddCustomer_RejectsDuplicates(t *testing.T) {
	// GIVEN: Raj is on file
	l := newTestLedger()
	ctx := context.Background()
	_, err := l.AddCustomer(ctx, raj(), "admin")
	require.NoError(t, err)

	// WHEN: Another customer reuses his email (different case)
	dupEmail := priya()
	dupEmail.Email = "RAJ@email.com"
	_, err = l.AddCustomer(ctx, dupEmail, "admin")

	// THEN: DuplicateError on email
	var dup *generic.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)

	// AND: Reusing the phone is rejected too
	dupPhone := priya()
	dupPhone.Phone = raj().Phone
	_, err = l.AddCustomer(ctx, dupPhone, "admin")
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "phone", dup.Field)
}

func TestUpdateCustomer_ExcludesSelfFromUniqueness(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	r, err := l.AddCustomer(ctx, raj(), "admin")
	require.NoError(t, err)
	_, err = l.AddCustomer(ctx, priya(), "admin")
	require.NoError(t, err)

	in := raj()
	in.Address = "42 Brigade Road"
	updated, err := l.UpdateCustomer(ctx, r.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "42 Brigade Road", updated.Address)

	in.Email = priya().Email
	_, err = l.UpdateCustomer(ctx, r.ID, in)
	assert.ErrorIs(t, err, generic.ErrDuplicate)
}

func TestCounters_ClampAtZero(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	c, err := l.AddCustomer(ctx, raj(), "admin")
	require.NoError(t, err)

	c, err = l.IncrementPurchases(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Purchases)

	// Called twice, the counter stops at zero
	_, err = l.DecrementPurchases(ctx, c.ID)
	require.NoError(t, err)
	c, err = l.DecrementPurchases(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Purchases)

	c, err = l.DecrementServices(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, c.ServiceCount)
}

func TestDeleteCustomer_RejectsActiveCustomers(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	c, err := l.AddCustomer(ctx, raj(), "admin")
	require.NoError(t, err)
	_, err = l.IncrementServices(ctx, c.ID)
	require.NoError(t, err)

	_, err = l.DeleteCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = l.DecrementServices(ctx, c.ID)
	require.NoError(t, err)
	_, err = l.DeleteCustomer(ctx, c.ID)
	require.NoError(t, err)

	_, err = l.FindByID(ctx, c.ID)
	assert.True(t, generic.IsNotFound(err))
}

func TestSearchAndStats(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	r, err := l.AddCustomer(ctx, raj(), "admin")
	require.NoError(t, err)
	_, err = l.AddCustomer(ctx, priya(), "admin")
	require.NoError(t, err)
	_, err = l.IncrementPurchases(ctx, r.ID)
	require.NoError(t, err)
	_, err = l.IncrementServices(ctx, r.ID)
	require.NoError(t, err)

	found, err := l.Search(ctx, "bangalore")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Raj Kumar", found[0].Name)

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Active)
	require.Len(t, stats.Top, 1)
	assert.Equal(t, r.ID, stats.Top[0].ID)
	assert.Equal(t, 2, stats.Top[0].Activity())
}

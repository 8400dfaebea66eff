package customers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/warp/watchcraft/generic"
)

const entityName = "customer"

type Ledger struct {
	repo  Repository
	clock generic.Clock
}

func NewLedger(repo Repository, clock generic.Clock) *Ledger {
	return &Ledger{repo: repo, clock: clock}
}

// =============================================================================
// COMMANDS
// =============================================================================

// AddCustomer stores a new customer with zeroed counters.
func (l *Ledger) AddCustomer(ctx context.Context, in Details, createdBy string) (Customer, error) {
	in = normalize(in)
	if err := generic.Validate(in); err != nil {
		return Customer{}, err
	}
	if err := l.checkUnique(ctx, in, ""); err != nil {
		return Customer{}, err
	}
	c := Customer{
		ID:        generic.NewID(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
		CreatedAt: l.clock.Now(),
		CreatedBy: createdBy,
	}
	if err := l.repo.SaveCustomer(ctx, c); err != nil {
		return Customer{}, fmt.Errorf("save customer: %w", err)
	}
	return c, nil
}

// UpdateCustomer replaces the contact details. Counters are untouched.
func (l *Ledger) UpdateCustomer(ctx context.Context, id string, in Details) (Customer, error) {
	in = normalize(in)
	if err := generic.Validate(in); err != nil {
		return Customer{}, err
	}
	c, err := l.repo.GetCustomer(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if err := l.checkUnique(ctx, in, id); err != nil {
		return Customer{}, err
	}
	c.Name, c.Email, c.Phone, c.Address = in.Name, in.Email, in.Phone, in.Address
	if err := l.repo.SaveCustomer(ctx, c); err != nil {
		return Customer{}, fmt.Errorf("save customer: %w", err)
	}
	return c, nil
}

// DeleteCustomer removes a customer. Customers still referenced by a sale
// or service ticket cannot be deleted.
func (l *Ledger) DeleteCustomer(ctx context.Context, id string) (Customer, error) {
	c, err := l.repo.GetCustomer(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if c.Activity() > 0 {
		return Customer{}, generic.Invalid("customer",
			fmt.Sprintf("has %d sales and %d service tickets on record", c.Purchases, c.ServiceCount))
	}
	if err := l.repo.DeleteCustomer(ctx, id); err != nil {
		return Customer{}, fmt.Errorf("delete customer: %w", err)
	}
	return c, nil
}

func (l *Ledger) IncrementPurchases(ctx context.Context, id string) (Customer, error) {
	return l.adjust(ctx, id, func(c *Customer) { c.Purchases++ })
}

// DecrementPurchases lowers the purchase counter, never below zero.
func (l *Ledger) DecrementPurchases(ctx context.Context, id string) (Customer, error) {
	return l.adjust(ctx, id, func(c *Customer) { c.Purchases = max(c.Purchases-1, 0) })
}

func (l *Ledger) IncrementServices(ctx context.Context, id string) (Customer, error) {
	return l.adjust(ctx, id, func(c *Customer) { c.ServiceCount++ })
}

// DecrementServices lowers the service counter, never below zero.
func (l *Ledger) DecrementServices(ctx context.Context, id string) (Customer, error) {
	return l.adjust(ctx, id, func(c *Customer) { c.ServiceCount = max(c.ServiceCount-1, 0) })
}

func (l *Ledger) adjust(ctx context.Context, id string, fn func(*Customer)) (Customer, error) {
	c, err := l.repo.GetCustomer(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	fn(&c)
	if err := l.repo.SaveCustomer(ctx, c); err != nil {
		return Customer{}, fmt.Errorf("save customer: %w", err)
	}
	return c, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (l *Ledger) FindByID(ctx context.Context, id string) (Customer, error) {
	return l.repo.GetCustomer(ctx, id)
}

// List returns customers ordered by name.
func (l *Ledger) List(ctx context.Context) ([]Customer, error) {
	all, err := l.repo.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
	})
	return all, nil
}

func (l *Ledger) Search(ctx context.Context, query string) ([]Customer, error) {
	all, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	return generic.Filter(all, func(c Customer) bool {
		return generic.Matches(query, c.Name, c.Email, c.Phone, c.Address)
	}), nil
}

func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	all, err := l.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{Total: len(all)}
	for _, c := range all {
		if c.Activity() > 0 {
			s.Active++
		}
	}
	ranked := generic.Filter(all, func(c Customer) bool { return c.Activity() > 0 })
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Activity() > ranked[j].Activity() })
	if len(ranked) > TopCustomers {
		ranked = ranked[:TopCustomers]
	}
	s.Top = ranked
	return s, nil
}

func (l *Ledger) checkUnique(ctx context.Context, in Details, selfID string) error {
	all, err := l.repo.ListCustomers(ctx)
	if err != nil {
		return err
	}
	for _, c := range all {
		if c.ID == selfID {
			continue
		}
		if strings.EqualFold(c.Email, in.Email) {
			return &generic.DuplicateError{Entity: entityName, Field: "email", Value: in.Email}
		}
		if c.Phone == in.Phone {
			return &generic.DuplicateError{Entity: entityName, Field: "phone", Value: in.Phone}
		}
	}
	return nil
}

func normalize(in Details) Details {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	return in
}

// Package store provides the in-memory shop.Store.
package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/warp/watchcraft/access"
	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/inventory"
	"github.com/warp/watchcraft/invoices"
	"github.com/warp/watchcraft/sales"
	"github.com/warp/watchcraft/shop"
	"github.com/warp/watchcraft/tickets"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (default runtime store, tests)
// =============================================================================

// Memory keeps every table in maps keyed by id behind one RWMutex.
type Memory struct {
	mu sync.RWMutex
	t  tables
}

var _ shop.Store = (*Memory)(nil)

type tables struct {
	items     map[string]inventory.Item
	customers map[string]customers.Customer
	sales     map[string]sales.Sale
	tickets   map[string]tickets.Ticket
	invoices  map[string]invoices.Invoice
	invoiceNo map[string]string // invoice number -> id
	users     map[string]access.User
	movements []generic.Movement
	sequences map[string]int64
}

func NewMemory() *Memory {
	return &Memory{t: tables{
		items:     make(map[string]inventory.Item),
		customers: make(map[string]customers.Customer),
		sales:     make(map[string]sales.Sale),
		tickets:   make(map[string]tickets.Ticket),
		invoices:  make(map[string]invoices.Invoice),
		invoiceNo: make(map[string]string),
		users:     make(map[string]access.User),
		sequences: make(map[string]int64),
	}}
}

// WithTx runs fn with the write lock held. The tables are snapshotted
// first and restored if fn fails.
func (m *Memory) WithTx(ctx context.Context, fn func(shop.Tables) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.t.clone()
	if err := fn(&txView{t: &m.t}); err != nil {
		m.t = snapshot
		return err
	}
	return nil
}

// Reset drops all data.
func (m *Memory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = NewMemory().t
	return ctx.Err()
}

func (t *tables) clone() tables {
	return tables{
		items:     maps.Clone(t.items),
		customers: maps.Clone(t.customers),
		sales:     maps.Clone(t.sales),
		tickets:   maps.Clone(t.tickets),
		invoices:  maps.Clone(t.invoices),
		invoiceNo: maps.Clone(t.invoiceNo),
		users:     maps.Clone(t.users),
		movements: slices.Clone(t.movements),
		sequences: maps.Clone(t.sequences),
	}
}

// =============================================================================
// LOCKED ACCESS - Memory methods take the lock and delegate to tables
// =============================================================================

func (m *Memory) read(fn func(*tables)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(&m.t)
}

func (m *Memory) write(fn func(*tables) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&m.t)
}

func (m *Memory) GetItem(_ context.Context, id string) (item inventory.Item, err error) {
	m.read(func(t *tables) { item, err = t.getItem(id) })
	return item, err
}

func (m *Memory) ListItems(context.Context) (out []inventory.Item, err error) {
	m.read(func(t *tables) { out = values(t.items) })
	return out, nil
}

func (m *Memory) SaveItem(_ context.Context, item inventory.Item) error {
	return m.write(func(t *tables) error { return t.saveItem(item) })
}

func (m *Memory) DeleteItem(_ context.Context, id string) error {
	return m.write(func(t *tables) error { return t.deleteItem(id) })
}

func (m *Memory) GetCustomer(_ context.Context, id string) (c customers.Customer, err error) {
	m.read(func(t *tables) { c, err = t.getCustomer(id) })
	return c, err
}

func (m *Memory) ListCustomers(context.Context) (out []customers.Customer, err error) {
	m.read(func(t *tables) { out = values(t.customers) })
	return out, nil
}

func (m *Memory) SaveCustomer(_ context.Context, c customers.Customer) error {
	return m.write(func(t *tables) error { return t.saveCustomer(c) })
}

func (m *Memory) DeleteCustomer(_ context.Context, id string) error {
	return m.write(func(t *tables) error { return t.deleteCustomer(id) })
}

func (m *Memory) GetSale(_ context.Context, id string) (s sales.Sale, err error) {
	m.read(func(t *tables) { s, err = t.getSale(id) })
	return s, err
}

func (m *Memory) ListSales(context.Context) (out []sales.Sale, err error) {
	m.read(func(t *tables) { out = values(t.sales) })
	return out, nil
}

func (m *Memory) SaveSale(_ context.Context, s sales.Sale) error {
	return m.write(func(t *tables) error { t.sales[s.ID] = s; return nil })
}

func (m *Memory) DeleteSale(_ context.Context, id string) error {
	return m.write(func(t *tables) error { return t.deleteSale(id) })
}

func (m *Memory) GetTicket(_ context.Context, id string) (tk tickets.Ticket, err error) {
	m.read(func(t *tables) { tk, err = t.getTicket(id) })
	return tk, err
}

func (m *Memory) ListTickets(context.Context) (out []tickets.Ticket, err error) {
	m.read(func(t *tables) { out = t.listTickets() })
	return out, nil
}

func (m *Memory) SaveTicket(_ context.Context, tk tickets.Ticket) error {
	return m.write(func(t *tables) error { t.saveTicket(tk); return nil })
}

func (m *Memory) DeleteTicket(_ context.Context, id string) error {
	return m.write(func(t *tables) error { return t.deleteTicket(id) })
}

func (m *Memory) AppendInvoice(_ context.Context, inv invoices.Invoice) error {
	return m.write(func(t *tables) error { return t.appendInvoice(inv) })
}

func (m *Memory) GetInvoice(_ context.Context, id string) (inv invoices.Invoice, err error) {
	m.read(func(t *tables) { inv, err = t.getInvoice(id) })
	return inv, err
}

func (m *Memory) ListInvoices(context.Context) (out []invoices.Invoice, err error) {
	m.read(func(t *tables) { out = t.listInvoices() })
	return out, nil
}

func (m *Memory) GetUser(_ context.Context, username string) (u access.User, err error) {
	m.read(func(t *tables) { u, err = t.getUser(username) })
	return u, err
}

func (m *Memory) ListUsers(context.Context) (out []access.User, err error) {
	m.read(func(t *tables) { out = values(t.users) })
	return out, nil
}

func (m *Memory) SaveUser(_ context.Context, u access.User) error {
	return m.write(func(t *tables) error { t.users[u.Username] = u; return nil })
}

func (m *Memory) DeleteUser(_ context.Context, username string) error {
	return m.write(func(t *tables) error { return t.deleteUser(username) })
}

// AppendMovements adds movements. Append-only.
func (m *Memory) AppendMovements(_ context.Context, movements []generic.Movement) error {
	return m.write(func(t *tables) error { t.movements = append(t.movements, movements...); return nil })
}

func (m *Memory) Movements(_ context.Context, f generic.MovementFilter) (out []generic.Movement, err error) {
	m.read(func(t *tables) { out = t.filterMovements(f) })
	return out, nil
}

func (m *Memory) NextSequence(_ context.Context, prefix string) (n int64, err error) {
	err = m.write(func(t *tables) error { n = t.nextSequence(prefix); return nil })
	return n, err
}

// =============================================================================
// TRANSACTIONAL VIEW - used inside WithTx, lock already held
// =============================================================================

type txView struct {
	t *tables
}

func (v *txView) GetItem(_ context.Context, id string) (inventory.Item, error) {
	return v.t.getItem(id)
}
func (v *txView) ListItems(context.Context) ([]inventory.Item, error) { return values(v.t.items), nil }
func (v *txView) SaveItem(_ context.Context, item inventory.Item) error {
	return v.t.saveItem(item)
}
func (v *txView) DeleteItem(_ context.Context, id string) error { return v.t.deleteItem(id) }

func (v *txView) GetCustomer(_ context.Context, id string) (customers.Customer, error) {
	return v.t.getCustomer(id)
}
func (v *txView) ListCustomers(context.Context) ([]customers.Customer, error) {
	return values(v.t.customers), nil
}
func (v *txView) SaveCustomer(_ context.Context, c customers.Customer) error {
	return v.t.saveCustomer(c)
}
func (v *txView) DeleteCustomer(_ context.Context, id string) error { return v.t.deleteCustomer(id) }

func (v *txView) GetSale(_ context.Context, id string) (sales.Sale, error) { return v.t.getSale(id) }
func (v *txView) ListSales(context.Context) ([]sales.Sale, error)          { return values(v.t.sales), nil }
func (v *txView) SaveSale(_ context.Context, s sales.Sale) error {
	v.t.sales[s.ID] = s
	return nil
}
func (v *txView) DeleteSale(_ context.Context, id string) error { return v.t.deleteSale(id) }

func (v *txView) GetTicket(_ context.Context, id string) (tickets.Ticket, error) {
	return v.t.getTicket(id)
}
func (v *txView) ListTickets(context.Context) ([]tickets.Ticket, error) { return v.t.listTickets(), nil }
func (v *txView) SaveTicket(_ context.Context, tk tickets.Ticket) error {
	v.t.saveTicket(tk)
	return nil
}
func (v *txView) DeleteTicket(_ context.Context, id string) error { return v.t.deleteTicket(id) }

func (v *txView) AppendInvoice(_ context.Context, inv invoices.Invoice) error {
	return v.t.appendInvoice(inv)
}
func (v *txView) GetInvoice(_ context.Context, id string) (invoices.Invoice, error) {
	return v.t.getInvoice(id)
}
func (v *txView) ListInvoices(context.Context) ([]invoices.Invoice, error) {
	return v.t.listInvoices(), nil
}

func (v *txView) GetUser(_ context.Context, username string) (access.User, error) {
	return v.t.getUser(username)
}
func (v *txView) ListUsers(context.Context) ([]access.User, error) { return values(v.t.users), nil }
func (v *txView) SaveUser(_ context.Context, u access.User) error {
	v.t.users[u.Username] = u
	return nil
}
func (v *txView) DeleteUser(_ context.Context, username string) error {
	return v.t.deleteUser(username)
}

func (v *txView) AppendMovements(_ context.Context, movements []generic.Movement) error {
	v.t.movements = append(v.t.movements, movements...)
	return nil
}
func (v *txView) Movements(_ context.Context, f generic.MovementFilter) ([]generic.Movement, error) {
	return v.t.filterMovements(f), nil
}
func (v *txView) NextSequence(_ context.Context, prefix string) (int64, error) {
	return v.t.nextSequence(prefix), nil
}

// =============================================================================
// TABLE OPERATIONS - caller holds the lock
// =============================================================================

func (t *tables) getItem(id string) (inventory.Item, error) {
	item, ok := t.items[id]
	if !ok {
		return inventory.Item{}, generic.NotFound("inventory item", id)
	}
	return item, nil
}

// saveItem enforces the unique code the SQLite index enforces.
func (t *tables) saveItem(item inventory.Item) error {
	for id, other := range t.items {
		if id != item.ID && other.Code == item.Code {
			return &generic.DuplicateError{Entity: "inventory item", Field: "code", Value: item.Code}
		}
	}
	t.items[item.ID] = item
	return nil
}

func (t *tables) deleteItem(id string) error {
	if _, ok := t.items[id]; !ok {
		return generic.NotFound("inventory item", id)
	}
	delete(t.items, id)
	return nil
}

func (t *tables) getCustomer(id string) (customers.Customer, error) {
	c, ok := t.customers[id]
	if !ok {
		return customers.Customer{}, generic.NotFound("customer", id)
	}
	return c, nil
}

func (t *tables) saveCustomer(c customers.Customer) error {
	for id, other := range t.customers {
		if id == c.ID {
			continue
		}
		if other.Email == c.Email {
			return &generic.DuplicateError{Entity: "customer", Field: "email", Value: c.Email}
		}
		if other.Phone == c.Phone {
			return &generic.DuplicateError{Entity: "customer", Field: "phone", Value: c.Phone}
		}
	}
	t.customers[c.ID] = c
	return nil
}

func (t *tables) deleteCustomer(id string) error {
	if _, ok := t.customers[id]; !ok {
		return generic.NotFound("customer", id)
	}
	delete(t.customers, id)
	return nil
}

func (t *tables) getSale(id string) (sales.Sale, error) {
	s, ok := t.sales[id]
	if !ok {
		return sales.Sale{}, generic.NotFound("sale", id)
	}
	return s, nil
}

func (t *tables) deleteSale(id string) error {
	if _, ok := t.sales[id]; !ok {
		return generic.NotFound("sale", id)
	}
	delete(t.sales, id)
	return nil
}

func (t *tables) getTicket(id string) (tickets.Ticket, error) {
	tk, ok := t.tickets[id]
	if !ok {
		return tickets.Ticket{}, generic.NotFound("service ticket", id)
	}
	return copyTicket(tk), nil
}

func (t *tables) listTickets() []tickets.Ticket {
	out := values(t.tickets)
	for i := range out {
		out[i] = copyTicket(out[i])
	}
	return out
}

func (t *tables) saveTicket(tk tickets.Ticket) {
	t.tickets[tk.ID] = copyTicket(tk)
}

func (t *tables) deleteTicket(id string) error {
	if _, ok := t.tickets[id]; !ok {
		return generic.NotFound("service ticket", id)
	}
	delete(t.tickets, id)
	return nil
}

// appendInvoice rejects a reused id or invoice number.
func (t *tables) appendInvoice(inv invoices.Invoice) error {
	if _, ok := t.invoices[inv.ID]; ok {
		return &generic.DuplicateError{Entity: "invoice", Field: "id", Value: inv.ID}
	}
	if _, ok := t.invoiceNo[inv.InvoiceNo]; ok {
		return &generic.DuplicateError{Entity: "invoice", Field: "invoice_no", Value: inv.InvoiceNo}
	}
	t.invoices[inv.ID] = copyInvoice(inv)
	t.invoiceNo[inv.InvoiceNo] = inv.ID
	return nil
}

func (t *tables) listInvoices() []invoices.Invoice {
	out := values(t.invoices)
	for i := range out {
		out[i] = copyInvoice(out[i])
	}
	return out
}

func (t *tables) getInvoice(id string) (invoices.Invoice, error) {
	inv, ok := t.invoices[id]
	if !ok {
		return invoices.Invoice{}, generic.NotFound("invoice", id)
	}
	return copyInvoice(inv), nil
}

func (t *tables) getUser(username string) (access.User, error) {
	u, ok := t.users[username]
	if !ok {
		return access.User{}, generic.NotFound("user", username)
	}
	return u, nil
}

func (t *tables) deleteUser(username string) error {
	if _, ok := t.users[username]; !ok {
		return generic.NotFound("user", username)
	}
	delete(t.users, username)
	return nil
}

func (t *tables) filterMovements(f generic.MovementFilter) []generic.Movement {
	return generic.Filter(t.movements, f.Match)
}

func (t *tables) nextSequence(prefix string) int64 {
	t.sequences[prefix]++
	return t.sequences[prefix]
}

// values returns the map's values in unspecified order.
func values[K comparable, V any](m map[K]V) []V {
	return slices.Collect(maps.Values(m))
}

// Stored records never share pointers or slices with callers.

func copyTicket(tk tickets.Ticket) tickets.Ticket {
	tk.Notes = slices.Clone(tk.Notes)
	tk.Completion = clonePtr(tk.Completion)
	tk.StartedAt = clonePtr(tk.StartedAt)
	tk.HeldAt = clonePtr(tk.HeldAt)
	tk.CompletedAt = clonePtr(tk.CompletedAt)
	tk.EstimatedDelivery = clonePtr(tk.EstimatedDelivery)
	return tk
}

func copyInvoice(inv invoices.Invoice) invoices.Invoice {
	inv.Sale = clonePtr(inv.Sale)
	inv.Service = clonePtr(inv.Service)
	return inv
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

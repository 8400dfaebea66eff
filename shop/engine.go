/*
Package shop is the command API of the watch shop.

PURPOSE:
  Engine is the one entry point for every operation a user can trigger.
  It checks the caller's role against the permission table, then runs the
  command inside a single store transaction so that all ledger effects,
  invoices and journal movements commit together or not at all.

COMMAND FLOW:
  1. policy.HasPermission(actor.Role, section)   else PermissionError
  2. store.WithTx(...)                           one critical section
  3. build ledgers over the transactional tables
  4. run the command
  5. flush journal movements                     same transaction

SEE ALSO:
  - store.go: Store and Tables interfaces
  - dashboard.go: Aggregated statistics
  - queries.go: Read-side filters
*/
package shop

import (
	"context"
	"log/slog"
	"time"

	"github.com/warp/watchcraft/access"
	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/inventory"
	"github.com/warp/watchcraft/invoices"
	"github.com/warp/watchcraft/sales"
	"github.com/warp/watchcraft/tickets"
)

// Actor is the authenticated caller of a command.
type Actor struct {
	Username string
	Role     access.Role
}

// ActorFor returns the Actor for a user.
func ActorFor(u access.User) Actor {
	return Actor{Username: u.Username, Role: u.Role}
}

// Engine runs shop commands against a Store.
type Engine struct {
	store    Store
	policy   *access.Policy
	clock    generic.Clock
	logger   *slog.Logger
	hashCost int
	lowStock int
}

type Option func(*Engine)

// WithPolicy replaces the default permission table.
func WithPolicy(p *access.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

func WithClock(c generic.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPasswordCost sets the bcrypt cost used for new passwords.
func WithPasswordCost(cost int) Option {
	return func(e *Engine) { e.hashCost = cost }
}

// WithLowStockThreshold sets the quantity at or below which the dashboard
// lists an item as low on stock.
func WithLowStockThreshold(n int) Option {
	return func(e *Engine) { e.lowStock = n }
}

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		policy:   access.DefaultPolicy(),
		clock:    generic.SystemClock,
		logger:   slog.Default(),
		lowStock: inventory.LowStockThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the permission table in use.
func (e *Engine) Policy() *access.Policy { return e.policy }

// LowStockThreshold returns the configured threshold.
func (e *Engine) LowStockThreshold() int { return e.lowStock }

// =============================================================================
// LEDGER WIRING
// =============================================================================

type ledgers struct {
	journal   *generic.Journal
	inventory *inventory.Ledger
	customers *customers.Ledger
	invoices  *invoices.Ledger
	sales     *sales.Ledger
	tickets   *tickets.Ledger
	users     *access.Directory
}

func (e *Engine) ledgersOver(t Tables, j *generic.Journal) *ledgers {
	l := &ledgers{
		journal:   j,
		inventory: inventory.NewLedger(t, e.clock),
		customers: customers.NewLedger(t, e.clock),
		invoices:  invoices.NewLedger(t, t, e.clock),
		users:     access.NewDirectory(t, e.clock),
	}
	if e.hashCost > 0 {
		l.users.WithHashCost(e.hashCost)
	}
	l.sales = sales.NewLedger(t, l.inventory, l.customers, l.invoices, j, e.clock)
	l.tickets = tickets.NewLedger(t, l.customers, l.invoices, j, e.clock)
	return l
}

func (e *Engine) authorize(actor Actor, section access.Section) error {
	if !e.policy.HasPermission(actor.Role, section) {
		return &generic.PermissionError{Role: string(actor.Role), Section: string(section)}
	}
	return nil
}

// command runs fn in one transaction after the permission check. reason is
// stamped on every journal movement fn records.
func (e *Engine) command(ctx context.Context, actor Actor, section access.Section, reason string, fn func(*ledgers) error) error {
	if err := e.authorize(actor, section); err != nil {
		return err
	}
	start := time.Now()
	err := e.store.WithTx(ctx, func(t Tables) error {
		j := generic.NewJournal(t, e.clock, actor.Username)
		j.Reason = reason
		if err := fn(e.ledgersOver(t, j)); err != nil {
			return err
		}
		return j.Flush(ctx)
	})
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	e.logger.Log(ctx, level, "command",
		slog.String("command", reason),
		slog.String("actor", actor.Username),
		slog.Duration("took", time.Since(start)),
		slog.Any("error", err),
	)
	return err
}

// query runs fn against the store without a transaction.
func (e *Engine) query(actor Actor, section access.Section, fn func(*ledgers) error) error {
	if err := e.authorize(actor, section); err != nil {
		return err
	}
	return fn(e.ledgersOver(e.store, nil))
}

// =============================================================================
// LOGIN
// =============================================================================

// Login checks credentials and records the login time.
func (e *Engine) Login(ctx context.Context, username, password string) (access.User, error) {
	var u access.User
	err := e.store.WithTx(ctx, func(t Tables) error {
		var err error
		u, err = e.ledgersOver(t, nil).users.Login(ctx, username, password)
		return err
	})
	return u, err
}

// Authenticate checks credentials without recording a login.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (Actor, error) {
	u, err := e.ledgersOver(e.store, nil).users.Authenticate(ctx, username, password)
	if err != nil {
		return Actor{}, err
	}
	return ActorFor(u), nil
}

// =============================================================================
// INVENTORY
// =============================================================================

func (e *Engine) AddInventoryItem(ctx context.Context, actor Actor, in inventory.NewItem) (inventory.Item, error) {
	var item inventory.Item
	err := e.command(ctx, actor, access.SectionInventory, "add item", func(l *ledgers) error {
		var err error
		if item, err = l.inventory.AddItem(ctx, in); err != nil {
			return err
		}
		l.journalStock(item.ID, item.Quantity)
		return nil
	})
	return item, err
}

func (e *Engine) EditInventoryItem(ctx context.Context, actor Actor, id string, in inventory.ItemUpdate) (inventory.Item, error) {
	var item inventory.Item
	err := e.command(ctx, actor, access.SectionInventory, "edit item", func(l *ledgers) error {
		before, err := l.inventory.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if item, err = l.inventory.UpdateItem(ctx, id, in); err != nil {
			return err
		}
		l.journalStock(id, item.Quantity-before.Quantity)
		return nil
	})
	return item, err
}

// DeleteInventoryItem removes an item that no sale references.
func (e *Engine) DeleteInventoryItem(ctx context.Context, actor Actor, id string) (inventory.Item, error) {
	var item inventory.Item
	err := e.command(ctx, actor, access.SectionInventory, "delete item", func(l *ledgers) error {
		refs, err := l.sales.References(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return generic.Invalid("id", "item is referenced by recorded sales")
		}
		if item, err = l.inventory.DeleteItem(ctx, id); err != nil {
			return err
		}
		l.journalStock(id, -item.Quantity)
		return nil
	})
	return item, err
}

// RestockInventoryItem adds units to an existing item.
func (e *Engine) RestockInventoryItem(ctx context.Context, actor Actor, id string, amount int) (inventory.Item, error) {
	var item inventory.Item
	err := e.command(ctx, actor, access.SectionInventory, "restock item", func(l *ledgers) error {
		var err error
		if item, err = l.inventory.IncreaseQuantity(ctx, id, amount); err != nil {
			return err
		}
		l.journalStock(id, amount)
		return nil
	})
	return item, err
}

// journalStock records a stock change made directly on an item.
func (l *ledgers) journalStock(itemID string, delta int) {
	l.journal.Record(generic.MovementStock, itemID, delta, generic.MovementApply, "")
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (e *Engine) AddCustomer(ctx context.Context, actor Actor, in customers.Details) (customers.Customer, error) {
	var c customers.Customer
	err := e.command(ctx, actor, access.SectionCustomers, "add customer", func(l *ledgers) error {
		var err error
		c, err = l.customers.AddCustomer(ctx, in, actor.Username)
		return err
	})
	return c, err
}

func (e *Engine) EditCustomer(ctx context.Context, actor Actor, id string, in customers.Details) (customers.Customer, error) {
	var c customers.Customer
	err := e.command(ctx, actor, access.SectionCustomers, "edit customer", func(l *ledgers) error {
		var err error
		c, err = l.customers.UpdateCustomer(ctx, id, in)
		return err
	})
	return c, err
}

func (e *Engine) DeleteCustomer(ctx context.Context, actor Actor, id string) (customers.Customer, error) {
	var c customers.Customer
	err := e.command(ctx, actor, access.SectionCustomers, "delete customer", func(l *ledgers) error {
		var err error
		c, err = l.customers.DeleteCustomer(ctx, id)
		return err
	})
	return c, err
}

// =============================================================================
// SALES
// =============================================================================

// RecordSale records a sale and returns it with its invoice.
func (e *Engine) RecordSale(ctx context.Context, actor Actor, in sales.Input) (sales.Sale, invoices.Invoice, error) {
	var (
		sale sales.Sale
		inv  invoices.Invoice
	)
	err := e.command(ctx, actor, access.SectionSales, "record sale", func(l *ledgers) error {
		var err error
		sale, inv, err = l.sales.Record(ctx, in, actor.Username)
		return err
	})
	return sale, inv, err
}

func (e *Engine) EditSale(ctx context.Context, actor Actor, id string, in sales.Input) (sales.Sale, error) {
	var sale sales.Sale
	err := e.command(ctx, actor, access.SectionSales, "edit sale", func(l *ledgers) error {
		var err error
		sale, err = l.sales.Edit(ctx, id, in)
		return err
	})
	return sale, err
}

func (e *Engine) DeleteSale(ctx context.Context, actor Actor, id string) (sales.Sale, error) {
	var sale sales.Sale
	err := e.command(ctx, actor, access.SectionSales, "delete sale", func(l *ledgers) error {
		var err error
		sale, err = l.sales.Delete(ctx, id)
		return err
	})
	return sale, err
}

// =============================================================================
// SERVICE TICKETS
// =============================================================================

// CreateServiceTicket opens a ticket and returns it with its acknowledgement.
func (e *Engine) CreateServiceTicket(ctx context.Context, actor Actor, in tickets.Input) (tickets.Ticket, invoices.Invoice, error) {
	var (
		t   tickets.Ticket
		ack invoices.Invoice
	)
	err := e.command(ctx, actor, access.SectionService, "create ticket", func(l *ledgers) error {
		var err error
		t, ack, err = l.tickets.Create(ctx, in, actor.Username)
		return err
	})
	return t, ack, err
}

// TransitionServiceStatus moves a ticket to status. The returned invoice is
// non-nil only on completion.
func (e *Engine) TransitionServiceStatus(ctx context.Context, actor Actor, id string, status tickets.Status, completion *tickets.Completion) (tickets.Ticket, *invoices.Invoice, error) {
	var (
		t    tickets.Ticket
		bill *invoices.Invoice
	)
	err := e.command(ctx, actor, access.SectionService, "transition ticket", func(l *ledgers) error {
		var err error
		t, bill, err = l.tickets.Transition(ctx, id, status, completion, actor.Username)
		return err
	})
	return t, bill, err
}

func (e *Engine) EditServiceTicket(ctx context.Context, actor Actor, id string, in tickets.Input) (tickets.Ticket, error) {
	var t tickets.Ticket
	err := e.command(ctx, actor, access.SectionService, "edit ticket", func(l *ledgers) error {
		var err error
		t, err = l.tickets.Edit(ctx, id, in)
		return err
	})
	return t, err
}

func (e *Engine) DeleteServiceTicket(ctx context.Context, actor Actor, id string) (tickets.Ticket, error) {
	var t tickets.Ticket
	err := e.command(ctx, actor, access.SectionService, "delete ticket", func(l *ledgers) error {
		var err error
		t, err = l.tickets.Delete(ctx, id)
		return err
	})
	return t, err
}

func (e *Engine) AddServiceNote(ctx context.Context, actor Actor, id, note string) (tickets.Ticket, error) {
	var t tickets.Ticket
	err := e.command(ctx, actor, access.SectionService, "add note", func(l *ledgers) error {
		var err error
		t, err = l.tickets.AddNote(ctx, id, note, actor.Username)
		return err
	})
	return t, err
}

func (e *Engine) SetEstimatedDelivery(ctx context.Context, actor Actor, id string, date time.Time) (tickets.Ticket, error) {
	var t tickets.Ticket
	err := e.command(ctx, actor, access.SectionService, "set delivery", func(l *ledgers) error {
		var err error
		t, err = l.tickets.SetEstimatedDelivery(ctx, id, date)
		return err
	})
	return t, err
}

// =============================================================================
// USERS
// =============================================================================

func (e *Engine) AddUser(ctx context.Context, actor Actor, in access.NewUser) (access.User, error) {
	var u access.User
	err := e.command(ctx, actor, access.SectionUsers, "add user", func(l *ledgers) error {
		var err error
		u, err = l.users.AddUser(ctx, in)
		return err
	})
	return u, err
}

func (e *Engine) EditUser(ctx context.Context, actor Actor, username string, in access.UserUpdate) (access.User, error) {
	var u access.User
	err := e.command(ctx, actor, access.SectionUsers, "edit user", func(l *ledgers) error {
		var err error
		u, err = l.users.UpdateUser(ctx, username, in)
		return err
	})
	return u, err
}

func (e *Engine) DeleteUser(ctx context.Context, actor Actor, username string) (access.User, error) {
	var u access.User
	err := e.command(ctx, actor, access.SectionUsers, "delete user", func(l *ledgers) error {
		var err error
		u, err = l.users.DeleteUser(ctx, actor.Username, username)
		return err
	})
	return u, err
}

func (e *Engine) ListUsers(ctx context.Context, actor Actor) ([]access.User, error) {
	var out []access.User
	err := e.query(actor, access.SectionUsers, func(l *ledgers) error {
		var err error
		out, err = l.users.List(ctx)
		return err
	})
	return out, err
}

// SeedUser stores a user without a permission check. Used to bootstrap an
// empty store.
func (e *Engine) SeedUser(ctx context.Context, in access.NewUser) (access.User, error) {
	var u access.User
	err := e.store.WithTx(ctx, func(t Tables) error {
		var err error
		u, err = e.ledgersOver(t, nil).users.AddUser(ctx, in)
		return err
	})
	return u, err
}

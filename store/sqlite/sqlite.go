/*
Package sqlite provides a SQLite-backed shop.Store.

PURPOSE:
  Persists every ledger table so the shop survives a restart. The memory
  store is the default; this one is selected with STORE_DRIVER=sqlite.

KEY TABLES:
  items, customers, sales, service_tickets: current state, upserted by id
  invoices:  append-only, invoice_no unique
  movements: append-only journal, ordered by rowid
  sequences: next number per invoice prefix

UNIQUE INDEXES:
  Mirror the ledger rules so a racing writer cannot slip past them:
  - items.code
  - customers.email, customers.phone
  - invoices.invoice_no
  - users.email
  A violation is returned as *generic.DuplicateError.

CONCURRENCY:
  One connection, and WithTx holds a mutex for the whole transaction, so
  commands are serialized exactly as they are with the memory store.

USAGE:
  st, err := sqlite.New("./data/watchcraft.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()
  engine := shop.New(st)

SEE ALSO:
  - shop/store.go: Store and Tables interfaces
  - generic/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/watchcraft/access"
	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/inventory"
	"github.com/warp/watchcraft/invoices"
	"github.com/warp/watchcraft/sales"
	"github.com/warp/watchcraft/shop"
	"github.com/warp/watchcraft/tickets"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store implements shop.Store. Outside WithTx every method runs on the
// database directly.
type Store struct {
	tables
	db *sql.DB
	mu sync.Mutex
}

var _ shop.Store = (*Store)(nil)

// tables implements shop.Tables over a queryer.
type tables struct {
	q queryer
}

// New opens the database at path and migrates the schema.
// Use ":memory:" for a throwaway database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A second connection to ":memory:" would be a different database.
	db.SetMaxOpenConns(1)

	s := &Store{tables: tables{q: db}, db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Reset deletes every row and restarts the sequences.
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(t shop.Tables) error {
		q := t.(*tables).q
		for _, table := range []string{"movements", "invoices", "sales", "service_tickets", "items", "customers", "users", "sequences"} {
			if _, err := q.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		brand TEXT NOT NULL,
		model TEXT NOT NULL,
		price TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		status TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_items_code ON items(code);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		address TEXT,
		purchases INTEGER NOT NULL DEFAULT 0,
		service_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		created_by TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_email ON customers(email);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_phone ON customers(phone);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		ts TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		customer_name TEXT,
		watch_id TEXT NOT NULL,
		watch_name TEXT,
		watch_code TEXT,
		brand TEXT,
		price TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		total_amount TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT,
		invoice_id TEXT,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sales_watch ON sales(watch_id);
	CREATE INDEX IF NOT EXISTS idx_sales_customer ON sales(customer_id);

	CREATE TABLE IF NOT EXISTS service_tickets (
		id TEXT PRIMARY KEY,
		ts TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		customer_name TEXT,
		watch_name TEXT,
		brand TEXT,
		model TEXT,
		dial_color TEXT,
		movement_no TEXT,
		gender TEXT,
		case_type TEXT,
		strap_type TEXT,
		issue TEXT,
		cost TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT,
		started_at TEXT,
		held_at TEXT,
		completed_at TEXT,
		estimated_delivery TEXT,
		completion_json TEXT,
		notes_json TEXT,
		ack_invoice_id TEXT,
		completion_invoice_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_status ON service_tickets(status);

	-- Invoices (append-only)
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		invoice_no TEXT NOT NULL,
		type TEXT NOT NULL,
		sub_type TEXT,
		related_id TEXT NOT NULL,
		related_type TEXT NOT NULL,
		customer_id TEXT,
		customer_name TEXT,
		customer_phone TEXT,
		customer_address TEXT,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT,
		issued_at TEXT NOT NULL,
		sale_json TEXT,
		service_json TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_no ON invoices(invoice_no);
	CREATE INDEX IF NOT EXISTS idx_invoices_related ON invoices(related_id, related_type);

	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		full_name TEXT,
		email TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		last_login TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

	-- Journal (append-only)
	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		delta INTEGER NOT NULL,
		type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		actor TEXT,
		at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_movements_subject ON movements(subject_id);
	CREATE INDEX IF NOT EXISTS idx_movements_reference
		ON movements(reference_id) WHERE reference_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS sequences (
		prefix TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn inside one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(shop.Tables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&tables{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// INVENTORY
// =============================================================================

const itemColumns = `id, code, brand, model, price, quantity, status, description, created_at, updated_at`

func (t *tables) GetItem(ctx context.Context, id string) (inventory.Item, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return inventory.Item{}, generic.NotFound("inventory item", id)
	}
	return item, err
}

func (t *tables) ListItems(ctx context.Context) ([]inventory.Item, error) {
	return queryAll(ctx, t.q, scanItem, `SELECT `+itemColumns+` FROM items ORDER BY code`)
}

func (t *tables) SaveItem(ctx context.Context, item inventory.Item) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code, brand = excluded.brand, model = excluded.model,
			price = excluded.price, quantity = excluded.quantity, status = excluded.status,
			description = excluded.description, updated_at = excluded.updated_at`,
		item.ID, item.Code, item.Brand, item.Model, item.Price.String(), item.Quantity,
		item.Status, item.Description, formatTime(item.CreatedAt), formatTime(item.UpdatedAt),
	)
	if err != nil {
		return duplicate(err, "inventory item", map[string]string{"code": item.Code})
	}
	return nil
}

func (t *tables) DeleteItem(ctx context.Context, id string) error {
	return t.deleteByKey(ctx, "items", "id", id, "inventory item")
}

func scanItem(row scanner) (inventory.Item, error) {
	var (
		item                 inventory.Item
		price                string
		description          sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&item.ID, &item.Code, &item.Brand, &item.Model, &price, &item.Quantity,
		&item.Status, &description, &createdAt, &updatedAt)
	if err != nil {
		return item, err
	}
	item.Price = generic.MustParseDecimal(price)
	item.Description = description.String
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return item, nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

const customerColumns = `id, name, email, phone, address, purchases, service_count, created_at, created_by`

func (t *tables) GetCustomer(ctx context.Context, id string) (customers.Customer, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return customers.Customer{}, generic.NotFound("customer", id)
	}
	return c, err
}

func (t *tables) ListCustomers(ctx context.Context) ([]customers.Customer, error) {
	return queryAll(ctx, t.q, scanCustomer, `SELECT `+customerColumns+` FROM customers ORDER BY name`)
}

func (t *tables) SaveCustomer(ctx context.Context, c customers.Customer) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, email = excluded.email, phone = excluded.phone,
			address = excluded.address, purchases = excluded.purchases,
			service_count = excluded.service_count`,
		c.ID, c.Name, c.Email, c.Phone, c.Address, c.Purchases, c.ServiceCount,
		formatTime(c.CreatedAt), c.CreatedBy,
	)
	if err != nil {
		return duplicate(err, "customer", map[string]string{"email": c.Email, "phone": c.Phone})
	}
	return nil
}

func (t *tables) DeleteCustomer(ctx context.Context, id string) error {
	return t.deleteByKey(ctx, "customers", "id", id, "customer")
}

func scanCustomer(row scanner) (customers.Customer, error) {
	var (
		c                  customers.Customer
		address, createdBy sql.NullString
		createdAt          string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &address, &c.Purchases, &c.ServiceCount,
		&createdAt, &createdBy)
	if err != nil {
		return c, err
	}
	c.Address = address.String
	c.CreatedBy = createdBy.String
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// =============================================================================
// SALES
// =============================================================================

const saleColumns = `id, ts, customer_id, customer_name, watch_id, watch_name, watch_code, brand,
	price, quantity, total_amount, payment_method, status, created_by, invoice_id, updated_at`

func (t *tables) GetSale(ctx context.Context, id string) (sales.Sale, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	s, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sales.Sale{}, generic.NotFound("sale", id)
	}
	return s, err
}

func (t *tables) ListSales(ctx context.Context) ([]sales.Sale, error) {
	return queryAll(ctx, t.q, scanSale, `SELECT `+saleColumns+` FROM sales ORDER BY ts DESC`)
}

func (t *tables) SaveSale(ctx context.Context, s sales.Sale) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id, customer_name = excluded.customer_name,
			watch_id = excluded.watch_id, watch_name = excluded.watch_name,
			watch_code = excluded.watch_code, brand = excluded.brand,
			price = excluded.price, quantity = excluded.quantity,
			total_amount = excluded.total_amount, payment_method = excluded.payment_method,
			status = excluded.status, invoice_id = excluded.invoice_id,
			updated_at = excluded.updated_at`,
		s.ID, formatTime(s.Timestamp), s.CustomerID, s.CustomerName, s.WatchID, s.WatchName,
		s.WatchCode, s.Brand, s.Price.String(), s.Quantity, s.TotalAmount.String(),
		s.PaymentMethod, s.Status, s.CreatedBy, s.InvoiceID, formatTime(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save sale: %w", err)
	}
	return nil
}

func (t *tables) DeleteSale(ctx context.Context, id string) error {
	return t.deleteByKey(ctx, "sales", "id", id, "sale")
}

func scanSale(row scanner) (sales.Sale, error) {
	var (
		s                                  sales.Sale
		ts, updatedAt, price, total        string
		customerName, watchName, watchCode sql.NullString
		brand, createdBy, invoiceID        sql.NullString
	)
	err := row.Scan(&s.ID, &ts, &s.CustomerID, &customerName, &s.WatchID, &watchName, &watchCode,
		&brand, &price, &s.Quantity, &total, &s.PaymentMethod, &s.Status, &createdBy, &invoiceID,
		&updatedAt)
	if err != nil {
		return s, err
	}
	s.Timestamp = parseTime(ts)
	s.UpdatedAt = parseTime(updatedAt)
	s.Price = generic.MustParseDecimal(price)
	s.TotalAmount = generic.MustParseDecimal(total)
	s.CustomerName = customerName.String
	s.WatchName = watchName.String
	s.WatchCode = watchCode.String
	s.Brand = brand.String
	s.CreatedBy = createdBy.String
	s.InvoiceID = invoiceID.String
	return s, nil
}

// =============================================================================
// SERVICE TICKETS
// =============================================================================

const ticketColumns = `id, ts, customer_id, customer_name, watch_name, brand, model, dial_color,
	movement_no, gender, case_type, strap_type, issue, cost, status, created_by,
	started_at, held_at, completed_at, estimated_delivery, completion_json, notes_json,
	ack_invoice_id, completion_invoice_id`

func (t *tables) GetTicket(ctx context.Context, id string) (tickets.Ticket, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM service_tickets WHERE id = ?`, id)
	tk, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tickets.Ticket{}, generic.NotFound("service ticket", id)
	}
	return tk, err
}

func (t *tables) ListTickets(ctx context.Context) ([]tickets.Ticket, error) {
	return queryAll(ctx, t.q, scanTicket, `SELECT `+ticketColumns+` FROM service_tickets ORDER BY ts DESC`)
}

func (t *tables) SaveTicket(ctx context.Context, tk tickets.Ticket) error {
	completion, err := nullJSON(tk.Completion)
	if err != nil {
		return err
	}
	notes, err := json.Marshal(tk.Notes)
	if err != nil {
		return fmt.Errorf("encode notes: %w", err)
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO service_tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id, customer_name = excluded.customer_name,
			watch_name = excluded.watch_name, brand = excluded.brand, model = excluded.model,
			dial_color = excluded.dial_color, movement_no = excluded.movement_no,
			gender = excluded.gender, case_type = excluded.case_type,
			strap_type = excluded.strap_type, issue = excluded.issue, cost = excluded.cost,
			status = excluded.status, started_at = excluded.started_at,
			held_at = excluded.held_at, completed_at = excluded.completed_at,
			estimated_delivery = excluded.estimated_delivery,
			completion_json = excluded.completion_json, notes_json = excluded.notes_json,
			ack_invoice_id = excluded.ack_invoice_id,
			completion_invoice_id = excluded.completion_invoice_id`,
		tk.ID, formatTime(tk.Timestamp), tk.CustomerID, tk.CustomerName, tk.WatchName, tk.Brand,
		tk.Model, tk.DialColor, tk.MovementNo, tk.Gender, tk.CaseType, tk.StrapType, tk.Issue,
		tk.Cost.String(), tk.Status, tk.CreatedBy,
		nullTime(tk.StartedAt), nullTime(tk.HeldAt), nullTime(tk.CompletedAt),
		nullTime(tk.EstimatedDelivery), completion, string(notes),
		tk.AcknowledgementInvoiceID, tk.CompletionInvoiceID,
	)
	if err != nil {
		return fmt.Errorf("save ticket: %w", err)
	}
	return nil
}

func (t *tables) DeleteTicket(ctx context.Context, id string) error {
	return t.deleteByKey(ctx, "service_tickets", "id", id, "service ticket")
}

func scanTicket(row scanner) (tickets.Ticket, error) {
	var (
		tk                                       tickets.Ticket
		ts, cost                                 string
		customerName, watchName, brand, model    sql.NullString
		dialColor, movementNo, gender, caseType  sql.NullString
		strapType, issue, createdBy              sql.NullString
		startedAt, heldAt, completedAt, delivery sql.NullString
		completion, notes, ackID, completionID   sql.NullString
	)
	err := row.Scan(&tk.ID, &ts, &tk.CustomerID, &customerName, &watchName, &brand, &model,
		&dialColor, &movementNo, &gender, &caseType, &strapType, &issue, &cost, &tk.Status,
		&createdBy, &startedAt, &heldAt, &completedAt, &delivery, &completion, &notes,
		&ackID, &completionID)
	if err != nil {
		return tk, err
	}
	tk.Timestamp = parseTime(ts)
	tk.Cost = generic.MustParseDecimal(cost)
	tk.CustomerName = customerName.String
	tk.WatchName = watchName.String
	tk.Brand = brand.String
	tk.Model = model.String
	tk.DialColor = dialColor.String
	tk.MovementNo = movementNo.String
	tk.Gender = gender.String
	tk.CaseType = caseType.String
	tk.StrapType = strapType.String
	tk.Issue = issue.String
	tk.CreatedBy = createdBy.String
	tk.StartedAt = parseNullTime(startedAt)
	tk.HeldAt = parseNullTime(heldAt)
	tk.CompletedAt = parseNullTime(completedAt)
	tk.EstimatedDelivery = parseNullTime(delivery)
	tk.AcknowledgementInvoiceID = ackID.String
	tk.CompletionInvoiceID = completionID.String

	if completion.Valid {
		tk.Completion = &tickets.Completion{}
		if err := json.Unmarshal([]byte(completion.String), tk.Completion); err != nil {
			return tk, fmt.Errorf("decode completion: %w", err)
		}
	}
	if notes.Valid && notes.String != "" && notes.String != "null" {
		if err := json.Unmarshal([]byte(notes.String), &tk.Notes); err != nil {
			return tk, fmt.Errorf("decode notes: %w", err)
		}
	}
	return tk, nil
}

// =============================================================================
// INVOICES (append-only)
// =============================================================================

const invoiceColumns = `id, invoice_no, type, sub_type, related_id, related_type, customer_id,
	customer_name, customer_phone, customer_address, amount, status, created_by, issued_at,
	sale_json, service_json`

// AppendInvoice inserts an invoice. There is no update path.
func (t *tables) AppendInvoice(ctx context.Context, inv invoices.Invoice) error {
	sale, err := nullJSON(inv.Sale)
	if err != nil {
		return err
	}
	service, err := nullJSON(inv.Service)
	if err != nil {
		return err
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.InvoiceNo, inv.Type, inv.SubType, inv.RelatedID, inv.RelatedType,
		inv.CustomerID, inv.CustomerName, inv.CustomerPhone, inv.CustomerAddress,
		inv.Amount.String(), inv.Status, inv.CreatedBy, formatTime(inv.IssuedAt), sale, service,
	)
	if err != nil {
		return duplicate(err, "invoice", map[string]string{"id": inv.ID, "invoice_no": inv.InvoiceNo})
	}
	return nil
}

func (t *tables) GetInvoice(ctx context.Context, id string) (invoices.Invoice, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return invoices.Invoice{}, generic.NotFound("invoice", id)
	}
	return inv, err
}

func (t *tables) ListInvoices(ctx context.Context) ([]invoices.Invoice, error) {
	return queryAll(ctx, t.q, scanInvoice, `SELECT `+invoiceColumns+` FROM invoices ORDER BY issued_at DESC`)
}

func scanInvoice(row scanner) (invoices.Invoice, error) {
	var (
		inv                               invoices.Invoice
		amount, issuedAt                  string
		subType, customerID, customerName sql.NullString
		customerPhone, customerAddress    sql.NullString
		createdBy, sale, service          sql.NullString
	)
	err := row.Scan(&inv.ID, &inv.InvoiceNo, &inv.Type, &subType, &inv.RelatedID, &inv.RelatedType,
		&customerID, &customerName, &customerPhone, &customerAddress, &amount, &inv.Status,
		&createdBy, &issuedAt, &sale, &service)
	if err != nil {
		return inv, err
	}
	inv.SubType = subType.String
	inv.CustomerID = customerID.String
	inv.CustomerName = customerName.String
	inv.CustomerPhone = customerPhone.String
	inv.CustomerAddress = customerAddress.String
	inv.CreatedBy = createdBy.String
	inv.Amount = generic.MustParseDecimal(amount)
	inv.IssuedAt = parseTime(issuedAt)
	if sale.Valid {
		inv.Sale = &invoices.SaleLine{}
		if err := json.Unmarshal([]byte(sale.String), inv.Sale); err != nil {
			return inv, fmt.Errorf("decode sale line: %w", err)
		}
	}
	if service.Valid {
		inv.Service = &invoices.ServiceLine{}
		if err := json.Unmarshal([]byte(service.String), inv.Service); err != nil {
			return inv, fmt.Errorf("decode service line: %w", err)
		}
	}
	return inv, nil
}

// =============================================================================
// USERS
// =============================================================================

const userColumns = `username, password_hash, role, full_name, email, status, created_at, last_login`

func (t *tables) GetUser(ctx context.Context, username string) (access.User, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return access.User{}, generic.NotFound("user", username)
	}
	return u, err
}

func (t *tables) ListUsers(ctx context.Context) ([]access.User, error) {
	return queryAll(ctx, t.q, scanUser, `SELECT `+userColumns+` FROM users ORDER BY username`)
}

func (t *tables) SaveUser(ctx context.Context, u access.User) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			password_hash = excluded.password_hash, role = excluded.role,
			full_name = excluded.full_name, email = excluded.email,
			status = excluded.status, last_login = excluded.last_login`,
		u.Username, u.PasswordHash, u.Role, u.FullName, u.Email, u.Status,
		formatTime(u.CreatedAt), nullTime(u.LastLogin),
	)
	if err != nil {
		return duplicate(err, "user", map[string]string{"email": u.Email})
	}
	return nil
}

func (t *tables) DeleteUser(ctx context.Context, username string) error {
	return t.deleteByKey(ctx, "users", "username", username, "user")
}

func scanUser(row scanner) (access.User, error) {
	var (
		u                   access.User
		fullName, lastLogin sql.NullString
		createdAt           string
	)
	err := row.Scan(&u.Username, &u.PasswordHash, &u.Role, &fullName, &u.Email, &u.Status,
		&createdAt, &lastLogin)
	if err != nil {
		return u, err
	}
	u.FullName = fullName.String
	u.CreatedAt = parseTime(createdAt)
	u.LastLogin = parseNullTime(lastLogin)
	return u, nil
}

// =============================================================================
// JOURNAL AND SEQUENCES
// =============================================================================

func (t *tables) AppendMovements(ctx context.Context, movements []generic.Movement) error {
	for _, m := range movements {
		_, err := t.q.ExecContext(ctx, `
			INSERT INTO movements (id, kind, subject_id, delta, type, reference_id, reason, actor, at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Kind, m.SubjectID, m.Delta, m.Type, nullString(m.ReferenceID), m.Reason,
			m.Actor, formatTime(m.At),
		)
		if err != nil {
			return fmt.Errorf("append movement: %w", err)
		}
	}
	return nil
}

func (t *tables) Movements(ctx context.Context, f generic.MovementFilter) ([]generic.Movement, error) {
	var (
		where []string
		args  []any
	)
	if f.SubjectID != "" {
		where = append(where, "subject_id = ?")
		args = append(args, f.SubjectID)
	}
	if f.ReferenceID != "" {
		where = append(where, "reference_id = ?")
		args = append(args, f.ReferenceID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	query := `SELECT id, kind, subject_id, delta, type, reference_id, reason, actor, at FROM movements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid"
	return queryAll(ctx, t.q, scanMovement, query, args...)
}

func scanMovement(row scanner) (generic.Movement, error) {
	var (
		m                        generic.Movement
		reference, reason, actor sql.NullString
		at                       string
	)
	if err := row.Scan(&m.ID, &m.Kind, &m.SubjectID, &m.Delta, &m.Type, &reference, &reason, &actor, &at); err != nil {
		return m, err
	}
	m.ReferenceID = reference.String
	m.Reason = reason.String
	m.Actor = actor.String
	m.At = parseTime(at)
	return m, nil
}

func (t *tables) NextSequence(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO sequences (prefix, value) VALUES (?, 1)
		ON CONFLICT(prefix) DO UPDATE SET value = value + 1
		RETURNING value`, prefix).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", prefix, err)
	}
	return n, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func queryAll[T any](ctx context.Context, q queryer, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (t *tables) deleteByKey(ctx context.Context, table, key, id, entity string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+key+` = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.NotFound(entity, id)
	}
	return nil
}

// duplicate converts a unique-index violation into a DuplicateError. The
// column is taken from the driver message ("UNIQUE constraint failed:
// items.code") and its value looked up in values.
func duplicate(err error, entity string, values map[string]string) error {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.ExtendedCode != sqlite3.ErrConstraintUnique {
		return fmt.Errorf("save %s: %w", entity, err)
	}
	column := se.Error()
	if i := strings.LastIndex(column, "."); i >= 0 {
		column = column[i+1:]
	}
	// Primary-key collisions report the id column.
	return &generic.DuplicateError{Entity: entity, Field: column, Value: values[column]}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullJSON encodes v, or NULL when v is a nil pointer.
func nullJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode %T: %w", v, err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

package tickets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/invoices"
)

type Ledger struct {
	repo      Repository
	customers *customers.Ledger
	invoices  *invoices.Ledger
	journal   *generic.Journal
	clock     generic.Clock
}

// NewLedger wires a service ledger. journal may be nil.
func NewLedger(repo Repository, people *customers.Ledger, bills *invoices.Ledger,
	journal *generic.Journal, clock generic.Clock) *Ledger {
	return &Ledger{repo: repo, customers: people, invoices: bills, journal: journal, clock: clock}
}

// =============================================================================
// COMMANDS
// =============================================================================

// Create opens a pending ticket, counts the service on the customer and
// issues the acknowledgement invoice.
func (l *Ledger) Create(ctx context.Context, in Input, createdBy string) (Ticket, invoices.Invoice, error) {
	in = normalize(in)
	if err := validateInput(in); err != nil {
		return Ticket{}, invoices.Invoice{}, err
	}
	if _, err := l.customers.FindByID(ctx, in.CustomerID); err != nil {
		return Ticket{}, invoices.Invoice{}, err
	}

	t := Ticket{
		ID:        generic.NewID(),
		Timestamp: l.clock.Now(),
		Status:    StatusPending,
		CreatedBy: createdBy,
	}
	customer, err := l.customers.IncrementServices(ctx, in.CustomerID)
	if err != nil {
		return Ticket{}, invoices.Invoice{}, fmt.Errorf("count service: %w", err)
	}
	l.journal.Record(generic.MovementServices, customer.ID, 1, generic.MovementApply, t.ID)
	fill(&t, in, customer)

	ack, err := l.invoices.FromServiceAcknowledgement(ctx, source(t, customer, createdBy))
	if err != nil {
		return Ticket{}, invoices.Invoice{}, err
	}
	t.AcknowledgementInvoiceID = ack.ID

	if err := l.repo.SaveTicket(ctx, t); err != nil {
		return Ticket{}, invoices.Invoice{}, fmt.Errorf("save ticket: %w", err)
	}
	return t, ack, nil
}

// Transition moves a ticket along the state machine. completion is required
// for StatusCompleted and ignored otherwise. The completion invoice is
// returned only when the ticket was completed.
func (l *Ledger) Transition(ctx context.Context, id string, to Status, completion *Completion, actor string) (Ticket, *invoices.Invoice, error) {
	t, err := l.repo.GetTicket(ctx, id)
	if err != nil {
		return Ticket{}, nil, err
	}
	if !CanTransition(t.Status, to) {
		return Ticket{}, nil, fmt.Errorf("%w: %s -> %s", generic.ErrInvalidTransition, t.Status, to)
	}

	now := l.clock.Now()
	var bill *invoices.Invoice
	switch to {
	case StatusInProgress:
		if t.Status == StatusPending {
			t.StartedAt = &now
		}
	case StatusOnHold:
		t.HeldAt = &now
	case StatusCompleted:
		if completion == nil {
			return Ticket{}, nil, generic.Invalid("description", "completion details are required")
		}
		done := *completion
		done.Description = strings.TrimSpace(done.Description)
		done.ImageRef = strings.TrimSpace(done.ImageRef)
		if err := generic.Validate(done); err != nil {
			return Ticket{}, nil, err
		}
		t.Completion = &done
		t.CompletedAt = &now

		customer, err := l.customers.FindByID(ctx, t.CustomerID)
		if err != nil {
			return Ticket{}, nil, err
		}
		inv, err := l.invoices.FromServiceCompletion(ctx, source(t, customer, actor))
		if err != nil {
			return Ticket{}, nil, err
		}
		t.CompletionInvoiceID = inv.ID
		bill = &inv
	}
	t.Status = to

	if err := l.repo.SaveTicket(ctx, t); err != nil {
		return Ticket{}, nil, fmt.Errorf("save ticket: %w", err)
	}
	return t, bill, nil
}

// Edit replaces the descriptive fields and cost. Moving the ticket to a
// different customer moves the service count with it.
func (l *Ledger) Edit(ctx context.Context, id string, in Input) (Ticket, error) {
	in = normalize(in)
	if err := validateInput(in); err != nil {
		return Ticket{}, err
	}
	t, err := l.repo.GetTicket(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	customer, err := l.customers.FindByID(ctx, in.CustomerID)
	if err != nil {
		return Ticket{}, err
	}

	if customer.ID != t.CustomerID {
		if err := l.uncount(ctx, t); err != nil {
			return Ticket{}, err
		}
		customer, err = l.customers.IncrementServices(ctx, customer.ID)
		if err != nil {
			return Ticket{}, fmt.Errorf("count service: %w", err)
		}
		l.journal.Record(generic.MovementServices, customer.ID, 1, generic.MovementApply, t.ID)
	}

	fill(&t, in, customer)
	if err := l.repo.SaveTicket(ctx, t); err != nil {
		return Ticket{}, fmt.Errorf("save ticket: %w", err)
	}
	return t, nil
}

// Delete removes a ticket and lowers the service counter. Its invoices
// stay on file.
func (l *Ledger) Delete(ctx context.Context, id string) (Ticket, error) {
	t, err := l.repo.GetTicket(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	if err := l.uncount(ctx, t); err != nil {
		return Ticket{}, err
	}
	if err := l.repo.DeleteTicket(ctx, id); err != nil {
		return Ticket{}, fmt.Errorf("delete ticket: %w", err)
	}
	return t, nil
}

// AddNote appends a timestamped note.
func (l *Ledger) AddNote(ctx context.Context, id, text, addedBy string) (Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Ticket{}, generic.Invalid("note", "is required")
	}
	t, err := l.repo.GetTicket(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	t.Notes = append(t.Notes, Note{Text: text, AddedBy: addedBy, At: l.clock.Now()})
	if err := l.repo.SaveTicket(ctx, t); err != nil {
		return Ticket{}, fmt.Errorf("save ticket: %w", err)
	}
	return t, nil
}

// SetEstimatedDelivery records the promised hand-back date. A zero date
// clears it.
func (l *Ledger) SetEstimatedDelivery(ctx context.Context, id string, date time.Time) (Ticket, error) {
	t, err := l.repo.GetTicket(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	if date.IsZero() {
		t.EstimatedDelivery = nil
	} else {
		d := generic.StartOfDay(date)
		if d.Before(generic.StartOfDay(t.Timestamp)) {
			return Ticket{}, generic.Invalid("estimated_delivery", "must not be before the ticket was opened")
		}
		t.EstimatedDelivery = &d
	}
	if err := l.repo.SaveTicket(ctx, t); err != nil {
		return Ticket{}, fmt.Errorf("save ticket: %w", err)
	}
	return t, nil
}

func (l *Ledger) uncount(ctx context.Context, t Ticket) error {
	before, err := l.customers.FindByID(ctx, t.CustomerID)
	if err != nil {
		return fmt.Errorf("uncount service: %w", err)
	}
	after, err := l.customers.DecrementServices(ctx, t.CustomerID)
	if err != nil {
		return fmt.Errorf("uncount service: %w", err)
	}
	l.journal.Record(generic.MovementServices, t.CustomerID, after.ServiceCount-before.ServiceCount,
		generic.MovementReversal, t.ID)
	return nil
}

func validateInput(in Input) error {
	if err := generic.Validate(in); err != nil {
		return err
	}
	if in.Cost.IsNegative() {
		return generic.Invalid("cost", "must not be negative")
	}
	return nil
}

func normalize(in Input) Input {
	for _, f := range []*string{&in.Brand, &in.Model, &in.DialColor, &in.MovementNo,
		&in.Gender, &in.CaseType, &in.StrapType, &in.Issue} {
		*f = strings.TrimSpace(*f)
	}
	return in
}

func fill(t *Ticket, in Input, c customers.Customer) {
	t.CustomerID = c.ID
	t.CustomerName = c.Name
	t.Brand = in.Brand
	t.Model = in.Model
	t.WatchName = in.Brand + " " + in.Model
	t.DialColor = in.DialColor
	t.MovementNo = in.MovementNo
	t.Gender = in.Gender
	t.CaseType = in.CaseType
	t.StrapType = in.StrapType
	t.Issue = in.Issue
	t.Cost = in.Cost
}

func source(t Ticket, c customers.Customer, createdBy string) invoices.ServiceSource {
	line := invoices.ServiceLine{
		WatchName:  t.WatchName,
		Brand:      t.Brand,
		Model:      t.Model,
		DialColor:  t.DialColor,
		MovementNo: t.MovementNo,
		Gender:     t.Gender,
		CaseType:   t.CaseType,
		StrapType:  t.StrapType,
		Issue:      t.Issue,
	}
	if t.Completion != nil {
		line.WorkDescription = t.Completion.Description
		line.ImageRef = t.Completion.ImageRef
		line.WarrantyMonths = t.Completion.WarrantyMonths
	}
	return invoices.ServiceSource{
		TicketID:  t.ID,
		Customer:  c,
		Line:      line,
		Cost:      t.Cost,
		CreatedBy: createdBy,
	}
}

// =============================================================================
// QUERIES
// =============================================================================

func (l *Ledger) Get(ctx context.Context, id string) (Ticket, error) {
	return l.repo.GetTicket(ctx, id)
}

// List returns all tickets, newest first.
func (l *Ledger) List(ctx context.Context) ([]Ticket, error) {
	all, err := l.repo.ListTickets(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	return all, nil
}

func (l *Ledger) ByStatus(ctx context.Context, s Status) ([]Ticket, error) {
	return l.where(ctx, func(t Ticket) bool { return t.Status == s })
}

func (l *Ledger) ByCustomer(ctx context.Context, customerID string) ([]Ticket, error) {
	return l.where(ctx, func(t Ticket) bool { return t.CustomerID == customerID })
}

// Incomplete returns up to limit tickets that are not completed.
func (l *Ledger) Incomplete(ctx context.Context, limit int) ([]Ticket, error) {
	open, err := l.where(ctx, func(t Ticket) bool { return t.Status != StatusCompleted })
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (l *Ledger) FilterByDateRange(ctx context.Context, r generic.DateRange) ([]Ticket, error) {
	return l.where(ctx, func(t Ticket) bool { return r.Contains(t.Timestamp) })
}

func (l *Ledger) FilterByMonth(ctx context.Context, year int, month time.Month) ([]Ticket, error) {
	r, err := generic.MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return l.FilterByDateRange(ctx, r)
}

// CompletedBetween returns tickets completed inside r.
func (l *Ledger) CompletedBetween(ctx context.Context, r generic.DateRange) ([]Ticket, error) {
	return l.where(ctx, func(t Ticket) bool {
		return t.CompletedAt != nil && r.Contains(*t.CompletedAt)
	})
}

func (l *Ledger) Search(ctx context.Context, query string) ([]Ticket, error) {
	return l.where(ctx, func(t Ticket) bool {
		return generic.Matches(query, t.CustomerName, t.WatchName, t.DialColor, t.MovementNo,
			t.Gender, t.CaseType, t.StrapType, t.Issue, string(t.Status), t.Cost.String(),
			t.Timestamp.Format(generic.DateLayout))
	})
}

func (l *Ledger) where(ctx context.Context, keep func(Ticket) bool) ([]Ticket, error) {
	all, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	return generic.Filter(all, keep), nil
}

func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	all, err := l.repo.ListTickets(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{ByStatus: map[Status]int{}, Revenue: decimal.Zero, AverageCost: decimal.Zero}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}
	total := decimal.Zero
	for _, t := range all {
		s.Total++
		s.ByStatus[t.Status]++
		total = total.Add(t.Cost)
		if t.Status == StatusCompleted {
			s.Revenue = s.Revenue.Add(t.Cost)
		}
	}
	if s.Total > 0 {
		s.AverageCost = total.Div(decimal.NewFromInt(int64(s.Total))).Round(2)
	}
	return s, nil
}

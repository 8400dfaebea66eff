/*
Package tickets is the service (repair) ledger.

PURPOSE:
  A ticket follows a watch from intake to hand-back. Intake issues a
  zero-amount acknowledgement invoice; completion issues the bill. The
  customer's service counter tracks the number of live tickets.

STATE MACHINE:
  pending     -> in-progress, on-hold
  in-progress -> completed, on-hold
  on-hold     -> in-progress
  completed   (terminal)

  Completing a ticket requires a work description and a warranty of
  0 to 60 months.

SEE ALSO:
  - ledger.go: Commands and queries
  - invoices: Acknowledgement and completion invoices
*/
package tickets

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusOnHold     Status = "on-hold"
	StatusCompleted  Status = "completed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusOnHold, StatusCompleted}

var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusOnHold},
	StatusInProgress: {StatusCompleted, StatusOnHold},
	StatusOnHold:     {StatusInProgress},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ParseStatus accepts the status names, case-insensitively.
func ParseStatus(s string) (Status, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// MaxWarrantyMonths bounds Completion.WarrantyMonths.
const MaxWarrantyMonths = 60

// Completion is required to move a ticket to completed.
type Completion struct {
	Description    string `json:"description" validate:"required"`
	ImageRef       string `json:"image_ref"`
	WarrantyMonths int    `json:"warranty_months" validate:"gte=0,lte=60"`
}

type Note struct {
	Text    string
	AddedBy string
	At      time.Time
}

type Ticket struct {
	ID           string
	Timestamp    time.Time
	CustomerID   string
	CustomerName string
	WatchName    string
	Brand        string
	Model        string
	DialColor    string
	MovementNo   string
	Gender       string
	CaseType     string
	StrapType    string
	Issue        string
	Cost         decimal.Decimal
	Status       Status
	CreatedBy    string

	StartedAt         *time.Time
	HeldAt            *time.Time
	CompletedAt       *time.Time
	EstimatedDelivery *time.Time
	Completion        *Completion
	Notes             []Note

	AcknowledgementInvoiceID string
	CompletionInvoiceID      string
}

// Input is used by both Create and Edit.
type Input struct {
	CustomerID string          `json:"customer_id" validate:"required"`
	Brand      string          `json:"brand" validate:"required"`
	Model      string          `json:"model" validate:"required"`
	DialColor  string          `json:"dial_color" validate:"required"`
	MovementNo string          `json:"movement_no" validate:"required"`
	Gender     string          `json:"gender" validate:"required"`
	CaseType   string          `json:"case_type" validate:"required"`
	StrapType  string          `json:"strap_type" validate:"required"`
	Issue      string          `json:"issue" validate:"required"`
	Cost       decimal.Decimal `json:"cost"`
}

type Stats struct {
	Total       int
	ByStatus    map[Status]int
	Revenue     decimal.Decimal // cost of completed tickets
	AverageCost decimal.Decimal
}

// Repository persists tickets. GetTicket returns *generic.NotFoundError for
// unknown ids.
type Repository interface {
	GetTicket(ctx context.Context, id string) (Ticket, error)
	ListTickets(ctx context.Context) ([]Ticket, error)
	SaveTicket(ctx context.Context, t Ticket) error
	DeleteTicket(ctx context.Context, id string) error
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Responses decouple the
  ledger types from the wire contract; request bodies reuse the ledger input
  types (inventory.NewItem, sales.Input, ...) since those already carry
  json and validate tags.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types that have no ledger equivalent
  - *Response: Wrappers returning more than one record

MONEY:
  Amounts are sent as decimal strings ("900000") next to a *_display field
  rendered by invoices.Formatter ("₹900,000.00").

SEE ALSO:
  - handlers.go: Uses these types
  - invoices/format.go: Currency rendering
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

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
// REQUEST TYPES
// =============================================================================

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RestockRequest struct {
	Amount int `json:"amount" validate:"gt=0"`
}

// StatusRequest moves a service ticket. Completion is required when Status
// is "completed".
type StatusRequest struct {
	Status     string              `json:"status" validate:"required"`
	Completion *tickets.Completion `json:"completion,omitempty"`
}

type NoteRequest struct {
	Text string `json:"text" validate:"required"`
}

// DeliveryRequest sets the estimated delivery date (YYYY-MM-DD).
type DeliveryRequest struct {
	Date string `json:"date" validate:"required"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type UserDTO struct {
	Username  string   `json:"username"`
	Role      string   `json:"role"`
	FullName  string   `json:"full_name"`
	Email     string   `json:"email"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"created_at"`
	LastLogin *string  `json:"last_login,omitempty"`
	Sections  []string `json:"sections,omitempty"`
}

type ItemDTO struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	PriceDisplay string          `json:"price_display"`
	Quantity     int             `json:"quantity"`
	Status       string          `json:"status"`
	Description  string          `json:"description,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

type CustomerDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address,omitempty"`
	Purchases    int    `json:"purchases"`
	ServiceCount int    `json:"service_count"`
	CreatedAt    string `json:"created_at"`
	CreatedBy    string `json:"created_by,omitempty"`
}

type SaleDTO struct {
	ID            string          `json:"id"`
	Timestamp     string          `json:"timestamp"`
	CustomerID    string          `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	WatchID       string          `json:"watch_id"`
	WatchName     string          `json:"watch_name"`
	WatchCode     string          `json:"watch_code"`
	Brand         string          `json:"brand"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalDisplay  string          `json:"total_display"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
	CreatedBy     string          `json:"created_by"`
	InvoiceID     string          `json:"invoice_id"`
}

type NoteDTO struct {
	Text    string `json:"text"`
	AddedBy string `json:"added_by"`
	At      string `json:"at"`
}

type TicketDTO struct {
	ID                string              `json:"id"`
	Timestamp         string              `json:"timestamp"`
	CustomerID        string              `json:"customer_id"`
	CustomerName      string              `json:"customer_name"`
	WatchName         string              `json:"watch_name"`
	Brand             string              `json:"brand"`
	Model             string              `json:"model"`
	DialColor         string              `json:"dial_color"`
	MovementNo        string              `json:"movement_no"`
	Gender            string              `json:"gender"`
	CaseType          string              `json:"case_type"`
	StrapType         string              `json:"strap_type"`
	Issue             string              `json:"issue"`
	Cost              decimal.Decimal     `json:"cost"`
	CostDisplay       string              `json:"cost_display"`
	Status            string              `json:"status"`
	CreatedBy         string              `json:"created_by"`
	StartedAt         *string             `json:"started_at,omitempty"`
	HeldAt            *string             `json:"held_at,omitempty"`
	CompletedAt       *string             `json:"completed_at,omitempty"`
	EstimatedDelivery *string             `json:"estimated_delivery,omitempty"`
	Completion        *tickets.Completion `json:"completion,omitempty"`
	Notes             []NoteDTO           `json:"notes"`

	AcknowledgementInvoiceID string `json:"acknowledgement_invoice_id,omitempty"`
	CompletionInvoiceID      string `json:"completion_invoice_id,omitempty"`
}

type InvoiceDTO struct {
	ID              string                `json:"id"`
	InvoiceNo       string                `json:"invoice_no"`
	Type            string                `json:"type"`
	SubType         string                `json:"sub_type"`
	RelatedID       string                `json:"related_id"`
	RelatedType     string                `json:"related_type"`
	CustomerID      string                `json:"customer_id"`
	CustomerName    string                `json:"customer_name"`
	CustomerPhone   string                `json:"customer_phone"`
	CustomerAddress string                `json:"customer_address,omitempty"`
	Amount          decimal.Decimal       `json:"amount"`
	AmountDisplay   string                `json:"amount_display"`
	Status          string                `json:"status"`
	CreatedBy       string                `json:"created_by"`
	IssuedAt        string                `json:"issued_at"`
	Sale            *invoices.SaleLine    `json:"sale,omitempty"`
	Service         *invoices.ServiceLine `json:"service,omitempty"`
}

type SaleResponse struct {
	Sale    SaleDTO    `json:"sale"`
	Invoice InvoiceDTO `json:"invoice"`
}

// TicketResponse carries the invoice issued by the call, if any.
type TicketResponse struct {
	Ticket  TicketDTO   `json:"ticket"`
	Invoice *InvoiceDTO `json:"invoice,omitempty"`
}

type HistoryDTO struct {
	Customer CustomerDTO `json:"customer"`
	Sales    []SaleDTO   `json:"sales"`
	Tickets  []TicketDTO `json:"tickets"`
}

type MovementDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	SubjectID   string `json:"subject_id"`
	Delta       int    `json:"delta"`
	Type        string `json:"type"`
	ReferenceID string `json:"reference_id,omitempty"`
	Reason      string `json:"reason"`
	Actor       string `json:"actor"`
	At          string `json:"at"`
}

type SalesStatsDTO struct {
	Count           int                        `json:"count"`
	TotalRevenue    decimal.Decimal            `json:"total_revenue"`
	RevenueDisplay  string                     `json:"revenue_display"`
	AverageSale     decimal.Decimal            `json:"average_sale"`
	UnitsSold       int                        `json:"units_sold"`
	ByPaymentMethod map[string]decimal.Decimal `json:"by_payment_method"`
	ByBrand         map[string]decimal.Decimal `json:"by_brand"`
}

type DashboardDTO struct {
	Inventory struct {
		TotalItems int             `json:"total_items"`
		Available  int             `json:"available"`
		Sold       int             `json:"sold"`
		LowStock   int             `json:"low_stock"`
		TotalValue decimal.Decimal `json:"total_value"`
	} `json:"inventory"`
	Customers struct {
		Total  int           `json:"total"`
		Active int           `json:"active"`
		Top    []CustomerDTO `json:"top"`
	} `json:"customers"`
	Sales    SalesStatsDTO `json:"sales"`
	Services struct {
		Total       int             `json:"total"`
		ByStatus    map[string]int  `json:"by_status"`
		Revenue     decimal.Decimal `json:"revenue"`
		AverageCost decimal.Decimal `json:"average_cost"`
	} `json:"services"`
	Invoices struct {
		Total        int             `json:"total"`
		ByType       map[string]int  `json:"by_type"`
		TotalRevenue decimal.Decimal `json:"total_revenue"`
	} `json:"invoices"`
	TodaySales          int             `json:"today_sales"`
	TodayRevenue        decimal.Decimal `json:"today_revenue"`
	TodayRevenueDisplay string          `json:"today_revenue_display"`
	RecentSales         []SaleDTO       `json:"recent_sales"`
	OpenTickets         []TicketDTO     `json:"open_tickets"`
	LowStock            []ItemDTO       `json:"low_stock"`
}

// MonthlyRevenueDTO is one bar of the revenue chart.
type MonthlyRevenueDTO struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

// presenter converts ledger records, rendering money with one formatter.
type presenter struct {
	money *invoices.Formatter
}

func (p presenter) display(d decimal.Decimal) string {
	if p.money == nil {
		return d.StringFixed(2)
	}
	return p.money.FormatAmount(d)
}

func stamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

func stampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := stamp(*t)
	return &s
}

func (p presenter) user(u access.User, sections []access.Section) UserDTO {
	dto := UserDTO{
		Username:  u.Username,
		Role:      string(u.Role),
		FullName:  u.FullName,
		Email:     u.Email,
		Status:    string(u.Status),
		CreatedAt: stamp(u.CreatedAt),
		LastLogin: stampPtr(u.LastLogin),
	}
	for _, s := range sections {
		dto.Sections = append(dto.Sections, string(s))
	}
	return dto
}

func (p presenter) item(i inventory.Item) ItemDTO {
	return ItemDTO{
		ID:           i.ID,
		Code:         i.Code,
		Brand:        i.Brand,
		Model:        i.Model,
		Name:         i.Name(),
		Price:        i.Price,
		PriceDisplay: p.display(i.Price),
		Quantity:     i.Quantity,
		Status:       string(i.Status),
		Description:  i.Description,
		CreatedAt:    stamp(i.CreatedAt),
		UpdatedAt:    stamp(i.UpdatedAt),
	}
}

func (p presenter) customer(c customers.Customer) CustomerDTO {
	return CustomerDTO{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Address:      c.Address,
		Purchases:    c.Purchases,
		ServiceCount: c.ServiceCount,
		CreatedAt:    stamp(c.CreatedAt),
		CreatedBy:    c.CreatedBy,
	}
}

func (p presenter) sale(s sales.Sale) SaleDTO {
	return SaleDTO{
		ID:            s.ID,
		Timestamp:     stamp(s.Timestamp),
		CustomerID:    s.CustomerID,
		CustomerName:  s.CustomerName,
		WatchID:       s.WatchID,
		WatchName:     s.WatchName,
		WatchCode:     s.WatchCode,
		Brand:         s.Brand,
		Price:         s.Price,
		Quantity:      s.Quantity,
		TotalAmount:   s.TotalAmount,
		TotalDisplay:  p.display(s.TotalAmount),
		PaymentMethod: s.PaymentMethod,
		Status:        string(s.Status),
		CreatedBy:     s.CreatedBy,
		InvoiceID:     s.InvoiceID,
	}
}

func (p presenter) ticket(t tickets.Ticket) TicketDTO {
	dto := TicketDTO{
		ID:                       t.ID,
		Timestamp:                stamp(t.Timestamp),
		CustomerID:               t.CustomerID,
		CustomerName:             t.CustomerName,
		WatchName:                t.WatchName,
		Brand:                    t.Brand,
		Model:                    t.Model,
		DialColor:                t.DialColor,
		MovementNo:               t.MovementNo,
		Gender:                   t.Gender,
		CaseType:                 t.CaseType,
		StrapType:                t.StrapType,
		Issue:                    t.Issue,
		Cost:                     t.Cost,
		CostDisplay:              p.display(t.Cost),
		Status:                   string(t.Status),
		CreatedBy:                t.CreatedBy,
		StartedAt:                stampPtr(t.StartedAt),
		HeldAt:                   stampPtr(t.HeldAt),
		CompletedAt:              stampPtr(t.CompletedAt),
		Completion:               t.Completion,
		Notes:                    make([]NoteDTO, 0, len(t.Notes)),
		AcknowledgementInvoiceID: t.AcknowledgementInvoiceID,
		CompletionInvoiceID:      t.CompletionInvoiceID,
	}
	if t.EstimatedDelivery != nil {
		d := t.EstimatedDelivery.Format(generic.DateLayout)
		dto.EstimatedDelivery = &d
	}
	for _, n := range t.Notes {
		dto.Notes = append(dto.Notes, NoteDTO{Text: n.Text, AddedBy: n.AddedBy, At: stamp(n.At)})
	}
	return dto
}

func (p presenter) invoice(inv invoices.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:              inv.ID,
		InvoiceNo:       inv.InvoiceNo,
		Type:            string(inv.Type),
		SubType:         inv.SubType,
		RelatedID:       inv.RelatedID,
		RelatedType:     string(inv.RelatedType),
		CustomerID:      inv.CustomerID,
		CustomerName:    inv.CustomerName,
		CustomerPhone:   inv.CustomerPhone,
		CustomerAddress: inv.CustomerAddress,
		Amount:          inv.Amount,
		AmountDisplay:   p.display(inv.Amount),
		Status:          inv.Status,
		CreatedBy:       inv.CreatedBy,
		IssuedAt:        stamp(inv.IssuedAt),
		Sale:            inv.Sale,
		Service:         inv.Service,
	}
}

func (p presenter) movement(m generic.Movement) MovementDTO {
	return MovementDTO{
		ID:          m.ID,
		Kind:        string(m.Kind),
		SubjectID:   m.SubjectID,
		Delta:       m.Delta,
		Type:        string(m.Type),
		ReferenceID: m.ReferenceID,
		Reason:      m.Reason,
		Actor:       m.Actor,
		At:          stamp(m.At),
	}
}

func (p presenter) salesStats(st sales.Stats) SalesStatsDTO {
	return SalesStatsDTO{
		Count:           st.Count,
		TotalRevenue:    st.TotalRevenue,
		RevenueDisplay:  p.display(st.TotalRevenue),
		AverageSale:     st.AverageSale,
		UnitsSold:       st.UnitsSold,
		ByPaymentMethod: st.ByPaymentMethod,
		ByBrand:         st.ByBrand,
	}
}

func (p presenter) dashboard(d shop.Dashboard) DashboardDTO {
	var dto DashboardDTO
	dto.Inventory.TotalItems = d.Inventory.TotalItems
	dto.Inventory.Available = d.Inventory.Available
	dto.Inventory.Sold = d.Inventory.Sold
	dto.Inventory.LowStock = d.Inventory.LowStock
	dto.Inventory.TotalValue = d.Inventory.TotalValue

	dto.Customers.Total = d.Customers.Total
	dto.Customers.Active = d.Customers.Active
	dto.Customers.Top = mapSlice(d.Customers.Top, p.customer)

	dto.Sales = p.salesStats(d.Sales)

	dto.Services.Total = d.Services.Total
	dto.Services.ByStatus = make(map[string]int, len(d.Services.ByStatus))
	for s, n := range d.Services.ByStatus {
		dto.Services.ByStatus[string(s)] = n
	}
	dto.Services.Revenue = d.Services.Revenue
	dto.Services.AverageCost = d.Services.AverageCost

	dto.Invoices.Total = d.Invoices.Total
	dto.Invoices.ByType = make(map[string]int, len(d.Invoices.ByType))
	for t, n := range d.Invoices.ByType {
		dto.Invoices.ByType[string(t)] = n
	}
	dto.Invoices.TotalRevenue = d.Invoices.TotalRevenue

	dto.TodaySales = d.TodaySales
	dto.TodayRevenue = d.TodayRevenue
	dto.TodayRevenueDisplay = p.display(d.TodayRevenue)
	dto.RecentSales = mapSlice(d.RecentSales, p.sale)
	dto.OpenTickets = mapSlice(d.OpenTickets, p.ticket)
	dto.LowStock = mapSlice(d.LowStock, p.item)
	return dto
}

// mapSlice converts every element and never returns nil, so empty lists
// encode as [].
func mapSlice[T, D any](in []T, conv func(T) D) []D {
	out := make([]D, len(in))
	for i, v := range in {
		out[i] = conv(v)
	}
	return out
}

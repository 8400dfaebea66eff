package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/invoices"
	"github.com/warp/watchcraft/sales"
	"github.com/warp/watchcraft/tickets"
)

// =============================================================================
// SALES HANDLERS
// =============================================================================

// ListSales returns sales, newest first.
// GET /api/sales?q=&customer_id=&from=&to=&month=&year=
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.Engine.ListSales(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, h.present.sale))
}

// GET /api/sales/{id}
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.GetSale(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.sale(s))
}

// RecordSale returns the sale and its invoice.
// POST /api/sales
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var in sales.Input
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	s, inv, err := h.Engine.RecordSale(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Metrics.InvoiceIssued(inv.Type)
	writeJSON(w, http.StatusCreated, SaleResponse{Sale: h.present.sale(s), Invoice: h.present.invoice(inv)})
}

// UpdateSale re-applies the sale with new values. The invoice is unchanged.
// PUT /api/sales/{id}
func (h *Handler) UpdateSale(w http.ResponseWriter, r *http.Request) {
	var in sales.Input
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.Engine.EditSale(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.sale(s))
}

// DELETE /api/sales/{id}
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.DeleteSale(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.sale(s))
}

// =============================================================================
// SERVICE HANDLERS
// =============================================================================

// ListServices returns tickets, newest first.
// GET /api/services?q=&status=&customer_id=&from=&to=&month=&year=
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.Engine.ListServiceTickets(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, h.present.ticket))
}

// GET /api/services/{id}
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	t, err := h.Engine.GetServiceTicket(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.ticket(t))
}

// CreateService returns the ticket and its acknowledgement invoice.
// POST /api/services
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var in tickets.Input
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	t, ack, err := h.Engine.CreateServiceTicket(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Metrics.InvoiceIssued(ack.Type)
	dto := h.present.invoice(ack)
	writeJSON(w, http.StatusCreated, TicketResponse{Ticket: h.present.ticket(t), Invoice: &dto})
}

// TransitionService moves the ticket through its state machine. Completing
// a ticket returns the completion invoice.
// POST /api/services/{id}/status
func (h *Handler) TransitionService(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeValid(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	status, ok := tickets.ParseStatus(req.Status)
	if !ok {
		h.fail(w, r, generic.Invalid("status", "unknown service status"))
		return
	}
	t, bill, err := h.Engine.TransitionServiceStatus(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), status, req.Completion)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := TicketResponse{Ticket: h.present.ticket(t)}
	if bill != nil {
		h.Metrics.InvoiceIssued(bill.Type)
		dto := h.present.invoice(*bill)
		resp.Invoice = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// PUT /api/services/{id}
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var in tickets.Input
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.Engine.EditServiceTicket(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.ticket(t))
}

// DELETE /api/services/{id}
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	t, err := h.Engine.DeleteServiceTicket(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.ticket(t))
}

// POST /api/services/{id}/notes
func (h *Handler) AddServiceNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := decodeValid(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.Engine.AddServiceNote(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.ticket(t))
}

// PUT /api/services/{id}/delivery
func (h *Handler) SetServiceDelivery(w http.ResponseWriter, r *http.Request) {
	var req DeliveryRequest
	if err := decodeValid(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	date, err := time.Parse(generic.DateLayout, req.Date)
	if err != nil {
		h.fail(w, r, generic.Invalid("date", "invalid date (use YYYY-MM-DD)"))
		return
	}
	t, err := h.Engine.SetEstimatedDelivery(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.ticket(t))
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// ListInvoices returns the invoices of one sale or ticket when related_id is
// given, otherwise all invoices matching the list filters (type accepts a
// type name or prefix).
// GET /api/invoices?related_id=&related_type=
// GET /api/invoices?q=&type=&customer_id=&from=&to=
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		list []invoices.Invoice
		err  error
	)
	if relatedID := q.Get("related_id"); relatedID != "" {
		list, err = h.Engine.ListInvoicesFor(ctx, actorFrom(ctx), relatedID, invoices.RelatedType(q.Get("related_type")))
	} else {
		filter, ferr := parseFilter(r)
		if ferr != nil {
			h.fail(w, r, ferr)
			return
		}
		list, err = h.Engine.ListInvoices(ctx, actorFrom(ctx), filter)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, h.present.invoice))
}

// GET /api/invoices/{id}
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Engine.GetInvoice(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.invoice(inv))
}

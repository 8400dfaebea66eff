package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/inventory"
)

// =============================================================================
// INVENTORY HANDLERS
// =============================================================================

// ListInventory returns items matching q, filtered by creation date.
// GET /api/inventory
func (h *Handler) ListInventory(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.Engine.ListInventory(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(items, h.present.item))
}

// GET /api/inventory/available
func (h *Handler) AvailableInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.Engine.AvailableInventory(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(items, h.present.item))
}

// LowStock defaults the threshold to the configured one.
// GET /api/inventory/low-stock?threshold=
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold, ok, err := intParam(r.URL.Query(), "threshold")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		threshold = h.Engine.LowStockThreshold()
	}
	items, err := h.Engine.LowStock(r.Context(), actorFrom(r.Context()), threshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(items, h.present.item))
}

// GenerateCode previews the next code for a brand.
// GET /api/inventory/code?brand=
func (h *Handler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	brand := strings.TrimSpace(r.URL.Query().Get("brand"))
	if brand == "" {
		h.fail(w, r, generic.Invalid("brand", "is required"))
		return
	}
	code, err := h.Engine.GenerateCode(r.Context(), actorFrom(r.Context()), brand)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"brand": brand, "code": code})
}

// GET /api/inventory/{id}
func (h *Handler) GetInventoryItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Engine.GetInventoryItem(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.item(item))
}

// POST /api/inventory
func (h *Handler) CreateInventoryItem(w http.ResponseWriter, r *http.Request) {
	var in inventory.NewItem
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.Engine.AddInventoryItem(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present.item(item))
}

// PUT /api/inventory/{id}
func (h *Handler) UpdateInventoryItem(w http.ResponseWriter, r *http.Request) {
	var in inventory.ItemUpdate
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.Engine.EditInventoryItem(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.item(item))
}

// DELETE /api/inventory/{id}
func (h *Handler) DeleteInventoryItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Engine.DeleteInventoryItem(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.item(item))
}

// POST /api/inventory/{id}/restock
func (h *Handler) RestockInventoryItem(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if err := decodeValid(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.Engine.RestockInventoryItem(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.item(item))
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// GET /api/customers?q=
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.Engine.ListCustomers(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, h.present.customer))
}

// GET /api/customers/{id}
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Engine.GetCustomer(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.customer(c))
}

// GET /api/customers/{id}/history
func (h *Handler) GetCustomerHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := h.Engine.GetCustomerHistory(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryDTO{
		Customer: h.present.customer(hist.Customer),
		Sales:    mapSlice(hist.Sales, h.present.sale),
		Tickets:  mapSlice(hist.Tickets, h.present.ticket),
	})
}

// POST /api/customers
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var in customers.Details
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.Engine.AddCustomer(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present.customer(c))
}

// PUT /api/customers/{id}
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var in customers.Details
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.Engine.EditCustomer(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.customer(c))
}

// DELETE /api/customers/{id}
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Engine.DeleteCustomer(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.customer(c))
}

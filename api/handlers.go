/*
handlers.go - HTTP API handlers for the watch shop

PURPOSE:
  Exposes shop.Engine via REST. Handlers decode the request, call exactly
  one Engine operation with the authenticated actor, and encode the result.
  All business rules, permission checks included, live in the Engine.

ENDPOINTS:
  Session:
    POST   /api/login                  Check credentials, record login
    GET    /api/me                     Current actor and its sections

  Inventory (handlers_stock.go):
    GET    /api/inventory              List (q, from, to, month, year)
    POST   /api/inventory              Add item
    GET    /api/inventory/available    Items with quantity > 0
    GET    /api/inventory/low-stock    Items at or below ?threshold=
    GET    /api/inventory/code         Next code for ?brand=
    GET    /api/inventory/{id}         Get item
    PUT    /api/inventory/{id}         Edit item
    DELETE /api/inventory/{id}         Delete item
    POST   /api/inventory/{id}/restock Add units

  Customers (handlers_stock.go):
    GET/POST /api/customers, GET/PUT/DELETE /api/customers/{id},
    GET /api/customers/{id}/history

  Sales, services, invoices (handlers_orders.go):
    /api/sales, /api/services, /api/invoices

  Admin:
    GET/POST /api/users, PUT/DELETE /api/users/{username}
    GET      /api/dashboard
    GET      /api/journal              Movements (subject_id, reference_id, kind)
    GET      /api/reports/sales        Sales stats for a date range
    GET      /api/reports/revenue      Monthly revenue for ?year=

  Scenarios (scenarios.go):
    GET /api/scenarios, GET /api/scenarios/current,
    POST /api/scenarios/load, POST /api/scenarios/reset

  Health:
    GET /healthz                       503 when the store ping fails

ERROR HANDLING:
  Errors are returned as JSON (ErrorResponse) with a status derived from
  the generic error taxonomy:
  - 400: Validation errors, invalid transitions, malformed input
  - 401: Missing or invalid credentials
  - 403: Role lacks the section
  - 404: Record not found
  - 409: Duplicate value, insufficient stock
  - 500: Internal errors (logged, details hidden)

SEE ALSO:
  - auth.go: Basic authentication middleware
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/watchcraft/access"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/invoices"
	"github.com/warp/watchcraft/shop"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is a shop.Store that can also be wiped by scenario loading.
type Store interface {
	shop.Store
	Reset(ctx context.Context) error
}

// pinger is implemented by stores backed by a connection (store/sqlite).
type pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *shop.Engine
	Store   Store
	Metrics *Metrics
	Logger  *slog.Logger

	present presenter

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. money may be nil, in which case amounts are
// displayed without a currency symbol.
func NewHandler(engine *shop.Engine, store Store, money *invoices.Formatter, metrics *Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Engine:  engine,
		Store:   store,
		Metrics: metrics,
		Logger:  logger,
		present: presenter{money: money},
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Login checks credentials and returns the user with its sections.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeValid(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.Engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Logger.InfoContext(r.Context(), "login", slog.String("user", u.Username), slog.String("role", string(u.Role)))
	writeJSON(w, http.StatusOK, h.present.user(u, h.Engine.Policy().Sections(u.Role)))
}

// Me returns the authenticated actor.
// GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	sections := h.Engine.Policy().Sections(actor.Role)
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = string(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username": actor.Username,
		"role":     actor.Role,
		"sections": names,
	})
}

// =============================================================================
// USERS
// =============================================================================

// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Engine.ListUsers(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(users, func(u access.User) UserDTO {
		return h.present.user(u, nil)
	}))
}

// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in access.NewUser
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.Engine.AddUser(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present.user(u, nil))
}

// PUT /api/users/{username}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var in access.UserUpdate
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.Engine.EditUser(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "username"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.user(u, nil))
}

// DELETE /api/users/{username}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Engine.DeleteUser(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.user(u, nil))
}

// =============================================================================
// DASHBOARD, JOURNAL, REPORTS
// =============================================================================

// GET /api/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Engine.Dashboard(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.dashboard(d))
}

// Journal lists stock and counter movements, oldest first.
// GET /api/journal?subject_id=&reference_id=&kind=
func (h *Handler) Journal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := generic.MovementFilter{
		SubjectID:   q.Get("subject_id"),
		ReferenceID: q.Get("reference_id"),
		Kind:        generic.MovementKind(q.Get("kind")),
	}
	moves, err := h.Engine.Journal(r.Context(), actorFrom(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(moves, h.present.movement))
}

// SalesReport summarizes sales in a range given as from/to, month/year or
// year.
// GET /api/reports/sales
func (h *Handler) SalesReport(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rng == nil {
		h.fail(w, r, generic.Invalid("from", "a date range is required (from/to, month/year or year)"))
		return
	}
	st, err := h.Engine.SalesReport(r.Context(), actorFrom(r.Context()), *rng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.salesStats(st))
}

// GET /api/reports/revenue?year=
func (h *Handler) MonthlyRevenue(w http.ResponseWriter, r *http.Request) {
	year, ok, err := intParam(r.URL.Query(), "year")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		h.fail(w, r, generic.Invalid("year", "is required"))
		return
	}
	months, err := h.Engine.MonthlyRevenue(r.Context(), actorFrom(r.Context()), year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]MonthlyRevenueDTO, len(months))
	for i, rev := range months {
		out[i] = MonthlyRevenueDTO{Month: time.Month(i + 1).String(), Revenue: rev}
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// QUERY PARSING
// =============================================================================

// parseFilter reads the list filters shared by every list endpoint.
// status and type are aliases.
func parseFilter(r *http.Request) (shop.Filter, error) {
	q := r.URL.Query()
	f := shop.Filter{
		Query:      strings.TrimSpace(q.Get("q")),
		CustomerID: q.Get("customer_id"),
		Status:     q.Get("status"),
	}
	if f.Status == "" {
		f.Status = q.Get("type")
	}
	rng, err := parseRange(q)
	if err != nil {
		return shop.Filter{}, err
	}
	f.Range = rng
	return f, nil
}

// parseRange returns nil when the query names no range. A single from or to
// selects one day; month requires year.
func parseRange(q url.Values) (*generic.DateRange, error) {
	from, to := q.Get("from"), q.Get("to")
	if from != "" || to != "" {
		if from == "" {
			from = to
		}
		if to == "" {
			to = from
		}
		rng, err := generic.ParseDateRange(from, to)
		if err != nil {
			return nil, err
		}
		return &rng, nil
	}

	year, hasYear, err := intParam(q, "year")
	if err != nil {
		return nil, err
	}
	month, hasMonth, err := intParam(q, "month")
	if err != nil {
		return nil, err
	}
	switch {
	case hasMonth && !hasYear:
		return nil, generic.Invalid("year", "is required with month")
	case hasMonth:
		rng, err := generic.MonthRange(year, time.Month(month))
		if err != nil {
			return nil, err
		}
		return &rng, nil
	case hasYear:
		if year < 1 {
			return nil, generic.Invalid("year", "year must be positive")
		}
		rng, err := generic.NewDateRange(
			generic.StartOfMonth(year, time.January),
			generic.EndOfMonth(year, time.December),
		)
		if err != nil {
			return nil, err
		}
		return &rng, nil
	}
	return nil, nil
}

func intParam(q url.Values, key string) (int, bool, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, generic.Invalid(key, "must be a whole number")
	}
	return n, true, nil
}

// Health reports liveness. Stores with a connection are pinged first.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			h.Logger.ErrorContext(ctx, "health check failed", slog.Any("error", err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &generic.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// decodeValid decodes and runs struct-tag validation, for request types the
// ledgers do not validate themselves.
func decodeValid(r *http.Request, v any) error {
	if err := decode(r, v); err != nil {
		return err
	}
	return generic.Validate(v)
}

// statusFor maps the error taxonomy to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, generic.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, generic.ErrPermission):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, generic.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, generic.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, generic.ErrInvalidTransition):
		return http.StatusBadRequest, "invalid_transition"
	case errors.Is(err, generic.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

// fail writes err as an ErrorResponse. Server errors are logged and their
// text is not sent to the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var (
		invalid *generic.ValidationError
		dup     *generic.DuplicateError
		stock   *generic.InsufficientStockError
		denied  *generic.PermissionError
	)
	switch {
	case errors.As(err, &invalid) && invalid.Field != "":
		resp.Details = map[string]string{"field": invalid.Field}
	case errors.As(err, &dup):
		resp.Details = map[string]string{"entity": dup.Entity, "field": dup.Field, "value": dup.Value}
	case errors.As(err, &stock):
		resp.Details = map[string]any{"item_id": stock.ItemID, "available": stock.Available, "requested": stock.Requested}
	case errors.As(err, &denied):
		resp.Details = map[string]string{"role": denied.Role, "section": denied.Section}
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="watchcraft"`)
	}
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

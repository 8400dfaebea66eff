/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Populates an empty store with sample data for demos and manual testing.
  Every record is created through shop.Engine, so scenario data obeys the
  same rules (codes, counters, invoices, journal) as real traffic.

AVAILABLE SCENARIOS:
  users-only: The three default accounts and nothing else
  demo:       Default accounts, three watches, two customers
  busy-day:   demo plus sales and service tickets in every state

DEFAULT ACCOUNTS:
  admin / admin123   (admin)
  owner / owner123   (owner)
  staff / staff123   (staff)

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "busy-day"}

NOTE:
  Loading a scenario resets the store. Only users with the users section
  may load or reset. If seeding fails the store is reset again to
  users-only, so the default accounts can still log in.

SEE ALSO:
  - handlers.go: Route table
  - cmd/server/main.go: Seeds SEED_SCENARIO into an empty store
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/warp/watchcraft/access"
	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/inventory"
	"github.com/warp/watchcraft/sales"
	"github.com/warp/watchcraft/shop"
	"github.com/warp/watchcraft/tickets"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const (
	ScenarioUsersOnly = "users-only"
	ScenarioDemo      = "demo"
	ScenarioBusyDay   = "busy-day"
)

var scenarios = []ScenarioDTO{
	{
		ID:          ScenarioUsersOnly,
		Name:        "Users Only",
		Description: "Default admin, owner and staff accounts with an empty shop",
	},
	{
		ID:          ScenarioDemo,
		Name:        "Demo Shop",
		Description: "Three watches in stock and two customers",
	},
	{
		ID:          ScenarioBusyDay,
		Name:        "Busy Day",
		Description: "Demo shop with sales, invoices and service tickets in every state",
	},
}

// DefaultUsers are the accounts every scenario creates.
var DefaultUsers = []access.NewUser{
	{Username: "admin", Password: "admin123", Role: string(access.RoleAdmin), FullName: "System Administrator", Email: "admin@zedsonwatchcraft.com"},
	{Username: "owner", Password: "owner123", Role: string(access.RoleOwner), FullName: "Shop Owner", Email: "owner@zedsonwatchcraft.com"},
	{Username: "staff", Password: "staff123", Role: string(access.RoleStaff), FullName: "Staff Member", Email: "staff@zedsonwatchcraft.com"},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the scenario loaded through the API, or null.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and seeds a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeValid(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.load(w, r, req.ScenarioID)
}

// ResetDatabase wipes the store, keeping only the default accounts.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.load(w, r, ScenarioUsersOnly)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	actor := actorFrom(ctx)
	if !h.Engine.Policy().HasPermission(actor.Role, access.SectionUsers) {
		h.fail(w, r, &generic.PermissionError{Role: string(actor.Role), Section: string(access.SectionUsers)})
		return
	}
	if !knownScenario(id) {
		h.fail(w, r, generic.Invalid("scenario_id", fmt.Sprintf("unknown scenario %q", id)))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		h.fail(w, r, fmt.Errorf("reset store: %w", err))
		return
	}
	h.currentScenario = ""
	if err := Seed(ctx, h.Engine, id); err != nil {
		h.restoreUsers(ctx, id, err)
		h.fail(w, r, fmt.Errorf("load scenario %s: %w", id, err))
		return
	}
	h.currentScenario = id

	h.Logger.InfoContext(ctx, "scenario loaded", slog.String("scenario", id), slog.String("actor", actor.Username))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": id})
}

// restoreUsers puts the default accounts back after a failed load so the
// shop stays reachable. Caller holds h.mu.
func (h *Handler) restoreUsers(ctx context.Context, id string, cause error) {
	h.Logger.ErrorContext(ctx, "scenario load failed, restoring default users",
		slog.String("scenario", id), slog.Any("error", cause))
	if err := h.Store.Reset(ctx); err != nil {
		h.Logger.ErrorContext(ctx, "reset after failed load", slog.Any("error", err))
		return
	}
	if err := Seed(ctx, h.Engine, ScenarioUsersOnly); err != nil {
		h.Logger.ErrorContext(ctx, "restore default users", slog.Any("error", err))
		return
	}
	h.currentScenario = ScenarioUsersOnly
}

func knownScenario(id string) bool {
	for _, s := range scenarios {
		if s.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// Seed loads scenario id into an empty store.
func Seed(ctx context.Context, e *shop.Engine, id string) error {
	if !knownScenario(id) {
		return generic.Invalid("scenario_id", fmt.Sprintf("unknown scenario %q", id))
	}
	admin, err := seedUsers(ctx, e)
	if err != nil {
		return err
	}
	if id == ScenarioUsersOnly {
		return nil
	}
	c, err := seedCatalog(ctx, e, admin)
	if err != nil {
		return err
	}
	if id == ScenarioBusyDay {
		return seedActivity(ctx, e, admin, c)
	}
	return nil
}

func seedUsers(ctx context.Context, e *shop.Engine) (shop.Actor, error) {
	var admin shop.Actor
	for _, in := range DefaultUsers {
		u, err := e.SeedUser(ctx, in)
		if err != nil {
			return shop.Actor{}, fmt.Errorf("seed user %s: %w", in.Username, err)
		}
		if u.Role == access.RoleAdmin {
			admin = shop.ActorFor(u)
		}
	}
	return admin, nil
}

type catalog struct {
	rolex, omega, casio inventory.Item
	raj, priya          customers.Customer
}

func seedCatalog(ctx context.Context, e *shop.Engine, admin shop.Actor) (catalog, error) {
	var (
		c   catalog
		err error
	)
	items := []struct {
		dst *inventory.Item
		in  inventory.NewItem
	}{
		{&c.rolex, inventory.NewItem{Code: "ROL001", Brand: "Rolex", Model: "Submariner", Price: generic.Money(850000), Quantity: 2, Description: "Luxury diving watch"}},
		{&c.omega, inventory.NewItem{Code: "OMG001", Brand: "Omega", Model: "Speedmaster", Price: generic.Money(450000), Quantity: 1, Description: "Professional chronograph"}},
		{&c.casio, inventory.NewItem{Code: "CAS001", Brand: "Casio", Model: "G-Shock", Price: generic.Money(15000), Quantity: 5, Description: "Sports watch"}},
	}
	for _, it := range items {
		if *it.dst, err = e.AddInventoryItem(ctx, admin, it.in); err != nil {
			return catalog{}, fmt.Errorf("seed item %s: %w", it.in.Code, err)
		}
	}

	people := []struct {
		dst *customers.Customer
		in  customers.Details
	}{
		{&c.raj, customers.Details{Name: "Raj Kumar", Email: "raj@email.com", Phone: "+91-9876543210", Address: "Chennai, Tamil Nadu"}},
		{&c.priya, customers.Details{Name: "Priya Sharma", Email: "priya@email.com", Phone: "+91-9876543211", Address: "Mumbai, Maharashtra"}},
	}
	for _, p := range people {
		if *p.dst, err = e.AddCustomer(ctx, admin, p.in); err != nil {
			return catalog{}, fmt.Errorf("seed customer %s: %w", p.in.Name, err)
		}
	}
	return c, nil
}

func seedActivity(ctx context.Context, e *shop.Engine, admin shop.Actor, c catalog) error {
	sold := []sales.Input{
		{CustomerID: c.raj.ID, WatchID: c.casio.ID, Price: c.casio.Price, Quantity: 2, PaymentMethod: "Cash"},
		{CustomerID: c.priya.ID, WatchID: c.omega.ID, Price: c.omega.Price, Quantity: 1, PaymentMethod: "Card"},
	}
	for _, in := range sold {
		if _, _, err := e.RecordSale(ctx, admin, in); err != nil {
			return fmt.Errorf("seed sale: %w", err)
		}
	}

	battery, _, err := e.CreateServiceTicket(ctx, admin, tickets.Input{
		CustomerID: c.raj.ID, Brand: "Titan", Model: "Edge", DialColor: "Black", MovementNo: "TQ-1043",
		Gender: "Male", CaseType: "Steel", StrapType: "Leather", Issue: "Battery replacement", Cost: generic.Money(500),
	})
	if err != nil {
		return fmt.Errorf("seed ticket: %w", err)
	}
	if _, _, err := e.TransitionServiceStatus(ctx, admin, battery.ID, tickets.StatusInProgress, nil); err != nil {
		return fmt.Errorf("start ticket: %w", err)
	}
	if _, err := e.AddServiceNote(ctx, admin, battery.ID, "Battery ordered from supplier"); err != nil {
		return fmt.Errorf("note ticket: %w", err)
	}

	crown, _, err := e.CreateServiceTicket(ctx, admin, tickets.Input{
		CustomerID: c.priya.ID, Brand: "Seiko", Model: "Presage", DialColor: "Blue", MovementNo: "4R35",
		Gender: "Female", CaseType: "Steel", StrapType: "Metal", Issue: "Crown stuck", Cost: generic.Money(2500),
	})
	if err != nil {
		return fmt.Errorf("seed ticket: %w", err)
	}
	if _, _, err := e.TransitionServiceStatus(ctx, admin, crown.ID, tickets.StatusInProgress, nil); err != nil {
		return fmt.Errorf("start ticket: %w", err)
	}
	done := &tickets.Completion{Description: "Crown replaced, movement cleaned and oiled", WarrantyMonths: 6}
	if _, _, err := e.TransitionServiceStatus(ctx, admin, crown.ID, tickets.StatusCompleted, done); err != nil {
		return fmt.Errorf("complete ticket: %w", err)
	}

	overhaul, _, err := e.CreateServiceTicket(ctx, admin, tickets.Input{
		CustomerID: c.raj.ID, Brand: "Rolex", Model: "Datejust", DialColor: "Silver", MovementNo: "3235",
		Gender: "Male", CaseType: "Oystersteel", StrapType: "Jubilee", Issue: "Full overhaul", Cost: generic.Money(18000),
	})
	if err != nil {
		return fmt.Errorf("seed ticket: %w", err)
	}
	if _, err := e.SetEstimatedDelivery(ctx, admin, overhaul.ID, overhaul.Timestamp.AddDate(0, 0, 7)); err != nil {
		return fmt.Errorf("schedule ticket: %w", err)
	}
	return nil
}

package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/generic/store"
	"github.com/warp/watchcraft/inventory"
	"github.com/warp/watchcraft/shop"
)

func TestScenarios_LoadAndReset(t *testing.T) {
	// GIVEN: A shop with only the default accounts
	s := newTestServer(t, ScenarioUsersOnly)

	rec := s.do(http.MethodGet, "/api/scenarios/current", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	// WHEN: Staff tries to load a scenario
	rec = s.do(http.MethodPost, "/api/scenarios/load", "staff", LoadScenarioRequest{ScenarioID: ScenarioBusyDay})

	// THEN: Forbidden
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// WHEN: Admin loads the busy day
	rec = s.do(http.MethodPost, "/api/scenarios/load", "admin", LoadScenarioRequest{ScenarioID: ScenarioBusyDay})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: It is current and its data is visible
	rec = s.do(http.MethodGet, "/api/scenarios/current", "admin", nil)
	assert.Equal(t, ScenarioBusyDay, decodeBody[ScenarioDTO](t, rec).ID)
	rec = s.do(http.MethodGet, "/api/invoices", "admin", nil)
	assert.Len(t, decodeBody[[]InvoiceDTO](t, rec), 6)

	// WHEN: Resetting
	rec = s.do(http.MethodPost, "/api/scenarios/reset", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: Only the accounts remain and numbering restarts
	rec = s.do(http.MethodGet, "/api/inventory", "admin", nil)
	assert.Empty(t, decodeBody[[]ItemDTO](t, rec))
	rec = s.do(http.MethodGet, "/api/users", "admin", nil)
	assert.Len(t, decodeBody[[]UserDTO](t, rec), 3)
	rec = s.do(http.MethodGet, "/api/scenarios/current", "admin", nil)
	assert.Equal(t, ScenarioUsersOnly, decodeBody[ScenarioDTO](t, rec).ID)
}

func TestScenarios_Unknown(t *testing.T) {
	s := newTestServer(t, ScenarioUsersOnly)

	rec := s.do(http.MethodPost, "/api/scenarios/load", "admin", LoadScenarioRequest{ScenarioID: "black-friday"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "scenario_id", decodeBody[ErrorResponse](t, rec).Details.(map[string]any)["field"])

	rec = s.do(http.MethodGet, "/api/scenarios", "staff", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]ScenarioDTO](t, rec), 3)
}

// noStockStore refuses to save inventory items inside transactions.
type noStockStore struct{ *store.Memory }

func (s noStockStore) WithTx(ctx context.Context, fn func(shop.Tables) error) error {
	return s.Memory.WithTx(ctx, func(t shop.Tables) error { return fn(noStockTables{t}) })
}

type noStockTables struct{ shop.Tables }

func (noStockTables) SaveItem(context.Context, inventory.Item) error {
	return errors.New("disk full")
}

func TestScenarios_FailedLoadKeepsDefaultUsers(t *testing.T) {
	// GIVEN: A shop whose store cannot save watches
	db := noStockStore{store.NewMemory()}
	engine := shop.New(db,
		shop.WithClock(generic.FixedClock(testNow)),
		shop.WithPasswordCost(bcrypt.MinCost),
	)
	require.NoError(t, Seed(context.Background(), engine, ScenarioUsersOnly))
	h := NewHandler(engine, db, nil, NewMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s := &testServer{t: t, h: h, engine: engine, router: NewRouter(h, nil)}

	// WHEN: Loading the demo, which adds watches
	rec := s.do(http.MethodPost, "/api/scenarios/load", "admin", LoadScenarioRequest{ScenarioID: ScenarioDemo})

	// THEN: The load fails but the default accounts can still log in
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	rec = s.do(http.MethodGet, "/api/users", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]UserDTO](t, rec), 3)
	rec = s.do(http.MethodGet, "/api/scenarios/current", "admin", nil)
	assert.Equal(t, ScenarioUsersOnly, decodeBody[ScenarioDTO](t, rec).ID)
}

func TestSeed_BusyDayInvoiceNumbers(t *testing.T) {
	s := newTestServer(t, ScenarioBusyDay)

	rec := s.do(http.MethodGet, "/api/invoices?type=SVC", "owner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bills := decodeBody[[]InvoiceDTO](t, rec)
	require.Len(t, bills, 1)
	assert.Equal(t, "SVC-000001", bills[0].InvoiceNo)
	assert.Equal(t, "Priya Sharma", bills[0].CustomerName)

	rec = s.do(http.MethodGet, "/api/invoices?type=Sales", "owner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	numbers := []string{}
	for _, inv := range decodeBody[[]InvoiceDTO](t, rec) {
		numbers = append(numbers, inv.InvoiceNo)
	}
	assert.ElementsMatch(t, []string{"SAL-000001", "SAL-000002"}, numbers)
}

// =============================================================================
// LOW-STOCK MONITOR AND METRICS
// =============================================================================

func TestLowStockMonitor_Check(t *testing.T) {
	// GIVEN: The demo shop (Rolex x2, Omega x1, Casio x5)
	s := newTestServer(t, ScenarioDemo)
	m := NewLowStockMonitor(s.engine, s.h.Metrics, s.h.Logger)

	// WHEN: Checking
	items, err := m.Check(context.Background())

	// THEN: Rolex and Omega are reported and the gauge follows
	require.NoError(t, err)
	codes := make([]string, len(items))
	for i, it := range items {
		codes[i] = it.Code
	}
	assert.ElementsMatch(t, []string{"ROL001", "OMG001"}, codes)
	assert.Equal(t, float64(2), testutil.ToFloat64(s.h.Metrics.lowStockItems))

	// WHEN: The threshold drops below every quantity
	m.Threshold = 0
	items, err = m.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, float64(0), testutil.ToFloat64(s.h.Metrics.lowStockItems))
}

func TestLowStockMonitor_RunStopsOnCancel(t *testing.T) {
	s := newTestServer(t, ScenarioDemo)
	m := NewLowStockMonitor(s.engine, s.h.Metrics, s.h.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, m.Run(ctx))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, ScenarioDemo)
	casio := s.findItem("staff", "CAS001")
	raj := s.findCustomer("staff", "raj")

	rec := s.do(http.MethodPost, "/api/sales", "staff", map[string]any{
		"customer_id": raj.ID, "watch_id": casio.ID, "price": "15000", "quantity": 1, "payment_method": "UPI",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `watchcraft_invoices_issued_total{type="SAL"} 1`)
	assert.Contains(t, body, "watchcraft_http_requests_total")
	assert.Contains(t, body, `route="/api/sales`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetLowStock(3)
		m.InvoiceIssued("SAL")
	})
}

func TestMetrics_RegistererExtendsEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "watchcraft_test_extra_total", Help: "Extra."})
	s.h.Metrics.Registerer().MustRegister(extra)
	extra.Inc()

	rec := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "watchcraft_test_extra_total 1")
}

/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and the route table.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK (outermost first):
  1. RealIP, RequestID:  Client address and a per-request id for logs
  2. Request logging:    One slog line per request
  3. Recoverer:          Panic -> 500 instead of a crash
  4. Timeout:            APP_REQUEST_TIMEOUT on the request context
  5. Secure headers:     unrolled/secure (HTTPS redirect in production)
  6. Rate limit:         RATE_LIMIT_PER_MIN per client IP
  7. CORS:               CORS_ORIGINS for the browser frontend
  8. Metrics:            Request count and latency per route

ROUTE GROUPS:
  /healthz              Liveness, pings the store when it supports it
  /metrics              Prometheus
  /api/login            Public
  /api/*                HTTP Basic authentication (auth.go)

SEE ALSO:
  - handlers.go: Endpoint list and error mapping
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/warp/watchcraft/app"
)

// NewRouter creates a router with all routes configured. cfg may be nil in
// tests; defaults then apply.
func NewRouter(h *Handler, cfg *app.Config) *chi.Mux {
	r := chi.NewRouter()
	for _, mw := range middlewareStack(h, cfg) {
		r.Use(mw)
	}

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", h.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Get("/me", h.Me)
			r.Get("/dashboard", h.Dashboard)
			r.Get("/journal", h.Journal)

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", h.ListInventory)
				r.Post("/", h.CreateInventoryItem)
				r.Get("/available", h.AvailableInventory)
				r.Get("/low-stock", h.LowStock)
				r.Get("/code", h.GenerateCode)
				r.Get("/{id}", h.GetInventoryItem)
				r.Put("/{id}", h.UpdateInventoryItem)
				r.Delete("/{id}", h.DeleteInventoryItem)
				r.Post("/{id}/restock", h.RestockInventoryItem)
			})

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", h.ListCustomers)
				r.Post("/", h.CreateCustomer)
				r.Get("/{id}", h.GetCustomer)
				r.Get("/{id}/history", h.GetCustomerHistory)
				r.Put("/{id}", h.UpdateCustomer)
				r.Delete("/{id}", h.DeleteCustomer)
			})

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", h.ListSales)
				r.Post("/", h.RecordSale)
				r.Get("/{id}", h.GetSale)
				r.Put("/{id}", h.UpdateSale)
				r.Delete("/{id}", h.DeleteSale)
			})

			r.Route("/services", func(r chi.Router) {
				r.Get("/", h.ListServices)
				r.Post("/", h.CreateService)
				r.Get("/{id}", h.GetService)
				r.Put("/{id}", h.UpdateService)
				r.Delete("/{id}", h.DeleteService)
				r.Post("/{id}/status", h.TransitionService)
				r.Post("/{id}/notes", h.AddServiceNote)
				r.Put("/{id}/delivery", h.SetServiceDelivery)
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", h.ListInvoices)
				r.Get("/{id}", h.GetInvoice)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
				r.Put("/{username}", h.UpdateUser)
				r.Delete("/{username}", h.DeleteUser)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/sales", h.SalesReport)
				r.Get("/revenue", h.MonthlyRevenue)
			})

			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		})
	})

	return r
}

func middlewareStack(h *Handler, cfg *app.Config) []func(http.Handler) http.Handler {
	timeout := 30 * time.Second
	rateLimit := 120
	origins := []string{"http://localhost:5173", "http://localhost:8080"}
	if cfg != nil {
		if cfg.AppRequestTimeout > 0 {
			timeout = cfg.AppRequestTimeout
		}
		if cfg.RateLimitPerMin > 0 {
			rateLimit = cfg.RateLimitPerMin
		}
		if len(cfg.CORSOrigins) > 0 {
			origins = cfg.CORSOrigins
		}
	}

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !cfg.IsProduction(),
	})

	return []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		requestLogger(h.Logger),
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					h.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		httprate.Limit(rateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
		}),
		h.Metrics.Middleware,
	}
}

// requestLogger writes one line per request once the response is done.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.LogAttrs(r.Context(), slog.LevelInfo, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("took", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote", r.RemoteAddr),
			)
		})
	}
}

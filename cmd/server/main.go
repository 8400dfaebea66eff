/*
main.go - Application entry point

PURPOSE:
  Starts the watch shop server: loads configuration, opens the store,
  seeds an empty store and runs the HTTP server next to the low-stock
  monitor until a signal arrives.

STARTUP SEQUENCE:
  1. Load configuration from the environment (app.LoadConfig)
  2. Open the store (memory or SQLite)
  3. Load the role table (ROLE_POLICY_FILE, optional)
  4. Build the engine, seed SEED_SCENARIO if the store has no users
  5. Run the HTTP server and the low-stock monitor in one errgroup

ENVIRONMENT:
  APP_ENV, APP_ADDR, APP_*_TIMEOUT   Server
  STORE_DRIVER, SQLITE_PATH          Storage (memory | sqlite)
  SEED_SCENARIO                      users-only | demo | busy-day
  ROLE_POLICY_FILE                   Role table as JSON or YAML
  LOW_STOCK_THRESHOLD, LOW_STOCK_INTERVAL
  CURRENCY, CORS_ORIGINS, RATE_LIMIT_PER_MIN, LOG_FORMAT

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM the server stops accepting connections and waits up to
  30s for active requests; the monitor stops; the store is closed.

SEE ALSO:
  - app/config.go: All settings and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/warp/watchcraft/access"
	"github.com/warp/watchcraft/api"
	"github.com/warp/watchcraft/app"
	"github.com/warp/watchcraft/factory"
	"github.com/warp/watchcraft/generic/store"
	"github.com/warp/watchcraft/invoices"
	"github.com/warp/watchcraft/shop"
	"github.com/warp/watchcraft/store/sqlite"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *app.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []shop.Option{
		shop.WithLogger(logger),
		shop.WithLowStockThreshold(cfg.LowStockThreshold),
	}
	if cfg.RolePolicyFile != "" {
		table, err := factory.NewRoleFactory().Load(cfg.RolePolicyFile)
		if err != nil {
			return fmt.Errorf("load role policy: %w", err)
		}
		opts = append(opts, shop.WithPolicy(access.NewPolicy(table)))
		logger.Info("role policy loaded", slog.String("file", cfg.RolePolicyFile))
	}
	engine := shop.New(db, opts...)

	if err := seed(ctx, cfg, db, engine, logger); err != nil {
		return err
	}

	money, err := invoices.NewFormatter(cfg.Currency)
	if err != nil {
		return fmt.Errorf("currency: %w", err)
	}
	metrics := api.NewMetrics()
	metrics.Registerer().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := api.NewHandler(engine, db, money, metrics, logger)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      api.NewRouter(handler, cfg),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	monitor := api.NewLowStockMonitor(engine, metrics, logger)
	monitor.Threshold = cfg.LowStockThreshold
	if cfg.LowStockInterval > 0 {
		monitor.Interval = cfg.LowStockInterval
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return monitor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func openStore(cfg *app.Config) (api.Store, func(), error) {
	switch cfg.StoreDriver {
	case app.DriverSQLite:
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}

// seed loads the configured scenario when the store has no users yet.
func seed(ctx context.Context, cfg *app.Config, db shop.Store, engine *shop.Engine, logger *slog.Logger) error {
	users, err := db.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("check users: %w", err)
	}
	if len(users) > 0 {
		return nil
	}
	scenario := cfg.SeedScenario
	if scenario == "" {
		scenario = api.ScenarioUsersOnly
	}
	if err := api.Seed(ctx, engine, scenario); err != nil {
		return fmt.Errorf("seed %s: %w", scenario, err)
	}
	logger.Info("store seeded", slog.String("scenario", scenario))
	return nil
}

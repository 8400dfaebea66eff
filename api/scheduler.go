/*
scheduler.go - Periodic low-stock monitor

PURPOSE:
  Checks inventory on a fixed interval and reports items whose quantity is
  at or below the low-stock threshold. Each check logs one warning per item
  and updates the watchcraft_low_stock_items gauge.

DESIGN:
  - Run blocks until its context is cancelled, so it can be a member of an
    errgroup next to the HTTP server
  - Checks once immediately, then on every tick
  - A failed check is logged and retried on the next tick

CONFIGURATION:
  - Interval:  LOW_STOCK_INTERVAL (default: 1 hour)
  - Threshold: LOW_STOCK_THRESHOLD (default: 2)

USAGE:
  monitor := api.NewLowStockMonitor(engine, metrics, logger)
  g.Go(func() error { return monitor.Run(ctx) })

SEE ALSO:
  - handlers_stock.go: GET /api/inventory/low-stock (on-demand check)
*/
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/warp/watchcraft/access"
	"github.com/warp/watchcraft/inventory"
	"github.com/warp/watchcraft/shop"
)

// MonitorActor is the identity the monitor queries inventory as.
var MonitorActor = shop.Actor{Username: "low-stock-monitor", Role: access.RoleAdmin}

// LowStockMonitor reports low stock on an interval.
type LowStockMonitor struct {
	Engine    *shop.Engine
	Metrics   *Metrics
	Logger    *slog.Logger
	Actor     shop.Actor
	Interval  time.Duration
	Threshold int
}

// NewLowStockMonitor creates a monitor with the engine's threshold and an
// hourly interval.
func NewLowStockMonitor(engine *shop.Engine, metrics *Metrics, logger *slog.Logger) *LowStockMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockMonitor{
		Engine:    engine,
		Metrics:   metrics,
		Logger:    logger,
		Actor:     MonitorActor,
		Interval:  time.Hour,
		Threshold: engine.LowStockThreshold(),
	}
}

// Run checks until ctx is cancelled. It always returns nil.
func (m *LowStockMonitor) Run(ctx context.Context) error {
	m.Logger.InfoContext(ctx, "low-stock monitor started",
		slog.Duration("interval", m.Interval),
		slog.Int("threshold", m.Threshold),
	)
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	m.checkAndReport(ctx)
	for {
		select {
		case <-ticker.C:
			m.checkAndReport(ctx)
		case <-ctx.Done():
			m.Logger.Info("low-stock monitor stopped")
			return nil
		}
	}
}

// Check returns the items at or below the threshold and updates the gauge.
func (m *LowStockMonitor) Check(ctx context.Context) ([]inventory.Item, error) {
	items, err := m.Engine.LowStock(ctx, m.Actor, m.Threshold)
	if err != nil {
		return nil, err
	}
	m.Metrics.SetLowStock(len(items))
	return items, nil
}

func (m *LowStockMonitor) checkAndReport(ctx context.Context) {
	items, err := m.Check(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.Logger.ErrorContext(ctx, "low-stock check failed", slog.Any("error", err))
		}
		return
	}
	for _, it := range items {
		m.Logger.WarnContext(ctx, "low stock",
			slog.String("code", it.Code),
			slog.String("name", it.Name()),
			slog.Int("quantity", it.Quantity),
		)
	}
}

package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/matrixhub/catalog-server/internal/service"
	"github.com/matrixhub/catalog-server/internal/telemetry"
)

type reloader interface {
	Reload(ctx context.Context) error
}

// catalogRefresher periodically reloads stores that keep a snapshot and publishes
// the entity count per type. A failed reload keeps serving the previous snapshot.
type catalogRefresher struct {
	store    service.EntityStore
	metrics  *telemetry.CatalogMetrics
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

var _ BackgroundTask = (*catalogRefresher)(nil)

func newCatalogRefresher(store service.EntityStore, metrics *telemetry.CatalogMetrics, interval time.Duration) *catalogRefresher {
	return &catalogRefresher{
		store:    store,
		metrics:  metrics,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start publishes the counts once, then refreshes on every tick
func (r *catalogRefresher) Start(ctx context.Context) error {
	_, canReload := r.store.(reloader)
	if !canReload && r.metrics == nil {
		slog.Debug("Catalog refresher has nothing to do")
		return nil
	}

	r.publishCounts(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("Catalog refresher started", "interval", r.interval.String(), "reload", canReload)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stop:
			return nil
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// Stop ends Start. It is safe to call more than once.
func (r *catalogRefresher) Stop() error {
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}

func (r *catalogRefresher) refresh(ctx context.Context) {
	if rl, ok := r.store.(reloader); ok {
		if err := rl.Reload(ctx); err != nil {
			slog.ErrorContext(ctx, "Catalog reload failed, keeping previous snapshot", "error", err)
		}
	}
	r.publishCounts(ctx)
}

func (r *catalogRefresher) publishCounts(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	counter, ok := r.store.(service.EntityCounter)
	if !ok {
		return
	}

	counts, err := counter.CountByType(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to count catalog entities", "error", err)
		return
	}
	for _, t := range service.EntityTypes {
		r.metrics.RecordEntityCount(ctx, string(t), counts[t])
	}
}

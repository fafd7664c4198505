// Package retention runs the periodic index and expiry maintenance over all
// domain tables. It lives entirely off the request path: a failure for one
// domain is logged, counted and skipped, and the next scheduled run retries.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/auditline-platform/auditline/internal/metrics"
)

// Maintainer is the slice of the event repository the scheduler needs.
type Maintainer interface {
	DomainTables(ctx context.Context) ([]string, error)
	EnsureUserLoginIndex(ctx context.Context, table string) error
	PurgeExpired(ctx context.Context, table string) (int64, error)
}

type Scheduler struct {
	store    Maintainer
	interval time.Duration
}

func NewScheduler(store Maintainer, interval time.Duration) *Scheduler {
	return &Scheduler{store: store, interval: interval}
}

// Start runs one maintenance pass immediately and then on every tick until
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("retention scheduler started", "interval", s.interval)

	s.run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	start := time.Now()
	slog.Info("retention run starting")

	tables, err := s.store.DomainTables(ctx)
	if err != nil {
		slog.Warn("retention run: listing domain tables", "error", err)
		metrics.RetentionRunsTotal.WithLabelValues("error").Inc()
		return
	}

	var failed int
	var purged int64
	for _, table := range tables {
		if err := s.maintainTable(ctx, table, &purged); err != nil {
			failed++
		}
		if ctx.Err() != nil {
			return
		}
	}

	status := "ok"
	if failed > 0 {
		status = "partial"
	}
	metrics.RetentionRunsTotal.WithLabelValues(status).Inc()
	metrics.RetentionPurgedTotal.Add(float64(purged))

	slog.Info("retention run finished",
		"tables", len(tables), "failed", failed, "purged", purged,
		"duration", time.Since(start))
}

// maintainTable keeps going past individual failures so one broken domain
// cannot starve the rest.
func (s *Scheduler) maintainTable(ctx context.Context, table string, purged *int64) error {
	var firstErr error

	if err := s.store.EnsureUserLoginIndex(ctx, table); err != nil {
		slog.Warn("retention run: ensuring user_login index", "table", table, "error", err)
		firstErr = err
	}

	n, err := s.store.PurgeExpired(ctx, table)
	if err != nil {
		slog.Warn("retention run: purging expired records", "table", table, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		*purged += n
	}

	return firstErr
}

// ABOUTME: Background retention sweep for idle sessions
// ABOUTME: Calls Store.SweepExpired on a fixed interval until the context ends

package store

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically removes sessions idle for longer than the retention window.
type Sweeper struct {
	store     Store
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewSweeper creates a sweeper. Run starts it.
func NewSweeper(s Store, interval, retention time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     s,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		logger:    logger.With("component", "sweeper"),
	}
}

// SweepOnce runs a single sweep and returns how many sessions were removed.
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	removed, err := w.store.SweepExpired(ctx, w.now(), w.retention)
	if err != nil {
		w.logger.Error("session sweep failed", "error", err)
		return removed, err
	}
	if removed > 0 {
		w.logger.Info("swept idle sessions", "removed", removed, "retention", w.retention)
	} else {
		w.logger.Debug("session sweep found nothing to remove")
	}
	return removed, nil
}

// Run sweeps every interval until ctx is cancelled. Sweep errors are logged
// and do not stop the loop.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("session sweeper started", "interval", w.interval, "retention", w.retention)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("session sweeper stopped")
			return nil
		case <-ticker.C:
			w.SweepOnce(ctx) //nolint:errcheck // logged inside
		}
	}
}

package worker

import (
	"context"
	"fmt"
	"time"

	"divvy/internal/log"
	"divvy/internal/storage"
	"divvy/internal/usage"
)

// UsageRefresher recomputes per-user usage counters on a fixed
// interval so plan-gate checks read a cheap cached row instead of
// counting on every request.
type UsageRefresher struct {
	store    storage.Store
	gate     *usage.Gate
	interval time.Duration
	logger   *log.Logger
}

func NewUsageRefresher(store storage.Store, gate *usage.Gate, interval time.Duration, logger *log.Logger) *UsageRefresher {
	return &UsageRefresher{
		store:    store,
		gate:     gate,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentUsage),
	}
}

// RefreshAll measures every user once and stores the result.
func (w *UsageRefresher) RefreshAll(ctx context.Context) error {
	userIDs, err := w.store.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	refreshed := 0
	for _, userID := range userIDs {
		counts, err := w.gate.Measure(ctx, userID)
		if err != nil {
			w.logger.ErrorContext(ctx, "failed to measure usage",
				log.FieldUserID, userID,
				log.FieldError, err.Error(),
			)
			continue
		}
		if err := w.store.UpsertUsageCounts(ctx, counts); err != nil {
			w.logger.ErrorContext(ctx, "failed to store usage counts",
				log.FieldUserID, userID,
				log.FieldError, err.Error(),
			)
			continue
		}
		refreshed++
	}

	w.logger.InfoContext(ctx, "usage refresh done",
		"total", len(userIDs),
		"refreshed", refreshed,
	)
	return nil
}

// Run blocks, refreshing counters on the configured interval until the
// context is cancelled. One pass runs immediately at start.
func (w *UsageRefresher) Run(ctx context.Context) {
	if err := w.RefreshAll(ctx); err != nil {
		w.logger.ErrorContext(ctx, "initial usage refresh failed", log.FieldError, err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.RefreshAll(ctx); err != nil {
				w.logger.ErrorContext(ctx, "usage refresh failed", log.FieldError, err.Error())
			}
		case <-ctx.Done():
			return
		}
	}
}

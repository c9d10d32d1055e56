package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/careloop/draft-api/internal/draftstore"
	"github.com/careloop/draft-api/internal/session"
)

// DraftCleanupWorker periodically sweeps drafts past the retention window and
// expires idle sessions.
type DraftCleanupWorker struct {
	store      draftstore.Store
	registry   *session.Registry
	maxAgeDays int
	maxIdle    time.Duration
	interval   time.Duration
	logger     zerolog.Logger
}

func NewDraftCleanupWorker(store draftstore.Store, registry *session.Registry, maxAgeDays int, maxIdle, interval time.Duration, logger zerolog.Logger) *DraftCleanupWorker {
	return &DraftCleanupWorker{
		store:      store,
		registry:   registry,
		maxAgeDays: maxAgeDays,
		maxIdle:    maxIdle,
		interval:   interval,
		logger:     logger.With().Str("component", "draft_cleanup").Logger(),
	}
}

func (w *DraftCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *DraftCleanupWorker) sweep(ctx context.Context) {
	deleted := w.store.Cleanup(ctx, w.maxAgeDays)
	expired := 0
	if w.registry != nil {
		expired = w.registry.ExpireIdle(w.maxIdle)
	}
	if deleted > 0 || expired > 0 {
		w.logger.Info().
			Int("drafts_deleted", deleted).
			Int("sessions_expired", expired).
			Msg("retention sweep complete")
	}
}

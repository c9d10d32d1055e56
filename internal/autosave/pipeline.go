// Package autosave turns a high-frequency stream of field edits into a
// low-frequency stream of durable draft writes.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/careloop/draft-api/internal/draftstore"
	"github.com/careloop/draft-api/internal/model"
	"github.com/careloop/draft-api/pkg/metrics"
)

// DefaultQuietPeriod is how long edits must stop before a write fires.
const DefaultQuietPeriod = time.Second

// Guard is consulted immediately before a scheduled write executes. It
// returns the owner id to file the draft under, or a skip reason:
//
//	"not_hydrated"  initial hydration has not completed (no write before read)
//	"unidentified"  the session holds no identifier at all
//	"torn_down"     the session ended after the write was scheduled
type Guard func() (ownerID string, skipReason string)

// Pipeline debounces snapshots and persists the latest one once edits go
// quiet. The final state always wins: a newer snapshot cancels and replaces a
// scheduled write, so nothing intermediate is ever lost while edits keep
// arriving.
type Pipeline struct {
	store   draftstore.Store
	quiet   time.Duration
	guard   Guard
	queue   *keyedQueue
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	timer   *time.Timer
	pending *model.DraftUpdate
	stopped bool
}

func NewPipeline(store draftstore.Store, quiet time.Duration, guard Guard, logger zerolog.Logger, m *metrics.Metrics) *Pipeline {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Pipeline{
		store:   store,
		quiet:   quiet,
		guard:   guard,
		queue:   newKeyedQueue(),
		logger:  logger.With().Str("component", "autosave").Logger(),
		metrics: m,
	}
}

// Notify records the latest full form snapshot and (re)schedules a write for
// after the quiet period.
func (p *Pipeline) Notify(snapshot *model.DraftUpdate) {
	if snapshot == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	p.pending = snapshot
	if p.timer != nil {
		p.timer.Stop()
		if p.metrics != nil {
			p.metrics.AutosaveDebounced.Inc()
		}
	}
	p.timer = time.AfterFunc(p.quiet, func() {
		p.fire(context.Background())
	})
}

// Flush persists any pending snapshot immediately, subject to the same
// guards. Used when a section commit must not race a scheduled write.
func (p *Pipeline) Flush(ctx context.Context) {
	p.fire(ctx)
}

// Cancel drops any pending snapshot and scheduled write without killing the
// pipeline. Used when the draft was just deleted on purpose and a stale
// scheduled write must not resurrect it.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Stop cancels any scheduled write and marks the pipeline dead. A timer that
// already fired will observe stopped and do nothing; no write executes after
// Stop returns its caller's teardown.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	p.pending = nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Pipeline) fire(ctx context.Context) {
	p.mu.Lock()
	if p.stopped || p.pending == nil {
		p.mu.Unlock()
		return
	}
	snapshot := p.pending
	p.pending = nil
	p.mu.Unlock()

	ownerID, skip := p.guard()
	if skip != "" {
		if p.metrics != nil {
			p.metrics.AutosaveSkipped.WithLabelValues(skip).Inc()
		}
		p.logger.Debug().Str("reason", skip).Msg("autosave skipped")
		return
	}

	p.queue.Do(ownerID, func() {
		// Teardown may have happened while waiting on the queue.
		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if stopped {
			return
		}

		if ok := p.store.SaveDraft(ctx, ownerID, snapshot); !ok {
			// never surfaces to the editor; the cache being briefly stale
			// beats interrupting data entry
			if p.metrics != nil {
				p.metrics.AutosaveFailures.Inc()
			}
			p.logger.Warn().Str("owner_id", ownerID).Msg("autosave write failed")
			return
		}
		if p.metrics != nil {
			p.metrics.AutosaveWrites.Inc()
		}
	})
}

package draftstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/careloop/draft-api/internal/model"
	"github.com/careloop/draft-api/pkg/metrics"
)

// MemoryStore keeps drafts in process memory. It is the test and
// offline-development backend; drafts do not survive a restart.
type MemoryStore struct {
	cache   *gocache.Cache
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// guards the read-merge-write round trip per owner id
	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

func NewMemoryStore(logger zerolog.Logger, m *metrics.Metrics) *MemoryStore {
	return &MemoryStore{
		cache:   gocache.New(gocache.NoExpiration, 10*time.Minute),
		logger:  logger.With().Str("component", "draftstore").Str("backend", "memory").Logger(),
		metrics: m,
		now:     time.Now,
		keys:    make(map[string]*sync.Mutex),
	}
}

// SetClock overrides the store's clock, for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *MemoryStore) keyLock(ownerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.keys[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		s.keys[ownerID] = lock
	}
	return lock
}

func (s *MemoryStore) SaveDraft(ctx context.Context, ownerID string, update *model.DraftUpdate) bool {
	if ownerID == "" {
		return false
	}
	start := time.Now()

	lock := s.keyLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	draft := mergedDraft(s.readDraft(ownerID), ownerID, update, s.now())

	payload, err := json.Marshal(draft)
	if err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("failed to encode draft")
		s.observe("save", "error", start)
		return false
	}
	s.cache.Set(draftKey(ownerID), payload, gocache.NoExpiration)
	s.observe("save", "ok", start)
	return true
}

func (s *MemoryStore) GetDraft(ctx context.Context, ownerID string) *model.Draft {
	start := time.Now()
	draft := s.readDraft(ownerID)
	if draft == nil {
		s.observe("get", "miss", start)
		return nil
	}
	s.observe("get", "ok", start)
	return draft
}

func (s *MemoryStore) readDraft(ownerID string) *model.Draft {
	raw, found := s.cache.Get(draftKey(ownerID))
	if !found {
		return nil
	}
	payload, ok := raw.([]byte)
	if !ok {
		return nil
	}
	var draft model.Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		// corrupt entry is the same as no entry
		s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("skipping unparsable draft")
		return nil
	}
	return &draft
}

func (s *MemoryStore) DeleteDraft(ctx context.Context, ownerID string) bool {
	start := time.Now()
	s.cache.Delete(draftKey(ownerID))
	s.observe("delete", "ok", start)
	return true
}

func (s *MemoryStore) ListDrafts(ctx context.Context) []*model.Draft {
	start := time.Now()
	items := s.cache.Items()
	drafts := make([]*model.Draft, 0, len(items))
	for key, item := range items {
		payload, ok := item.Object.([]byte)
		if !ok {
			continue
		}
		var draft model.Draft
		if err := json.Unmarshal(payload, &draft); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("skipping unparsable draft")
			continue
		}
		drafts = append(drafts, &draft)
	}
	sortByUpdatedDesc(drafts)
	s.observe("list", "ok", start)
	return drafts
}

func (s *MemoryStore) Cleanup(ctx context.Context, maxAgeDays int) int {
	cutoff := cutoffFor(s.now(), maxAgeDays)
	deleted := 0
	for _, draft := range s.ListDrafts(ctx) {
		if draft.LastUpdatedAt.Before(cutoff) {
			s.cache.Delete(draftKey(draft.OwnerID))
			deleted++
		}
	}
	if s.metrics != nil {
		s.metrics.DraftsCleaned.Add(float64(deleted))
	}
	return deleted
}

func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}

func (s *MemoryStore) observe(operation, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.StoreOperations.WithLabelValues(operation, status).Inc()
		s.metrics.StoreLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careloop/draft-api/internal/model"
	"github.com/careloop/draft-api/pkg/metrics"
)

// RedisConfig mirrors the connection settings the service exposes in yaml.
type RedisConfig struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

// RedisStore is the production backend: drafts survive service restarts and
// are visible to every instance sharing the redis namespace.
type RedisStore struct {
	client  *redis.Client
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRedisStore(cfg RedisConfig, logger zerolog.Logger, m *metrics.Metrics) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.RetryBackoff
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:  client,
		logger:  logger.With().Str("component", "draftstore").Str("backend", "redis").Logger(),
		metrics: m,
		now:     time.Now,
	}, nil
}

// SetClock overrides the store's clock, for tests.
func (s *RedisStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *RedisStore) SaveDraft(ctx context.Context, ownerID string, update *model.DraftUpdate) bool {
	if ownerID == "" {
		return false
	}
	start := time.Now()
	key := draftKey(ownerID)

	// WATCH serializes the read-merge-write round trip against concurrent
	// writers on the same key.
	merge := func(tx *redis.Tx) error {
		cmd := tx.Get(ctx, key)
		if err := cmd.Err(); err != nil && !errors.Is(err, redis.Nil) {
			// merging over an unreadable draft would erase its fields
			return fmt.Errorf("failed to read draft: %w", err)
		}
		existing := s.decode(key, cmd)
		draft := mergedDraft(existing, ownerID, update, s.now())

		payload, err := json.Marshal(draft)
		if err != nil {
			return fmt.Errorf("failed to encode draft: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		err := s.client.Watch(ctx, merge, key)
		if err == nil {
			s.observe("save", "ok", start)
			return true
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("draft save failed")
		s.observe("save", "error", start)
		return false
	}
	s.observe("save", "error", start)
	return false
}

func (s *RedisStore) GetDraft(ctx context.Context, ownerID string) *model.Draft {
	start := time.Now()
	key := draftKey(ownerID)
	draft := s.decode(key, s.client.Get(ctx, key))
	if draft == nil {
		s.observe("get", "miss", start)
		return nil
	}
	s.observe("get", "ok", start)
	return draft
}

// decode turns a GET result into a draft, treating misses, backend errors and
// corrupt payloads alike as "no draft".
func (s *RedisStore) decode(key string, cmd *redis.StringCmd) *model.Draft {
	payload, err := cmd.Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Error().Err(err).Str("key", key).Msg("draft read failed")
		}
		return nil
	}
	var draft model.Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("skipping unparsable draft")
		return nil
	}
	return &draft
}

func (s *RedisStore) DeleteDraft(ctx context.Context, ownerID string) bool {
	start := time.Now()
	if err := s.client.Del(ctx, draftKey(ownerID)).Err(); err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("draft delete failed")
		s.observe("delete", "error", start)
		return false
	}
	s.observe("delete", "ok", start)
	return true
}

func (s *RedisStore) ListDrafts(ctx context.Context) []*model.Draft {
	start := time.Now()
	var drafts []*model.Draft
	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if draft := s.decode(key, s.client.Get(ctx, key)); draft != nil {
			drafts = append(drafts, draft)
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Error().Err(err).Msg("draft scan failed")
		s.observe("list", "error", start)
	} else {
		s.observe("list", "ok", start)
	}
	sortByUpdatedDesc(drafts)
	return drafts
}

func (s *RedisStore) Cleanup(ctx context.Context, maxAgeDays int) int {
	cutoff := cutoffFor(s.now(), maxAgeDays)
	deleted := 0
	for _, draft := range s.ListDrafts(ctx) {
		if draft.LastUpdatedAt.Before(cutoff) {
			if s.DeleteDraft(ctx, draft.OwnerID) {
				deleted++
			}
		}
	}
	if s.metrics != nil {
		s.metrics.DraftsCleaned.Add(float64(deleted))
	}
	return deleted
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) observe(operation, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.StoreOperations.WithLabelValues(operation, status).Inc()
		s.metrics.StoreLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

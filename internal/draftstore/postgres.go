package draftstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/careloop/draft-api/internal/model"
	"github.com/careloop/draft-api/pkg/metrics"
)

// PostgresConfig mirrors the database settings in yaml.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// PostgresStore parks drafts server-side in a single table. Deployments that
// need drafts to outlive the redis namespace (or want them queryable for
// support tooling) use this backend.
type PostgresStore struct {
	db      *sqlx.DB
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type draftRow struct {
	OwnerID       string    `db:"owner_id"`
	Status        string    `db:"status"`
	LastUpdatedAt time.Time `db:"last_updated_at"`
	Payload       []byte    `db:"payload"`
}

func NewPostgresStore(cfg PostgresConfig, logger zerolog.Logger, m *metrics.Metrics) (*PostgresStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgresStore{
		db:      db,
		logger:  logger.With().Str("component", "draftstore").Str("backend", "postgres").Logger(),
		metrics: m,
		now:     time.Now,
	}, nil
}

// SetClock overrides the store's clock, for tests.
func (s *PostgresStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *PostgresStore) SaveDraft(ctx context.Context, ownerID string, update *model.DraftUpdate) bool {
	if ownerID == "" {
		return false
	}
	start := time.Now()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row draftRow
		existing := (*model.Draft)(nil)

		// FOR UPDATE serializes the read-merge-write round trip per owner.
		err := tx.GetContext(ctx, &row,
			`SELECT owner_id, status, last_updated_at, payload FROM drafts WHERE owner_id = $1 FOR UPDATE`, ownerID)
		switch {
		case err == nil:
			var draft model.Draft
			if jsonErr := json.Unmarshal(row.Payload, &draft); jsonErr == nil {
				existing = &draft
			}
		case errors.Is(err, sql.ErrNoRows):
			// first write for this owner
		default:
			return fmt.Errorf("failed to read draft: %w", err)
		}

		draft := mergedDraft(existing, ownerID, update, s.now())
		payload, err := json.Marshal(draft)
		if err != nil {
			return fmt.Errorf("failed to encode draft: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO drafts (owner_id, status, last_updated_at, payload)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (owner_id) DO UPDATE SET
				status = EXCLUDED.status,
				last_updated_at = EXCLUDED.last_updated_at,
				payload = EXCLUDED.payload
		`, draft.OwnerID, draft.Status, draft.LastUpdatedAt, payload)
		if err != nil {
			return fmt.Errorf("failed to write draft: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("draft save failed")
		s.observe("save", "error", start)
		return false
	}
	s.observe("save", "ok", start)
	return true
}

func (s *PostgresStore) GetDraft(ctx context.Context, ownerID string) *model.Draft {
	start := time.Now()
	var row draftRow
	err := s.db.GetContext(ctx, &row,
		`SELECT owner_id, status, last_updated_at, payload FROM drafts WHERE owner_id = $1`, ownerID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("draft read failed")
		}
		s.observe("get", "miss", start)
		return nil
	}

	var draft model.Draft
	if err := json.Unmarshal(row.Payload, &draft); err != nil {
		s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("skipping unparsable draft")
		s.observe("get", "miss", start)
		return nil
	}
	s.observe("get", "ok", start)
	return &draft
}

func (s *PostgresStore) DeleteDraft(ctx context.Context, ownerID string) bool {
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE owner_id = $1`, ownerID); err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("draft delete failed")
		s.observe("delete", "error", start)
		return false
	}
	s.observe("delete", "ok", start)
	return true
}

func (s *PostgresStore) ListDrafts(ctx context.Context) []*model.Draft {
	start := time.Now()
	var rows []draftRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT owner_id, status, last_updated_at, payload FROM drafts ORDER BY last_updated_at DESC`)
	if err != nil {
		s.logger.Error().Err(err).Msg("draft list failed")
		s.observe("list", "error", start)
		return nil
	}

	drafts := make([]*model.Draft, 0, len(rows))
	for _, row := range rows {
		var draft model.Draft
		if err := json.Unmarshal(row.Payload, &draft); err != nil {
			s.logger.Warn().Err(err).Str("owner_id", row.OwnerID).Msg("skipping unparsable draft")
			continue
		}
		drafts = append(drafts, &draft)
	}
	s.observe("list", "ok", start)
	return drafts
}

func (s *PostgresStore) Cleanup(ctx context.Context, maxAgeDays int) int {
	cutoff := cutoffFor(s.now(), maxAgeDays)
	result, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE last_updated_at < $1`, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("draft cleanup failed")
		return 0
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0
	}
	if s.metrics != nil {
		s.metrics.DraftsCleaned.Add(float64(deleted))
	}
	return int(deleted)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) observe(operation, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.StoreOperations.WithLabelValues(operation, status).Inc()
		s.metrics.StoreLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

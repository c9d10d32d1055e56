// Package hydrate decides what initial state a session shows: the local
// draft, the remote record, or defaults.
package hydrate

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/careloop/draft-api/internal/draftstore"
	"github.com/careloop/draft-api/internal/model"
	"github.com/careloop/draft-api/internal/remote"
	"github.com/careloop/draft-api/pkg/metrics"
)

// Hydration sources, in precedence order.
const (
	SourceDraft    = "draft"
	SourceRemote   = "remote"
	SourceDefaults = "defaults"
)

// Result is what the session starts from.
type Result struct {
	Draft  *model.Draft
	Source string
}

// Resolver implements the local-wins precedence rule: a local draft for the
// working identifier always beats a remote fetch, because unsaved local edits
// must never be silently overwritten by a possibly-older remote record. This
// is a policy decision, not a timestamp comparison.
type Resolver struct {
	store   draftstore.Store
	remote  remote.Client
	records *gocache.Cache
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewResolver(store draftstore.Store, client remote.Client, logger zerolog.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		store:   store,
		remote:  client,
		records: gocache.New(5*time.Minute, 10*time.Minute),
		logger:  logger.With().Str("component", "hydrate").Logger(),
		metrics: m,
		now:     time.Now,
	}
}

// SetClock overrides the resolver's clock, for tests.
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// Hydrate resolves initial state for the given identity. prefill enables the
// remote fallback for sessions backed by an already-known record; a remote
// failure degrades to defaults rather than blocking the session.
func (r *Resolver) Hydrate(ctx context.Context, ident model.Identity, prefill bool) Result {
	if ident.Identified() {
		if draft := r.store.GetDraft(ctx, ident.ID); draft != nil {
			r.normalizeDates(draft)
			r.observe(SourceDraft)
			return Result{Draft: draft, Source: SourceDraft}
		}
	}

	if prefill && ident.State == model.IdentityPermanent {
		if record := r.fetchRecord(ctx, ident.ID); record != nil {
			draft := r.draftFromRecord(ident.ID, record)
			r.observe(SourceRemote)
			return Result{Draft: draft, Source: SourceRemote}
		}
	}

	r.observe(SourceDefaults)
	return Result{Source: SourceDefaults}
}

// fetchRecord reads through a short-lived cache so repeated session starts
// against the same patient do not hammer the record service.
func (r *Resolver) fetchRecord(ctx context.Context, patientID string) *model.PatientRecord {
	if cached, found := r.records.Get(patientID); found {
		if record, ok := cached.(*model.PatientRecord); ok {
			return record
		}
	}

	record, err := r.remote.GetPatient(ctx, patientID)
	if err != nil {
		// pre-hydration defaults are the fallback, never an error
		r.logger.Warn().Err(err).Str("patient_id", patientID).Msg("remote hydration failed, using defaults")
		return nil
	}
	if record == nil {
		return nil
	}
	r.records.Set(patientID, record, gocache.DefaultExpiration)
	return record
}

func (r *Resolver) draftFromRecord(patientID string, record *model.PatientRecord) *model.Draft {
	draft := &model.Draft{
		OwnerID:            patientID,
		Status:             model.DraftStatus,
		LastUpdatedAt:      record.UpdatedAt,
		PatientData:        record.PatientData,
		ClinicalParameters: record.ClinicalParameters,
		Medications:        record.Medications,
		ReportData:         record.ReportData,
	}
	r.normalizeDates(draft)
	return draft
}

// normalizeDates re-parses embedded dates defensively: a missing or zero date
// falls back to now instead of failing hydration.
func (r *Resolver) normalizeDates(draft *model.Draft) {
	now := r.now()
	if draft.ClinicalParameters != nil && draft.ClinicalParameters.RecordedAt.IsZero() {
		draft.ClinicalParameters.RecordedAt = now
	}
	if draft.ReportData != nil && draft.ReportData.ReportedAt.IsZero() {
		draft.ReportData.ReportedAt = now
	}
}

func (r *Resolver) observe(source string) {
	if r.metrics != nil {
		r.metrics.HydrationSource.WithLabelValues(source).Inc()
	}
}

// Package session owns one editing session per patient: its identity, its
// in-memory form state, and the autosave pipeline that keeps the draft store
// current.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careloop/draft-api/internal/autosave"
	"github.com/careloop/draft-api/internal/draftstore"
	"github.com/careloop/draft-api/internal/hydrate"
	"github.com/careloop/draft-api/internal/identity"
	"github.com/careloop/draft-api/internal/model"
	"github.com/careloop/draft-api/internal/remote"
	"github.com/careloop/draft-api/pkg/metrics"
)

// Options configures a session at creation.
type Options struct {
	// PatientID, when set, starts the session against a known permanent
	// identifier.
	PatientID string
	// Prefill enables remote hydration when no local draft exists.
	Prefill bool
	// AllowEphemeral permits minting a local identifier so edits persist
	// before any server record exists. When false (the default), nothing is
	// persisted until the basic section is committed: the direct
	// promotion path, which never creates an orphanable local-only draft.
	AllowEphemeral bool
	// QuietPeriod overrides the autosave debounce interval.
	QuietPeriod time.Duration
}

// Session is a single editing session. All exported methods are safe for
// concurrent use.
type Session struct {
	ID string

	store    draftstore.Store
	remote   remote.Client
	resolver *hydrate.Resolver
	identity *identity.Manager
	pipeline *autosave.Pipeline
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	allowEphemeral bool
	prefill        bool

	mu         sync.Mutex
	form       model.Draft
	hydrated   bool
	active     bool
	lastActive time.Time
}

func New(opts Options, store draftstore.Store, client remote.Client, resolver *hydrate.Resolver, logger zerolog.Logger, m *metrics.Metrics) *Session {
	id := uuid.New().String()

	// A local- identifier from a prior partial session resumes as ephemeral
	// so the commit path can still promote it to a server id.
	initial := model.Unidentified()
	switch {
	case opts.PatientID == "":
	case draftstore.IsEphemeralID(opts.PatientID):
		initial = model.Ephemeral(opts.PatientID)
	default:
		initial = model.Permanent(opts.PatientID)
	}

	s := &Session{
		ID:             id,
		store:          store,
		remote:         client,
		resolver:       resolver,
		logger:         logger.With().Str("component", "session").Str("session_id", id).Logger(),
		metrics:        m,
		allowEphemeral: opts.AllowEphemeral,
		prefill:        opts.Prefill,
		active:         true,
		lastActive:     time.Now(),
	}
	s.identity = identity.NewManager(initial, store, logger, m)
	s.pipeline = autosave.NewPipeline(store, opts.QuietPeriod, s.autosaveGuard, logger, m)
	return s
}

// Initialize runs hydration once and returns the state the form should show.
func (s *Session) Initialize(ctx context.Context) *model.InitializeSessionResponse {
	ident := s.identity.Current()
	result := s.resolver.Hydrate(ctx, ident, s.prefill)

	s.mu.Lock()
	defer s.mu.Unlock()

	if result.Draft != nil {
		s.form = *result.Draft
	}
	s.hydrated = true
	s.lastActive = time.Now()

	s.logger.Info().
		Str("source", result.Source).
		Str("identity", string(ident.State)).
		Msg("session hydrated")

	return &model.InitializeSessionResponse{
		SessionID: s.ID,
		Identity:  ident,
		Draft:     result.Draft,
		Source:    result.Source,
	}
}

// RecordChange merges a field-level update into the in-memory form state and
// feeds the autosave pipeline with the resulting full snapshot.
func (s *Session) RecordChange(update *model.DraftUpdate) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return fmt.Errorf("session is torn down")
	}
	s.form.Merge(update)
	snapshot := s.snapshotLocked()
	s.lastActive = time.Now()
	s.mu.Unlock()

	if s.allowEphemeral {
		s.identity.EnsureIdentity(context.Background())
	}

	s.pipeline.Notify(snapshot)
	return nil
}

// CommitBasicSection commits the basic section to the record service and
// promotes the session identity to the returned permanent identifier. A
// remote failure leaves identity and local state untouched; this is the one
// failure that does surface to the user.
func (s *Session) CommitBasicSection(ctx context.Context, req *model.CommitBasicRequest) (model.Identity, error) {
	basic := &model.PatientData{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Age:       req.Age,
		Gender:    req.Gender,
		Phone:     req.Phone,
		Address:   req.Address,
	}

	patientID, err := s.remote.CreatePatient(ctx, basic)
	if err != nil {
		return s.identity.Current(), fmt.Errorf("failed to commit basic section: %w", err)
	}

	ident, err := s.identity.Promote(ctx, patientID)
	if err != nil {
		return ident, fmt.Errorf("failed to promote identity: %w", err)
	}

	s.mu.Lock()
	s.form.PatientData = basic
	if s.form.SavedSections == nil {
		s.form.SavedSections = make(map[string]bool)
	}
	s.form.SavedSections[model.SectionBasic] = true
	allSaved := s.form.AllSectionsSaved()
	snapshot := s.snapshotLocked()
	s.lastActive = time.Now()
	s.mu.Unlock()

	if allSaved {
		// nothing left to protect locally; cancel first so a stale
		// scheduled write cannot resurrect the deleted draft
		s.pipeline.Cancel()
		s.store.DeleteDraft(ctx, ident.ID)
	} else {
		s.pipeline.Notify(snapshot)
	}

	return ident, nil
}

// MarkSectionSaved records that a section was durably committed server-side.
// Once every section reports saved the local draft is deleted; until then the
// marker rides along with the next autosave.
func (s *Session) MarkSectionSaved(ctx context.Context, section string) {
	s.mu.Lock()
	if s.form.SavedSections == nil {
		s.form.SavedSections = make(map[string]bool)
	}
	s.form.SavedSections[section] = true
	allSaved := s.form.AllSectionsSaved()
	snapshot := s.snapshotLocked()
	s.lastActive = time.Now()
	s.mu.Unlock()

	ident := s.identity.Current()
	if allSaved && ident.Identified() {
		s.pipeline.Cancel()
		s.store.DeleteDraft(ctx, ident.ID)
		return
	}
	s.pipeline.Notify(snapshot)
}

// Identity returns the session's working identity.
func (s *Session) Identity() model.Identity {
	return s.identity.Current()
}

// LastActive reports when the session last saw an operation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Teardown ends the session. Any scheduled autosave is cancelled; a write
// that would fire after this point is skipped, so the store is never mutated
// on behalf of a session the user has left.
func (s *Session) Teardown() {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	s.mu.Unlock()

	s.pipeline.Stop()

	if wasActive {
		s.logger.Info().Msg("session torn down")
	}
}

// autosaveGuard is checked immediately before a scheduled write executes.
func (s *Session) autosaveGuard() (string, string) {
	s.mu.Lock()
	active, hydrated := s.active, s.hydrated
	s.mu.Unlock()

	if !active {
		return "", "torn_down"
	}
	if !hydrated {
		return "", "not_hydrated"
	}
	ident := s.identity.Current()
	if !ident.Identified() {
		return "", "unidentified"
	}
	return ident.ID, ""
}

// snapshotLocked builds the full-form update the pipeline persists. Callers
// must hold s.mu.
func (s *Session) snapshotLocked() *model.DraftUpdate {
	snapshot := &model.DraftUpdate{
		PatientData:        s.form.PatientData,
		ClinicalParameters: s.form.ClinicalParameters,
		Medications:        s.form.Medications,
		ReportData:         s.form.ReportData,
		ReportFiles:        s.form.ReportFiles,
	}
	if s.form.SavedSections != nil {
		snapshot.SavedSections = make(map[string]bool, len(s.form.SavedSections))
		for k, v := range s.form.SavedSections {
			snapshot.SavedSections[k] = v
		}
	}
	return snapshot
}

// Package identity owns the single source of truth for which identifier an
// editing session files its drafts under, and executes the one-time
// ephemeral-to-permanent promotion.
package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/careloop/draft-api/internal/draftstore"
	"github.com/careloop/draft-api/internal/model"
	apperrors "github.com/careloop/draft-api/pkg/errors"
	"github.com/careloop/draft-api/pkg/metrics"
)

// Manager tracks one session's working identity. All methods are safe for
// concurrent use; the identity only ever moves toward Permanent.
type Manager struct {
	mu       sync.Mutex
	current  model.Identity
	promoted bool

	store   draftstore.Store
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewManager(initial model.Identity, store draftstore.Store, logger zerolog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		current:  initial,
		promoted: initial.State == model.IdentityPermanent,
		store:    store,
		logger:   logger.With().Str("component", "identity").Logger(),
		metrics:  m,
	}
}

// Current returns the session's working identity.
func (m *Manager) Current() model.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// EnsureIdentity returns the working identity, minting an ephemeral id if the
// session has none. The direct commit path never needs this; it exists for
// flows that must persist local state before any server record can be created.
func (m *Manager) EnsureIdentity(ctx context.Context) model.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Identified() {
		return m.current
	}
	id := draftstore.GenerateEphemeralID()
	m.current = model.Ephemeral(id)
	m.logger.Debug().Str("ephemeral_id", id).Msg("minted ephemeral identity")
	return m.current
}

// Promote installs the server-issued permanent identifier. It runs at most
// once per session: a second call with the same id is a no-op, and a call
// with a different id after promotion is rejected.
//
// When the session was Ephemeral, the draft filed under the ephemeral id is
// deleted before the working id switches, so at no point do two live drafts
// exist for one patient. The ephemeral draft's contents are not copied
// forward: the commit that produced the permanent id already carried the
// section's data to the server.
func (m *Manager) Promote(ctx context.Context, permanentID string) (model.Identity, error) {
	if permanentID == "" {
		return m.Current(), fmt.Errorf("permanent id is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.promoted {
		if m.current.ID == permanentID {
			return m.current, nil
		}
		return m.current, fmt.Errorf("session already promoted to %s", m.current.ID)
	}

	from := m.current

	if from.State == model.IdentityEphemeral {
		// Deletion must be confirmed before the switch; an undeletable
		// ephemeral draft would leave two live drafts for the patient.
		if ok := m.store.DeleteDraft(ctx, from.ID); !ok {
			return m.current, apperrors.NewStorageWrite(fmt.Errorf("could not delete ephemeral draft %s", from.ID))
		}
	}

	next, err := m.current.Advance(model.Permanent(permanentID))
	if err != nil {
		return m.current, err
	}

	if existing := m.store.GetDraft(ctx, permanentID); existing != nil {
		// A stale draft at the destination means a prior session for this
		// patient never finished. Local-wins does not apply across identities:
		// the committed server state supersedes it, so it is cleared.
		m.logger.Warn().
			Err(apperrors.NewIdentityConflict(permanentID)).
			Str("patient_id", permanentID).
			Msg("replacing stale draft at promotion target")
		m.store.DeleteDraft(ctx, permanentID)
	}

	m.current = next
	m.promoted = true

	if m.metrics != nil {
		m.metrics.Promotions.WithLabelValues(string(from.State)).Inc()
	}
	m.logger.Info().
		Str("from", string(from.State)).
		Str("patient_id", permanentID).
		Msg("identity promoted")

	return m.current, nil
}

// Package draftstore persists one in-progress draft per patient identifier.
//
// The store is a convenience layer, not the system of record: every operation
// is best-effort, absorbs backend failures at its own boundary and degrades to
// a safe default (false / nil / empty / zero). Failures are reported through
// logging only, because an autosave failure must never interrupt editing.
package draftstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/draft-api/internal/model"
)

// KeyPrefix namespaces draft records in the shared backend keyspace.
const KeyPrefix = "draft:"

// EphemeralIDPrefix marks locally minted identifiers. Server-issued ids never
// carry it, so the two identifier spaces cannot collide.
const EphemeralIDPrefix = "local-"

// DefaultMaxAgeDays is the retention window for the age-based sweep.
const DefaultMaxAgeDays = 30

// Store is the draft persistence contract.
type Store interface {
	// SaveDraft shallow-merges update over any existing record at ownerID,
	// stamps LastUpdatedAt and Status, and writes it back. Returns false on
	// any storage failure; it never returns an error to the caller.
	SaveDraft(ctx context.Context, ownerID string, update *model.DraftUpdate) bool

	// GetDraft returns nil when the record is absent or unparsable; a corrupt
	// payload is treated the same as no draft.
	GetDraft(ctx context.Context, ownerID string) *model.Draft

	// DeleteDraft removes the record. Deleting a nonexistent key is not an
	// error; the return value reports whether the key is now gone.
	DeleteDraft(ctx context.Context, ownerID string) bool

	// ListDrafts enumerates every parsable record in the namespace, most
	// recently updated first.
	ListDrafts(ctx context.Context) []*model.Draft

	// Cleanup deletes every draft older than maxAgeDays and returns the
	// number deleted. A maxAgeDays of zero or less uses DefaultMaxAgeDays.
	Cleanup(ctx context.Context, maxAgeDays int) int

	// Close releases backend resources.
	Close() error
}

// GenerateEphemeralID mints a locally unique identifier used before a
// permanent one exists. Uniqueness holds only within the local identifier
// space; the prefix keeps it disjoint from server-issued ids.
func GenerateEphemeralID() string {
	suffix := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("%s%d-%s", EphemeralIDPrefix, time.Now().UnixMilli(), suffix)
}

// IsEphemeralID reports whether id was minted locally.
func IsEphemeralID(id string) bool {
	return strings.HasPrefix(id, EphemeralIDPrefix)
}

func draftKey(ownerID string) string {
	return KeyPrefix + ownerID
}

// sortByUpdatedDesc orders drafts most recently updated first.
func sortByUpdatedDesc(drafts []*model.Draft) {
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].LastUpdatedAt.After(drafts[j].LastUpdatedAt)
	})
}

// cutoffFor resolves the cleanup cutoff against now.
func cutoffFor(now time.Time, maxAgeDays int) time.Time {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}
	return now.AddDate(0, 0, -maxAgeDays)
}

// mergedDraft applies the SaveDraft merge semantics over an existing record,
// which may be nil.
func mergedDraft(existing *model.Draft, ownerID string, update *model.DraftUpdate, now time.Time) *model.Draft {
	draft := existing
	if draft == nil {
		draft = &model.Draft{OwnerID: ownerID}
	}
	draft.Merge(update)
	draft.OwnerID = ownerID
	draft.Status = model.DraftStatus
	draft.LastUpdatedAt = now
	return draft
}

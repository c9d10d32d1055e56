package draftstore

import (
	"context"
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/draft-api/internal/model"
)

func newTestStore() *MemoryStore {
	return NewMemoryStore(zerolog.Nop(), nil)
}

func TestSaveDraftMergeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	ok := store.SaveDraft(ctx, "p-1", &model.DraftUpdate{
		PatientData: &model.PatientData{Diagnosis: "migraine"},
	})
	require.True(t, ok)

	ok = store.SaveDraft(ctx, "p-1", &model.DraftUpdate{
		Medications: []model.Medication{{Name: "sumatriptan"}},
	})
	require.True(t, ok)

	draft := store.GetDraft(ctx, "p-1")
	require.NotNil(t, draft)
	assert.Equal(t, "p-1", draft.OwnerID)
	assert.Equal(t, model.DraftStatus, draft.Status)
	assert.Equal(t, "migraine", draft.PatientData.Diagnosis)
	assert.Len(t, draft.Medications, 1)
	assert.False(t, draft.LastUpdatedAt.IsZero())
}

func TestSaveDraftRejectsEmptyOwner(t *testing.T) {
	store := newTestStore()
	assert.False(t, store.SaveDraft(context.Background(), "", &model.DraftUpdate{}))
}

func TestGetDraftMissingReturnsNil(t *testing.T) {
	store := newTestStore()
	assert.Nil(t, store.GetDraft(context.Background(), "nobody"))
}

func TestGetDraftUnparsableReturnsNil(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	store.cache.Set(draftKey("p-1"), []byte("{not json"), gocache.NoExpiration)

	assert.Nil(t, store.GetDraft(ctx, "p-1"))
}

func TestDeleteDraftIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	store.SaveDraft(ctx, "p-1", &model.DraftUpdate{})
	assert.True(t, store.DeleteDraft(ctx, "p-1"))
	assert.True(t, store.DeleteDraft(ctx, "p-1"))
	assert.Nil(t, store.GetDraft(ctx, "p-1"))
}

func TestListDraftsAtMostOnePerOwner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	for i := 0; i < 5; i++ {
		store.SaveDraft(ctx, "p-1", &model.DraftUpdate{
			PatientData: &model.PatientData{Age: 30 + i},
		})
	}
	store.SaveDraft(ctx, "p-2", &model.DraftUpdate{})
	store.DeleteDraft(ctx, "p-2")
	store.SaveDraft(ctx, "p-2", &model.DraftUpdate{})

	drafts := store.ListDrafts(ctx)
	owners := make(map[string]int)
	for _, d := range drafts {
		owners[d.OwnerID]++
	}
	assert.Equal(t, 1, owners["p-1"])
	assert.Equal(t, 1, owners["p-2"])
	assert.Len(t, drafts, 2)
}

func TestListDraftsOrdersMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, owner := range []string{"old", "mid", "new"} {
		stamp := base.Add(time.Duration(i) * time.Hour)
		store.SetClock(func() time.Time { return stamp })
		store.SaveDraft(ctx, owner, &model.DraftUpdate{})
	}

	drafts := store.ListDrafts(ctx)
	require.Len(t, drafts, 3)
	assert.Equal(t, "new", drafts[0].OwnerID)
	assert.Equal(t, "mid", drafts[1].OwnerID)
	assert.Equal(t, "old", drafts[2].OwnerID)
}

func TestListDraftsSkipsUnparsableEntries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	store.SaveDraft(ctx, "p-1", &model.DraftUpdate{})
	store.cache.Set(draftKey("corrupt"), []byte("???"), gocache.NoExpiration)

	drafts := store.ListDrafts(ctx)
	require.Len(t, drafts, 1)
	assert.Equal(t, "p-1", drafts[0].OwnerID)
}

func TestCleanupBoundary(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	day29 := now.AddDate(0, 0, -29)
	store.SetClock(func() time.Time { return day29 })
	store.SaveDraft(ctx, "fresh", &model.DraftUpdate{})

	day31 := now.AddDate(0, 0, -31)
	store.SetClock(func() time.Time { return day31 })
	store.SaveDraft(ctx, "stale", &model.DraftUpdate{})

	store.SetClock(func() time.Time { return now })
	deleted := store.Cleanup(ctx, 30)

	assert.Equal(t, 1, deleted)
	assert.NotNil(t, store.GetDraft(ctx, "fresh"))
	assert.Nil(t, store.GetDraft(ctx, "stale"))
}

func TestGenerateEphemeralIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateEphemeralID()
		assert.False(t, seen[id], "duplicate ephemeral id %s", id)
		assert.True(t, IsEphemeralID(id))
		seen[id] = true
	}
}

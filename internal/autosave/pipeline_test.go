package autosave

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/draft-api/internal/model"
)

// mockStore records SaveDraft calls.
type mockStore struct {
	mu    sync.Mutex
	saves []savedCall

	SaveDraftFunc func(ctx context.Context, ownerID string, update *model.DraftUpdate) bool
}

type savedCall struct {
	ownerID string
	update  *model.DraftUpdate
}

func (m *mockStore) SaveDraft(ctx context.Context, ownerID string, update *model.DraftUpdate) bool {
	m.mu.Lock()
	m.saves = append(m.saves, savedCall{ownerID: ownerID, update: update})
	m.mu.Unlock()
	if m.SaveDraftFunc != nil {
		return m.SaveDraftFunc(ctx, ownerID, update)
	}
	return true
}

func (m *mockStore) GetDraft(ctx context.Context, ownerID string) *model.Draft { return nil }
func (m *mockStore) DeleteDraft(ctx context.Context, ownerID string) bool      { return true }
func (m *mockStore) ListDrafts(ctx context.Context) []*model.Draft             { return nil }
func (m *mockStore) Cleanup(ctx context.Context, maxAgeDays int) int           { return 0 }
func (m *mockStore) Close() error                                              { return nil }

func (m *mockStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

func (m *mockStore) lastSave() savedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[len(m.saves)-1]
}

func allowGuard(ownerID string) Guard {
	return func() (string, string) { return ownerID, "" }
}

func TestDebounceCollapsesBurstsToOneWrite(t *testing.T) {
	store := &mockStore{}
	p := NewPipeline(store, 80*time.Millisecond, allowGuard("p-1"), zerolog.Nop(), nil)

	p.Notify(&model.DraftUpdate{PatientData: &model.PatientData{Diagnosis: "a"}})
	time.Sleep(20 * time.Millisecond)
	p.Notify(&model.DraftUpdate{PatientData: &model.PatientData{Diagnosis: "ab"}})
	time.Sleep(20 * time.Millisecond)
	p.Notify(&model.DraftUpdate{PatientData: &model.PatientData{Diagnosis: "abc"}})

	time.Sleep(250 * time.Millisecond)

	require.Equal(t, 1, store.saveCount())
	last := store.lastSave()
	assert.Equal(t, "p-1", last.ownerID)
	assert.Equal(t, "abc", last.update.PatientData.Diagnosis)
}

func TestNoWriteAfterTeardown(t *testing.T) {
	store := &mockStore{}
	p := NewPipeline(store, 50*time.Millisecond, allowGuard("p-1"), zerolog.Nop(), nil)

	p.Notify(&model.DraftUpdate{PatientData: &model.PatientData{Diagnosis: "a"}})
	p.Stop()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, store.saveCount())
}

func TestNotifyAfterStopIsIgnored(t *testing.T) {
	store := &mockStore{}
	p := NewPipeline(store, 20*time.Millisecond, allowGuard("p-1"), zerolog.Nop(), nil)

	p.Stop()
	p.Notify(&model.DraftUpdate{})

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, store.saveCount())
}

func TestGuardSkipsWrite(t *testing.T) {
	store := &mockStore{}
	guard := func() (string, string) { return "", "unidentified" }
	p := NewPipeline(store, 20*time.Millisecond, guard, zerolog.Nop(), nil)

	p.Notify(&model.DraftUpdate{PatientData: &model.PatientData{Diagnosis: "a"}})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, store.saveCount())
}

func TestFlushPersistsPendingImmediately(t *testing.T) {
	store := &mockStore{}
	p := NewPipeline(store, time.Hour, allowGuard("p-1"), zerolog.Nop(), nil)

	p.Notify(&model.DraftUpdate{PatientData: &model.PatientData{Diagnosis: "a"}})
	p.Flush(context.Background())

	assert.Equal(t, 1, store.saveCount())
}

func TestFailedWriteIsAbsorbed(t *testing.T) {
	store := &mockStore{
		SaveDraftFunc: func(ctx context.Context, ownerID string, update *model.DraftUpdate) bool {
			return false
		},
	}
	p := NewPipeline(store, 20*time.Millisecond, allowGuard("p-1"), zerolog.Nop(), nil)

	// nothing to assert beyond "does not panic or retry"
	p.Notify(&model.DraftUpdate{})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, store.saveCount())
}

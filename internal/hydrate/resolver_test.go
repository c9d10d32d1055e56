package hydrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/draft-api/internal/draftstore"
	"github.com/careloop/draft-api/internal/model"
)

type mockRecordClient struct {
	GetPatientFunc func(ctx context.Context, patientID string) (*model.PatientRecord, error)
	getCalls       int
}

func (m *mockRecordClient) CreatePatient(ctx context.Context, basic *model.PatientData) (string, error) {
	return "", errors.New("CreatePatientFunc not implemented in mock")
}

func (m *mockRecordClient) GetPatient(ctx context.Context, patientID string) (*model.PatientRecord, error) {
	m.getCalls++
	if m.GetPatientFunc != nil {
		return m.GetPatientFunc(ctx, patientID)
	}
	return nil, nil
}

func newResolver(store draftstore.Store, client *mockRecordClient) *Resolver {
	return NewResolver(store, client, zerolog.Nop(), nil)
}

func TestLocalDraftWinsOverRemote(t *testing.T) {
	ctx := context.Background()
	store := draftstore.NewMemoryStore(zerolog.Nop(), nil)
	store.SaveDraft(ctx, "p-1", &model.DraftUpdate{
		PatientData: &model.PatientData{Diagnosis: "A"},
	})

	client := &mockRecordClient{
		GetPatientFunc: func(ctx context.Context, patientID string) (*model.PatientRecord, error) {
			return &model.PatientRecord{
				PatientID:   patientID,
				PatientData: &model.PatientData{Diagnosis: "B"},
			}, nil
		},
	}

	result := newResolver(store, client).Hydrate(ctx, model.Permanent("p-1"), true)

	require.NotNil(t, result.Draft)
	assert.Equal(t, SourceDraft, result.Source)
	assert.Equal(t, "A", result.Draft.PatientData.Diagnosis)
	assert.Equal(t, 0, client.getCalls, "remote fetch must be skipped when a local draft exists")
}

func TestRemotePrefillWhenNoDraft(t *testing.T) {
	ctx := context.Background()
	store := draftstore.NewMemoryStore(zerolog.Nop(), nil)

	client := &mockRecordClient{
		GetPatientFunc: func(ctx context.Context, patientID string) (*model.PatientRecord, error) {
			return &model.PatientRecord{
				PatientID:   patientID,
				PatientData: &model.PatientData{FirstName: "Asha", Diagnosis: "B"},
			}, nil
		},
	}

	result := newResolver(store, client).Hydrate(ctx, model.Permanent("p-1"), true)

	require.NotNil(t, result.Draft)
	assert.Equal(t, SourceRemote, result.Source)
	assert.Equal(t, "B", result.Draft.PatientData.Diagnosis)
	assert.Equal(t, "p-1", result.Draft.OwnerID)
}

func TestRemoteFailureFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	store := draftstore.NewMemoryStore(zerolog.Nop(), nil)

	client := &mockRecordClient{
		GetPatientFunc: func(ctx context.Context, patientID string) (*model.PatientRecord, error) {
			return nil, errors.New("service unreachable")
		},
	}

	result := newResolver(store, client).Hydrate(ctx, model.Permanent("p-1"), true)

	assert.Nil(t, result.Draft)
	assert.Equal(t, SourceDefaults, result.Source)
}

func TestNoPrefillMeansNoRemoteFetch(t *testing.T) {
	ctx := context.Background()
	store := draftstore.NewMemoryStore(zerolog.Nop(), nil)
	client := &mockRecordClient{}

	result := newResolver(store, client).Hydrate(ctx, model.Permanent("p-1"), false)

	assert.Equal(t, SourceDefaults, result.Source)
	assert.Equal(t, 0, client.getCalls)
}

func TestEphemeralIdentityNeverFetchesRemote(t *testing.T) {
	ctx := context.Background()
	store := draftstore.NewMemoryStore(zerolog.Nop(), nil)
	client := &mockRecordClient{}

	result := newResolver(store, client).Hydrate(ctx, model.Ephemeral("local-1"), true)

	assert.Equal(t, SourceDefaults, result.Source)
	assert.Equal(t, 0, client.getCalls)
}

func TestMissingDatesFallBackToNow(t *testing.T) {
	ctx := context.Background()
	store := draftstore.NewMemoryStore(zerolog.Nop(), nil)
	store.SaveDraft(ctx, "p-1", &model.DraftUpdate{
		ClinicalParameters: &model.ClinicalParameters{PulseRate: "72"},
	})

	resolver := newResolver(store, &mockRecordClient{})
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	resolver.SetClock(func() time.Time { return now })

	result := resolver.Hydrate(ctx, model.Permanent("p-1"), false)

	require.NotNil(t, result.Draft)
	assert.Equal(t, now, result.Draft.ClinicalParameters.RecordedAt)
}

func TestRemoteRecordIsCachedAcrossHydrations(t *testing.T) {
	ctx := context.Background()
	store := draftstore.NewMemoryStore(zerolog.Nop(), nil)

	client := &mockRecordClient{
		GetPatientFunc: func(ctx context.Context, patientID string) (*model.PatientRecord, error) {
			return &model.PatientRecord{PatientID: patientID}, nil
		},
	}
	resolver := newResolver(store, client)

	resolver.Hydrate(ctx, model.Permanent("p-1"), true)
	resolver.Hydrate(ctx, model.Permanent("p-1"), true)

	assert.Equal(t, 1, client.getCalls)
}

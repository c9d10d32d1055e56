package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/draft-api/internal/model"
	apperrors "github.com/careloop/draft-api/pkg/errors"
)

func newTestClient(baseURL string) Client {
	return NewClient(Config{
		BaseURL:     baseURL,
		Timeout:     time.Second,
		MaxFailures: 3,
		OpenTimeout: time.Minute,
	}, zerolog.Nop(), nil)
}

func TestCreatePatientReturnsServerID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/patients", r.URL.Path)

		var basic model.PatientData
		require.NoError(t, json.NewDecoder(r.Body).Decode(&basic))
		assert.Equal(t, "Asha", basic.FirstName)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"patient_id": "p-42"})
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).CreatePatient(context.Background(), &model.PatientData{FirstName: "Asha"})
	require.NoError(t, err)
	assert.Equal(t, "p-42", id)
}

func TestCreatePatientWithoutIDIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreatePatient(context.Background(), &model.PatientData{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrRemoteFetch))
}

func TestGetPatientFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/patients/p-42", r.URL.Path)
		json.NewEncoder(w).Encode(model.PatientRecord{
			PatientID:   "p-42",
			PatientData: &model.PatientData{Diagnosis: "migraine"},
		})
	}))
	defer srv.Close()

	record, err := newTestClient(srv.URL).GetPatient(context.Background(), "p-42")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "migraine", record.PatientData.Diagnosis)
}

func TestGetPatientNotFoundIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	record, err := newTestClient(srv.URL).GetPatient(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestGetPatientServerErrorIsRemoteFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetPatient(context.Background(), "p-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrRemoteFetch))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := client.GetPatient(context.Background(), "p-1")
		require.Error(t, err)
	}

	// breaker is open now; the request never reaches the server
	srv.Close()
	_, err := client.GetPatient(context.Background(), "p-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker")
}

// Package remote is the narrow contract with the external patient record
// service. The draft subsystem depends on exactly two calls: creating a
// patient from the basic section and fetching an existing record.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/careloop/draft-api/internal/model"
	"github.com/careloop/draft-api/pkg/circuitbreaker"
	apperrors "github.com/careloop/draft-api/pkg/errors"
	"github.com/careloop/draft-api/pkg/metrics"
)

// Client is the record service contract.
type Client interface {
	// CreatePatient commits the basic section and returns the server-issued
	// permanent identifier.
	CreatePatient(ctx context.Context, basic *model.PatientData) (string, error)
	// GetPatient returns nil, nil when the record does not exist.
	GetPatient(ctx context.Context, patientID string) (*model.PatientRecord, error)
}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxFailures int
	OpenTimeout time.Duration
}

type httpClient struct {
	baseURL string
	http    *http.Client
	cb      *circuitbreaker.CircuitBreaker
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewClient(cfg Config, logger zerolog.Logger, m *metrics.Metrics) Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "record-service",
		MaxFailures: cfg.MaxFailures,
		Timeout:     cfg.OpenTimeout,
	})
	return &httpClient{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		cb:      cb,
		logger:  logger.With().Str("component", "remote").Logger(),
		metrics: m,
	}
}

type createPatientResponse struct {
	PatientID string `json:"patient_id"`
}

func (c *httpClient) CreatePatient(ctx context.Context, basic *model.PatientData) (string, error) {
	payload, err := json.Marshal(basic)
	if err != nil {
		return "", fmt.Errorf("failed to encode basic section: %w", err)
	}

	var created createPatientResponse
	err = c.execute(ctx, "create_patient", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/patients", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
			return fmt.Errorf("record service returned %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&created)
	})
	if err != nil {
		return "", apperrors.NewRemoteFetch(err)
	}
	if created.PatientID == "" {
		return "", apperrors.NewRemoteFetch(fmt.Errorf("record service returned no patient id"))
	}
	return created.PatientID, nil
}

func (c *httpClient) GetPatient(ctx context.Context, patientID string) (*model.PatientRecord, error) {
	var record *model.PatientRecord
	err := c.execute(ctx, "get_patient", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/patients/"+patientID, nil)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			var decoded model.PatientRecord
			if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
				return err
			}
			record = &decoded
			return nil
		case http.StatusNotFound:
			return nil
		default:
			return fmt.Errorf("record service returned %d", resp.StatusCode)
		}
	})
	if err != nil {
		return nil, apperrors.NewRemoteFetch(err)
	}
	return record, nil
}

func (c *httpClient) execute(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	err := c.cb.Execute(fn)

	status := "ok"
	if err != nil {
		status = "error"
		c.logger.Error().Err(err).Str("operation", operation).Msg("record service call failed")
	}
	if c.metrics != nil {
		c.metrics.RemoteCalls.WithLabelValues(operation, status).Inc()
		c.metrics.RemoteLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
	return err
}

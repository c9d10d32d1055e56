package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Autosave pipeline metrics
	AutosaveWrites    prometheus.Counter
	AutosaveFailures  prometheus.Counter
	AutosaveSkipped   *prometheus.CounterVec
	AutosaveDebounced prometheus.Counter

	// Draft store metrics
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec
	DraftsCleaned   prometheus.Counter

	// Hydration metrics
	HydrationSource *prometheus.CounterVec

	// Remote record service metrics
	RemoteCalls   *prometheus.CounterVec
	RemoteLatency *prometheus.HistogramVec

	// Identity metrics
	Promotions *prometheus.CounterVec

	// Session metrics
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		AutosaveWrites: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "autosave_writes_total",
			Help:      "Total number of draft snapshots persisted by the autosave pipeline",
		}),
		AutosaveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "autosave_failures_total",
			Help:      "Total number of autosave writes absorbed as failures",
		}),
		AutosaveSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "autosave_skipped_total",
			Help:      "Autosave writes skipped by a guard condition",
		}, []string{"reason"}),
		AutosaveDebounced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "autosave_debounced_total",
			Help:      "Scheduled writes cancelled by a newer edit",
		}),

		StoreOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "draft_store_operations_total",
			Help:      "Total number of draft store operations",
		}, []string{"operation", "status"}),
		StoreLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "draft_store_operation_duration_seconds",
			Help:      "Duration of draft store operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		DraftsCleaned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "drafts_cleaned_total",
			Help:      "Drafts deleted by the retention sweep",
		}),

		HydrationSource: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "hydration_total",
			Help:      "Session hydrations by winning source",
		}, []string{"source"}),

		RemoteCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "remote_calls_total",
			Help:      "Calls to the patient record service",
		}, []string{"operation", "status"}),
		RemoteLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "remote_call_duration_seconds",
			Help:      "Duration of patient record service calls",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),

		Promotions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "identity_promotions_total",
			Help:      "Identity promotions by origin state",
		}, []string{"from"}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_sessions",
			Help:      "Currently active draft editing sessions",
		}),
	}
}

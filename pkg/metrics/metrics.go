package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Outbox
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxEventsCleaned     prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxQueueSize         prometheus.Gauge
	OutboxRetries           *prometheus.CounterVec

	// Database
	DatabaseOperations *prometheus.CounterVec

	// Domain
	PatientMutations      *prometheus.CounterVec
	AdministrationRecords *prometheus.CounterVec
	LoginAttempts         *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. A nil reg skips
// registration, which keeps tests independent of the global registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OutboxEventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully relayed outbox events",
		}),
		OutboxEventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of outbox events that exhausted their publish attempts",
		}),
		OutboxEventsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_cleaned_total",
			Help:      "Total number of processed outbox events removed by retention cleanup",
		}),
		OutboxProcessingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing one outbox batch",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_queue_size",
			Help:      "Number of events fetched in the last outbox poll",
		}),
		OutboxRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of publish retries for outbox events",
		}, []string{"event_type"}),

		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),

		PatientMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patient_mutations_total",
			Help:      "Patient record mutations by operation and outcome",
		}, []string{"op", "status"}),
		AdministrationRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "administration_records_total",
			Help:      "Medicine administration ledger entries recorded, by kind",
		}, []string{"kind"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.OutboxEventsProcessed,
			m.OutboxEventsFailed,
			m.OutboxEventsCleaned,
			m.OutboxProcessingLatency,
			m.OutboxQueueSize,
			m.OutboxRetries,
			m.DatabaseOperations,
			m.PatientMutations,
			m.AdministrationRecords,
			m.LoginAttempts,
		)
	}
	return m
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Policy evaluation
	EvaluationsTotal  *prometheus.CounterVec
	EvaluationLatency prometheus.Histogram

	// Access request workflow
	RequestTransitions *prometheus.CounterVec
	PendingRequests    prometheus.Gauge

	// Document retrieval
	RetrievalsTotal   *prometheus.CounterVec
	RetrievalLatency  prometheus.Histogram
	IntegrityFailures prometheus.Counter

	// Circuit breakers, labelled per endpoint
	CircuitState       *prometheus.GaugeVec
	CircuitTransitions *prometheus.CounterVec

	// Outbox relay
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Database
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_evaluations_total",
			Help:      "Total number of policy evaluations by outcome",
		}, []string{"outcome"}),
		EvaluationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "policy_evaluation_duration_seconds",
			Help:      "Time spent evaluating access policies",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		RequestTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_request_transitions_total",
			Help:      "Total number of access request state transitions",
		}, []string{"to"}),
		PendingRequests: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "access_requests_pending",
			Help:      "Current number of pending access requests",
		}),
		RetrievalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_retrievals_total",
			Help:      "Total number of document retrievals by status",
		}, []string{"status"}),
		RetrievalLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_retrieval_duration_seconds",
			Help:      "Time spent fetching document bytes from storage nodes",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		IntegrityFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_integrity_failures_total",
			Help:      "Total number of retrieved documents failing digest verification",
		}),
		CircuitState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per endpoint (0=closed, 1=half-open, 2=open)",
		}, []string{"endpoint"}),
		CircuitTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		}, []string{"endpoint", "to"}),
		OutboxEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully relayed outbox events",
		}),
		OutboxEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of outbox events that failed relay",
		}),
		OutboxProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent relaying outbox event batches",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		OutboxRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of outbox redelivery attempts",
		}, []string{"event_type"}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// ObserveCircuit returns a hook suitable for resilient.Breaker.OnStateChange.
func (m *Metrics) ObserveCircuit() func(endpoint, from, to string) {
	value := map[string]float64{"closed": 0, "half-open": 1, "open": 2}
	return func(endpoint, from, to string) {
		m.CircuitState.WithLabelValues(endpoint).Set(value[to])
		m.CircuitTransitions.WithLabelValues(endpoint, to).Inc()
	}
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Checkout metrics
	CheckoutsStarted  *prometheus.CounterVec
	ReturnsClassified *prometheus.CounterVec
	FlowOutcomes      *prometheus.CounterVec
	TierOperations    *prometheus.CounterVec

	// Trip metrics
	TripsCreated     *prometheus.CounterVec
	CreationDuration *prometheus.HistogramVec
	JoinCodeRetries  prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec

	// Worker metrics
	WorkerMessagesProcessed *prometheus.CounterVec
	IntentsSwept            prometheus.Counter
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		CheckoutsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkouts_started_total",
				Help:      "Checkouts redirected to the payment gateway, by token shape",
			},
			[]string{"shape"},
		),
		ReturnsClassified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkout_returns_total",
				Help:      "Checkout page loads by return classification",
			},
			[]string{"kind", "shape"},
		),
		FlowOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkout_flow_outcomes_total",
				Help:      "Terminal states reached by the return flow",
			},
			[]string{"state", "reason"},
		),
		TierOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intent_tier_operations_total",
				Help:      "Intent storage operations by tier and result",
			},
			[]string{"tier", "op", "result"},
		),
		TripsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trips_created_total",
				Help:      "Trip creation attempts by result",
			},
			[]string{"result"},
		),
		CreationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trip_creation_duration_seconds",
				Help:      "Trip creation duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"result"},
		),
		JoinCodeRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "join_code_retries_total",
				Help:      "Join code regenerations after a uniqueness collision",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Total number of circuit breaker requests",
			},
			[]string{"name", "result"},
		),
		WorkerMessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_messages_processed_total",
				Help:      "Total number of worker messages processed",
			},
			[]string{"stream", "status"},
		),
		IntentsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intents_swept_total",
				Help:      "Expired staging intents discarded by the sweeper",
			},
		),
	}

	reg.MustRegister(
		m.CheckoutsStarted,
		m.ReturnsClassified,
		m.FlowOutcomes,
		m.TierOperations,
		m.TripsCreated,
		m.CreationDuration,
		m.JoinCodeRetries,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerRequests,
		m.WorkerMessagesProcessed,
		m.IntentsSwept,
	)

	return m
}

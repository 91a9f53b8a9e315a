package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhooksReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Total number of webhook requests accepted at ingestion (count)",
		},
		[]string{"source", "status"},
	)

	ChallengesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_challenges_total",
			Help: "Total number of verification challenges answered (count)",
		},
		[]string{"source", "status"},
	)

	ValidationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_validation_total",
			Help: "Total number of webhooks processed by the validation stage (count)",
		},
		[]string{"source", "status"},
	)

	ValidationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_validation_duration_ms",
			Help:    "Validation stage duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	NormalizedOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "normalized_operations_total",
			Help: "Total number of canonical operations produced by the normalizer (count)",
		},
		[]string{"source", "kind"},
	)

	DeliveryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_delivery_total",
			Help: "Total number of operations dispatched to the analytics sink (count)",
		},
		[]string{"kind", "status"},
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analytics_delivery_duration_ms",
			Help:    "Delivery stage duration per webhook in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	DedupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_dedup_total",
			Help: "Total number of webhooks checked for duplicates (count)",
		},
		[]string{"status"},
	)

	SuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_suppressed_total",
			Help: "Total number of webhooks suppressed by a source filter (count)",
		},
		[]string{"source"},
	)

	ActiveSources = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "webhook_active_sources",
			Help: "Number of enabled sources in the registry (count)",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of webhooks sent to the DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of fallback decisions taken on infrastructure errors (count)",
		},
		[]string{"stage", "decision", "reason"},
	)
)

func RegisterIngestMetrics() {
	prometheus.MustRegister(
		WebhooksReceivedTotal,
		ChallengesTotal,
		RateLimitRequestsTotal,
	)
}

func RegisterValidationMetrics() {
	prometheus.MustRegister(
		ValidationTotal,
		ValidationDuration,
		DedupTotal,
		FallbackUsageTotal,
	)
}

func RegisterDeliveryMetrics() {
	prometheus.MustRegister(
		NormalizedOperationsTotal,
		DeliveryTotal,
		DeliveryDuration,
		SuppressedTotal,
		ActiveSources,
	)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(
		RetryAttemptsTotal,
		DLQMessagesTotal,
	)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(
		CircuitBreakerState,
		CircuitBreakerRequests,
		CircuitBreakerFailures,
	)
}

func ObserveValidationDuration(d time.Duration, status string) {
	ValidationDuration.WithLabelValues(status).Observe(float64(d.Milliseconds()))
}

func ObserveDeliveryDuration(d time.Duration, status string) {
	DeliveryDuration.WithLabelValues(status).Observe(float64(d.Milliseconds()))
}

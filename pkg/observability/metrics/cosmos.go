package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels of cosmos_operations_total.
const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeSuppressed = "suppressed"
	OutcomeRejected   = "rejected"
)

// CosmosMetrics records Cosmos DB data operations. A nil *CosmosMetrics records nothing.
type CosmosMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	requestCharge *prometheus.CounterVec
	upsertRetries *prometheus.CounterVec
}

func NewCosmosMetrics() *CosmosMetrics {
	return &CosmosMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosmos_operations_total",
				Help: "Total number of Cosmos DB data operations",
			},
			[]string{"container", "operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cosmos_operation_duration_seconds",
				Help:    "Cosmos DB data operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"container", "operation"},
		),
		requestCharge: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosmos_request_charge_total",
				Help: "Request units consumed by Cosmos DB data operations",
			},
			[]string{"container", "operation"},
		),
		upsertRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cosmos_upsert_retries_total",
				Help: "Partitioned upserts retried after a retryable conflict",
			},
			[]string{"container"},
		),
	}
}

// Collectors returns the collectors to register.
func (m *CosmosMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.operations, m.duration, m.requestCharge, m.upsertRetries}
}

// ObserveOperation records one finished operation.
func (m *CosmosMetrics) ObserveOperation(container, operation, outcome string, duration time.Duration, requestCharge float32) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(container, operation, outcome).Inc()
	m.duration.WithLabelValues(container, operation).Observe(duration.Seconds())
	if requestCharge > 0 {
		m.requestCharge.WithLabelValues(container, operation).Add(float64(requestCharge))
	}
}

func (m *CosmosMetrics) IncUpsertRetry(container string) {
	if m == nil {
		return
	}
	m.upsertRetries.WithLabelValues(container).Inc()
}

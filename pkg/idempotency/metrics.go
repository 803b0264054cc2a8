package idempotency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds idempotency-related Prometheus metrics
type Metrics struct {
	Hits                *prometheus.CounterVec
	Misses              *prometheus.CounterVec
	ParameterMismatches *prometheus.CounterVec
	ConcurrentRequests  *prometheus.CounterVec
	StorageErrors       *prometheus.CounterVec
}

// NewMetrics registers the idempotency metrics on registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)
	labels := []string{"service", "endpoint", "method"}

	return &Metrics{
		Hits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_hits_total",
			Help: "Requests answered from a stored response",
		}, labels),
		Misses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_misses_total",
			Help: "Requests processed under a new or released key",
		}, labels),
		ParameterMismatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_parameter_mismatches_total",
			Help: "Keys reused with a different request",
		}, labels),
		ConcurrentRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_concurrent_requests_total",
			Help: "Requests rejected while another holds the key",
		}, labels),
		StorageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_storage_errors_total",
			Help: "Idempotency repository failures",
		}, []string{"service", "operation"}),
	}
}

func (m *Metrics) hit(service, endpoint, method string) {
	if m != nil {
		m.Hits.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) miss(service, endpoint, method string) {
	if m != nil {
		m.Misses.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) mismatch(service, endpoint, method string) {
	if m != nil {
		m.ParameterMismatches.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) concurrent(service, endpoint, method string) {
	if m != nil {
		m.ConcurrentRequests.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) storageError(service, operation string) {
	if m != nil {
		m.StorageErrors.WithLabelValues(service, operation).Inc()
	}
}

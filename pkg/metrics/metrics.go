package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the roll inventory service.
// All Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxPending   prometheus.Gauge
	OutboxPublished *prometheus.CounterVec

	// Roll lifecycle metrics
	RollsCreated        *prometheus.CounterVec
	RollTransitions     *prometheus.CounterVec
	AllocationRequests  *prometheus.CounterVec
	RollsAllocated      prometheus.Counter
	LandedCostAllocated *prometheus.CounterVec
	ResolveResults      *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "textile",
	}
}

// New creates a new Metrics instance registered on its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	ns := config.Namespace
	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total", Help: "Total number of HTTP requests"},
		[]string{"service", "method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)
	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "kafka_events_published_total", Help: "Total number of Kafka events published"},
		[]string{"service", "topic", "event_type", "status"},
	)
	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "topic"},
	)

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "mongodb_operations_total", Help: "Total number of MongoDB operations"},
		[]string{"service", "collection", "operation", "status"},
	)
	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "collection", "operation"},
	)

	m.OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "outbox_pending_events",
			Help:        "Unpublished events found by the last relay poll",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)
	m.OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "outbox_events_relayed_total", Help: "Outbox events relayed to the broker"},
		[]string{"service", "status"},
	)

	m.RollsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "rolls_created_total", Help: "Rolls created by receipt or return split"},
		[]string{"service", "origin", "status"},
	)
	m.RollTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "roll_transitions_total", Help: "Roll status transitions"},
		[]string{"service", "from", "to"},
	)
	m.AllocationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "allocation_requests_total", Help: "FIFO allocation requests by outcome"},
		[]string{"service", "result"},
	)
	m.RollsAllocated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "rolls_allocated_total",
			Help:        "Rolls reserved against order lines",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)
	m.LandedCostAllocated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "landed_cost_allocated_total", Help: "Landed cost amount distributed to rolls"},
		[]string{"service", "basis", "type"},
	)
	m.ResolveResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "unmapped_resolve_results_total", Help: "Unmapped roll resolution outcomes"},
		[]string{"service", "result"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: ns, Name: "circuit_breaker_state", Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)"},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaPublishDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.OutboxPending,
		m.OutboxPublished,
		m.RollsCreated,
		m.RollTransitions,
		m.AllocationRequests,
		m.RollsAllocated,
		m.LandedCostAllocated,
		m.ResolveResults,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish event
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, statusLabel(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of unpublished outbox events
func (m *Metrics) SetOutboxPending(count int) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxRelay records the outcome of relaying one outbox event
func (m *Metrics) RecordOutboxRelay(success bool) {
	if m == nil {
		return
	}
	m.OutboxPublished.WithLabelValues(m.serviceName, statusLabel(success)).Inc()
}

// RecordRollsCreated records rolls created by receipt ("receipt") or return split ("split")
func (m *Metrics) RecordRollsCreated(origin, status string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.RollsCreated.WithLabelValues(m.serviceName, origin, status).Add(float64(count))
}

// RecordTransition records a roll status transition
func (m *Metrics) RecordTransition(from, to string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.RollTransitions.WithLabelValues(m.serviceName, from, to).Add(float64(count))
}

// RecordAllocation records an allocation request and the rolls it reserved
func (m *Metrics) RecordAllocation(result string, rolls int) {
	if m == nil {
		return
	}
	m.AllocationRequests.WithLabelValues(m.serviceName, result).Inc()
	if rolls > 0 {
		m.RollsAllocated.Add(float64(rolls))
	}
}

// RecordLandedCost records an amount distributed by the landed cost allocator
func (m *Metrics) RecordLandedCost(basis, costType string, amount float64) {
	if m == nil {
		return
	}
	m.LandedCostAllocated.WithLabelValues(m.serviceName, basis, costType).Add(amount)
}

// RecordResolve records the outcome of resolving one unmapped roll
func (m *Metrics) RecordResolve(success bool) {
	if m == nil {
		return
	}
	m.ResolveResults.WithLabelValues(m.serviceName, statusLabel(success)).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

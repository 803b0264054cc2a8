package kafka

import (
	"context"
	"time"

	"github.com/textile-backoffice/roll-inventory/pkg/cloudevents"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
	"github.com/textile-backoffice/roll-inventory/pkg/metrics"
	"github.com/textile-backoffice/roll-inventory/pkg/resilience"
	"github.com/textile-backoffice/roll-inventory/pkg/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedProducer wraps a Producer with tracing, metrics and a circuit breaker
type InstrumentedProducer struct {
	producer *Producer
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewInstrumentedProducer creates a new instrumented producer. m may be nil.
func NewInstrumentedProducer(producer *Producer, m *metrics.Metrics, logger *logging.Logger) *InstrumentedProducer {
	return &InstrumentedProducer{
		producer: producer,
		breaker:  resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("kafka-producer"), logger, m),
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("kafka-producer"),
	}
}

// PublishEvent publishes an envelope, propagating the trace context as message headers
func (p *InstrumentedProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.CloudEvent) error {
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "kafka.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("kafka"),
			semconv.MessagingDestinationNameKey.String(topic),
			semconv.MessagingOperationKey.String("publish"),
			attribute.String("messaging.kafka.event_type", event.Type),
			attribute.String("messaging.message_id", event.ID),
		),
	)
	defer span.End()

	if event.CorrelationID != "" {
		span.SetAttributes(attribute.String("textile.correlation_id", event.CorrelationID))
	}

	carrier := tracing.MapCarrier{}
	tracing.InjectTraceContext(ctx, carrier)

	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.producer.publish(ctx, topic, event, carrier)
	})
	duration := time.Since(start)
	success := err == nil

	p.metrics.RecordKafkaPublish(topic, event.Type, success, duration)
	if p.logger != nil {
		p.logger.KafkaPublish(ctx, topic, event.Type, success, duration)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// Close closes the underlying producer
func (p *InstrumentedProducer) Close() error {
	return p.producer.Close()
}

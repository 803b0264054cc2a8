package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
)

// EventFactory creates CloudEvents for one event source
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent wraps data in an envelope. Correlation id and actor are taken from ctx when present.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}) *CloudEvent {
	event := &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}

	if ctx != nil {
		if v, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
			event.CorrelationID = v
		}
		event.Actor = logging.ActorFromContext(ctx)
	}

	return event
}

package events

import (
	"context"
	"fmt"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/cloudevents"
	"github.com/textile-backoffice/roll-inventory/pkg/kafka"
	"github.com/textile-backoffice/roll-inventory/pkg/outbox"
)

// Stream describes where the events of one aggregate type are published
type Stream struct {
	AggregateType string
	SubjectPrefix string
	Topic         string
}

var (
	RollStream  = Stream{AggregateType: "Roll", SubjectPrefix: "rolls", Topic: kafka.Topics.RollEvents}
	BatchStream = Stream{AggregateType: "Batch", SubjectPrefix: "batches", Topic: kafka.Topics.BatchEvents}
	SKUStream   = Stream{AggregateType: "SKU", SubjectPrefix: "skus", Topic: kafka.Topics.CatalogEvents}
)

// DefaultFactory stamps events with the roll inventory source
var DefaultFactory = cloudevents.NewEventFactory(cloudevents.SourceRollInventory)

// ToOutbox wraps the pending domain events of one aggregate in CloudEvents and
// turns them into outbox rows. A nil factory uses DefaultFactory.
func (s Stream) ToOutbox(ctx context.Context, factory *cloudevents.EventFactory, aggregateID string, pending []domain.DomainEvent) ([]*outbox.OutboxEvent, error) {
	if len(pending) == 0 {
		return nil, nil
	}
	if factory == nil {
		factory = DefaultFactory
	}

	rows := make([]*outbox.OutboxEvent, 0, len(pending))
	for _, event := range pending {
		ce := factory.CreateEvent(ctx, event.EventType(), s.SubjectPrefix+"/"+aggregateID, event)
		ce.Time = event.OccurredAt().UTC()

		row, err := outbox.NewOutboxEventFromCloudEvent(aggregateID, s.AggregateType, s.Topic, ce)
		if err != nil {
			return nil, fmt.Errorf("failed to create outbox event: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

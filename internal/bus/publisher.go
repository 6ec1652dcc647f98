package bus

import (
	"context"

	"github.com/stdin/venezuelawatch/internal/domain"
)

// EventPublisher adapts Bus.Publish to the narrow single-method ports
// internal/adapter and internal/alerts each declare independently
// (adapter.Publisher, alerts.Publisher). Both ports have the identical
// PublishIngest(ctx, domain.Event) error shape, so one concrete type
// satisfies both structurally without any adapter-specific glue.
type EventPublisher struct {
	bus *Bus
}

// NewEventPublisher builds an EventPublisher over an already-constructed
// Bus.
func NewEventPublisher(b *Bus) *EventPublisher {
	return &EventPublisher{bus: b}
}

// PublishIngest enqueues e to the ingest topic.
func (p *EventPublisher) PublishIngest(ctx context.Context, e domain.Event) error {
	_, err := p.bus.Publish(ctx, TopicIngest, e)
	return err
}

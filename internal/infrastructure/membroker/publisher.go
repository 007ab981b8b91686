package membroker

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Product-Composite/pkg/stream"
)

type EventPublisher struct {
	pub *stream.Publisher
}

func NewEventPublisher(pub *stream.Publisher) *EventPublisher {
	return &EventPublisher{pub}
}

func (ep *EventPublisher) Publish(ctx context.Context, topic string, env stream.Envelope) error {
	err := ep.pub.Publish(ctx, topic, env)
	if err != nil {
		return fmt.Errorf("membroker EventPublisher - Publish - ep.pub.Publish: %w", err)
	}

	return nil
}

// Close is a no-op: the broker's lifetime is owned by the app.
func (ep *EventPublisher) Close() error {
	return nil
}

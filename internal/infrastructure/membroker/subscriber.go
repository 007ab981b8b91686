package membroker

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Product-Composite/pkg/stream"
)

type EventSubscriber struct {
	dispatcher *stream.Dispatcher
}

func NewEventSubscriber(dispatcher *stream.Dispatcher) *EventSubscriber {
	return &EventSubscriber{dispatcher}
}

func (es *EventSubscriber) Subscribe(topic string, cfg stream.ConsumerConfig, handler stream.Handler) error {
	err := es.dispatcher.Subscribe(topic, cfg, handler)
	if err != nil {
		return fmt.Errorf("membroker EventSubscriber - Subscribe - es.dispatcher.Subscribe: %w", err)
	}

	return nil
}

func (es *EventSubscriber) Shutdown(ctx context.Context) error {
	err := es.dispatcher.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("membroker EventSubscriber - Shutdown - es.dispatcher.Shutdown: %w", err)
	}

	return nil
}

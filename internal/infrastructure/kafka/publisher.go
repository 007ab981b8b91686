package kafka

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Product-Composite/pkg/kafka/producer"
	"github.com/andreyxaxa/Product-Composite/pkg/stream"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type EventPublisher struct {
	*producer.Producer
	codec stream.Codec
}

func NewEventPublisher(p *producer.Producer) *EventPublisher {
	return &EventPublisher{p, stream.JSONCodec{}}
}

func (ep *EventPublisher) Publish(ctx context.Context, topic string, env stream.Envelope) error {
	// 1. Malformed конверт отсекается до брокера, без ретраев
	value, err := ep.codec.Marshal(env)
	if err != nil {
		return fmt.Errorf("kafka EventPublisher - Publish - ep.codec.Marshal: %w", err)
	}

	// 2. ключ партиционирования - env.Key, балансировщик kafka.Hash
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(env.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: stream.HeaderEventID, Value: []byte(uuid.NewString())},
		},
	}

	err = ep.Writer.WriteMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("kafka EventPublisher - Publish - ep.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (ep *EventPublisher) Close() error {
	err := ep.Producer.Close()
	if err != nil {
		return fmt.Errorf("kafka EventPublisher - Close: %w", err)
	}

	return nil
}

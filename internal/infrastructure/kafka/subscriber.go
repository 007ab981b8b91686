package kafka

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/andreyxaxa/Product-Composite/pkg/kafka/consumer"
	"github.com/andreyxaxa/Product-Composite/pkg/kafka/producer"
	"github.com/andreyxaxa/Product-Composite/pkg/logger"
	"github.com/andreyxaxa/Product-Composite/pkg/stream"
	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
	"github.com/segmentio/kafka-go"
)

const (
	_commitTimeout      = 2 * time.Second
	_saturationInterval = 50 * time.Millisecond
)

// EventSubscriber drives one reader loop per subscribed topic. Exclusive
// partition ownership within a group comes from the broker's group protocol,
// so the instance-index math of the memory binder does not apply here.
// Failed deliveries are retried in place per the policy; exhausted, terminal
// and malformed records are forwarded to "<topic><dlqSuffix>" before the
// offset commit, so a poison message never blocks its partition.
type EventSubscriber struct {
	brokers   []string
	dlqSuffix string
	policy    stream.RetryPolicy
	codec     stream.Codec
	dlq       *producer.Producer
	logger    logger.Interface

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	readers []*consumer.Consumer
	closed  bool
}

func NewEventSubscriber(
	brokers []string,
	dlqSuffix string,
	policy stream.RetryPolicy,
	dlq *producer.Producer,
	l logger.Interface,
) *EventSubscriber {
	if policy == (stream.RetryPolicy{}) {
		policy = stream.DefaultRetryPolicy()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &EventSubscriber{
		brokers:   brokers,
		dlqSuffix: dlqSuffix,
		policy:    policy,
		codec:     stream.JSONCodec{},
		dlq:       dlq,
		logger:    l,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (es *EventSubscriber) Subscribe(topic string, cfg stream.ConsumerConfig, handler stream.Handler) error {
	if handler == nil {
		return errs.New(errs.KindInvalidInput, "handler must not be nil")
	}

	if cfg.Group == "" {
		return errs.New(errs.KindInvalidInput, "consumer group must not be empty")
	}

	es.mu.Lock()
	if es.closed {
		es.mu.Unlock()

		return fmt.Errorf("kafka EventSubscriber - Subscribe: %w", stream.ErrDispatcherClosed)
	}
	es.mu.Unlock()

	c, err := consumer.New(es.ctx, es.brokers, cfg.Group, topic)
	if err != nil {
		return fmt.Errorf("kafka EventSubscriber - Subscribe - consumer.New: %w", err)
	}

	es.mu.Lock()
	es.readers = append(es.readers, c)
	es.mu.Unlock()

	policy := cfg.Policy
	if policy == (stream.RetryPolicy{}) {
		policy = es.policy
	}

	es.wg.Add(1)
	go es.run(c, topic, policy, handler)

	return nil
}

func (es *EventSubscriber) run(c *consumer.Consumer, topic string, policy stream.RetryPolicy, handler stream.Handler) {
	defer es.wg.Done()

	for {
		// 1. читаем без коммита
		msg, err := c.Reader.FetchMessage(es.ctx)
		if err != nil {
			if es.ctx.Err() != nil {
				return
			}
			es.logger.Error(err, "kafka EventSubscriber - run - c.Reader.FetchMessage")

			continue
		}

		// 2. доставляем с ретраями на месте; исход - ack либо парковка в DLQ
		if !es.deliver(topic, policy, handler, msg) {
			// остановка до исхода: оффсет не коммитим, брокер передоставит
			return
		}

		// 3. коммитим только после исхода доставки
		commitCtx, commitCancel := context.WithTimeout(context.Background(), _commitTimeout)
		err = c.Reader.CommitMessages(commitCtx, msg)
		commitCancel()
		if err != nil {
			es.logger.Error(err, "kafka EventSubscriber - run - c.Reader.CommitMessages")
		}
	}
}

func (es *EventSubscriber) deliver(topic string, policy stream.RetryPolicy, handler stream.Handler, msg kafka.Message) bool {
	env, decErr := es.codec.Unmarshal(msg.Value)
	if decErr != nil {
		// Malformed не тратит бюджет ретраев
		es.park(topic, msg, 0, stream.ReasonMalformed, decErr)

		return true
	}

	attempt := stream.DeliveryAttempt{}

	for {
		err := handler(es.ctx, env)
		if err == nil {
			return true
		}

		if es.ctx.Err() != nil {
			return false
		}

		// backpressure обработчика - ждём и передоставляем без счётчика попыток
		if errs.IsKind(err, errs.KindSaturated) {
			if !es.sleep(_saturationInterval) {
				return false
			}

			continue
		}

		switch policy.OnFailure(&attempt, err) {
		case stream.DecisionRetry:
			if !es.sleep(time.Until(attempt.NextAt)) {
				return false
			}
		case stream.DecisionDeadLetter:
			reason := stream.ReasonExhausted
			switch {
			case errs.IsKind(err, errs.KindMalformed):
				reason = stream.ReasonMalformed
			case errs.IsTerminal(err):
				reason = stream.ReasonTerminal
			}

			es.park(topic, msg, attempt.Attempts, reason, err)

			return true
		}
	}
}

// park forwards the record verbatim to the dead-letter topic with the retry
// metadata in headers. Uses a fresh context: parking must not be interrupted
// by shutdown.
func (es *EventSubscriber) park(topic string, msg kafka.Message, attempts int, reason string, cause error) {
	dlqMsg := kafka.Message{
		Topic: topic + es.dlqSuffix,
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "dlq_reason", Value: []byte(reason)},
			kafka.Header{Key: "dlq_attempts", Value: []byte(strconv.Itoa(attempts))},
			kafka.Header{Key: "dlq_error", Value: []byte(cause.Error())},
			kafka.Header{Key: "dlq_source_partition", Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: "dlq_source_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		),
	}

	err := es.dlq.Writer.WriteMessages(context.Background(), dlqMsg)
	if err != nil {
		es.logger.Error(err, "kafka EventSubscriber - park - es.dlq.Writer.WriteMessages")
	}
}

func (es *EventSubscriber) sleep(d time.Duration) bool {
	if d <= 0 {
		return es.ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-es.ctx.Done():
		return false
	}
}

func (es *EventSubscriber) Shutdown(ctx context.Context) error {
	es.mu.Lock()
	if es.closed {
		es.mu.Unlock()

		return nil
	}
	es.closed = true
	readers := es.readers
	es.mu.Unlock()

	es.cancel()

	// закрытие ридеров снимает блокировку FetchMessage
	for _, c := range readers {
		if err := c.Close(); err != nil {
			es.logger.Error(err, "kafka EventSubscriber - Shutdown - c.Close")
		}
	}

	done := make(chan struct{})

	go func() {
		es.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}

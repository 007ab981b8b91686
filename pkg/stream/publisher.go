package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

const (
	_defaultPublishAttempts = 3
	_defaultPublishInterval = 100 * time.Millisecond
)

// Publisher emits envelopes onto named topics. Transient append failures are
// retried with bounded attempts; application-level rejections (malformed
// envelope, unknown topic) are not. A retried append may duplicate an
// already-acknowledged write: delivery is at-least-once and the core does
// not deduplicate.
type Publisher struct {
	log      Log
	codec    Codec
	selector KeySelector
	metrics  Metrics

	attempts int
	interval time.Duration
}

type PublisherOption func(*Publisher)

func WithPublishAttempts(n int) PublisherOption {
	return func(p *Publisher) {
		p.attempts = n
	}
}

func WithPublishInterval(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.interval = d
	}
}

func WithPublishCodec(c Codec) PublisherOption {
	return func(p *Publisher) {
		p.codec = c
	}
}

func WithKeySelector(s KeySelector) PublisherOption {
	return func(p *Publisher) {
		p.selector = s
	}
}

func WithPublishMetrics(m Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(log Log, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		log:      log,
		codec:    JSONCodec{},
		selector: func(env Envelope) string { return env.Key },
		metrics:  NopMetrics{},
		attempts: _defaultPublishAttempts,
		interval: _defaultPublishInterval,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.attempts < 1 {
		p.attempts = 1
	}

	return p
}

type publishRequest struct {
	key string
}

type PublishOption func(*publishRequest)

// WithPartitionKey overrides the routing key for one publish call; the
// default is the envelope key.
func WithPartitionKey(key string) PublishOption {
	return func(r *publishRequest) {
		r.key = key
	}
}

// Publish routes env onto a partition of topic and appends it durably.
// It returns once the write is acknowledged with an assigned offset.
func (p *Publisher) Publish(ctx context.Context, topicName string, env Envelope, opts ...PublishOption) error {
	value, err := p.codec.Marshal(env)
	if err != nil {
		return fmt.Errorf("Publisher - Publish - p.codec.Marshal: %w", err)
	}

	req := publishRequest{key: p.selector(env)}
	for _, opt := range opts {
		opt(&req)
	}

	partitions, err := p.log.Partitions(topicName)
	if err != nil {
		return fmt.Errorf("Publisher - Publish - p.log.Partitions: %w", err)
	}

	rec := Record{
		Key:   []byte(req.key),
		Value: value,
		Headers: map[string]string{
			HeaderEventID: uuid.NewString(),
		},
	}

	partition := Route(req.key, partitions)

	var lastErr error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.interval):
			case <-ctx.Done():
				return fmt.Errorf("Publisher - Publish - ctx: %w", ctx.Err())
			}
		}

		_, lastErr = p.log.Append(ctx, topicName, partition, rec)
		if lastErr == nil {
			p.metrics.Published(topicName)

			return nil
		}

		if errs.IsTerminal(lastErr) {
			return fmt.Errorf("Publisher - Publish - p.log.Append: %w", lastErr)
		}
	}

	return fmt.Errorf("Publisher - Publish - attempts exhausted: %w", lastErr)
}

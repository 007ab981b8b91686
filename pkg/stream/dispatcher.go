package stream

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
	"github.com/andreyxaxa/Product-Composite/pkg/workerpool"
)

const _saturationInterval = 50 * time.Millisecond

// Handler consumes one decoded envelope. Returned errors are classified by
// the retry policy; they never propagate past the dispatcher.
type Handler func(ctx context.Context, env Envelope) error

// ConsumerConfig carries the per-binding consumer knobs. InstanceIndex and
// InstanceCount statically assign partition ownership: the instance owns
// every partition p where p % InstanceCount == InstanceIndex.
type ConsumerConfig struct {
	Group         string
	InstanceIndex int
	InstanceCount int
	Policy        RetryPolicy
}

// DeliveryState is the per (group, partition) position in the delivery
// state machine.
type DeliveryState int32

const (
	StateUnassigned DeliveryState = iota
	StateAssigned
	StateDelivering
	StateAcknowledged
	StateFailed
)

func (s DeliveryState) String() string {
	switch s {
	case StateAssigned:
		return "assigned"
	case StateDelivering:
		return "delivering"
	case StateAcknowledged:
		return "acknowledged"
	case StateFailed:
		return "failed"
	default:
		return "unassigned"
	}
}

type claimKey struct {
	topic     string
	group     string
	partition int
}

type claim struct {
	state atomic.Int32
}

func (c *claim) set(s DeliveryState) {
	c.state.Store(int32(s))
}

// Dispatcher delivers each record to exactly one instance per consumer
// group. Partition ownership within a group is exclusive; offsets are
// committed per (group, partition) and are independent across groups.
// Handlers run through the shared bounded worker pool, one record at a
// time per partition, so same-key FIFO is preserved.
type Dispatcher struct {
	source  Source
	pool    *workerpool.Pool
	sink    Sink
	codec   Codec
	metrics Metrics
	policy  RetryPolicy

	mu     sync.Mutex
	claims map[claimKey]*claim
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithDispatchCodec(c Codec) DispatcherOption {
	return func(d *Dispatcher) {
		d.codec = c
	}
}

func WithDispatchMetrics(m Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithDispatchPolicy sets the retry policy used when a subscription does
// not carry its own.
func WithDispatchPolicy(p RetryPolicy) DispatcherOption {
	return func(d *Dispatcher) {
		d.policy = p
	}
}

func NewDispatcher(source Source, pool *workerpool.Pool, sink Sink, opts ...DispatcherOption) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		source:  source,
		pool:    pool,
		sink:    sink,
		codec:   JSONCodec{},
		metrics: NopMetrics{},
		policy:  DefaultRetryPolicy(),
		claims:  make(map[claimKey]*claim),
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Subscribe registers one consumer instance of cfg.Group on topicName and
// starts a delivery goroutine per owned partition. Claiming a partition
// that another instance of the same group already owns is rejected.
func (d *Dispatcher) Subscribe(topicName string, cfg ConsumerConfig, handler Handler) error {
	if handler == nil {
		return errs.New(errs.KindInvalidInput, "Dispatcher - Subscribe - nil handler")
	}
	if cfg.Group == "" {
		return errs.New(errs.KindInvalidInput, "Dispatcher - Subscribe - empty group")
	}
	if cfg.InstanceCount < 1 {
		cfg.InstanceCount = 1
	}
	if cfg.InstanceIndex < 0 || cfg.InstanceIndex >= cfg.InstanceCount {
		return errs.Newf(errs.KindInvalidInput, "Dispatcher - Subscribe - instance index %d out of range [0,%d)", cfg.InstanceIndex, cfg.InstanceCount)
	}

	policy := cfg.Policy
	if policy.isZero() {
		policy = d.policy
	}

	partitions, err := d.source.Partitions(topicName)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()

		return ErrDispatcherClosed
	}

	var owned []int
	for p := 0; p < partitions; p++ {
		if p%cfg.InstanceCount != cfg.InstanceIndex {
			continue
		}

		if _, taken := d.claims[claimKey{topic: topicName, group: cfg.Group, partition: p}]; taken {
			d.mu.Unlock()

			return errs.Newf(errs.KindInvalidInput, "Dispatcher - Subscribe - partition %d of %q already owned in group %q", p, topicName, cfg.Group)
		}

		owned = append(owned, p)
	}

	for _, p := range owned {
		c := &claim{}
		c.set(StateAssigned)
		d.claims[claimKey{topic: topicName, group: cfg.Group, partition: p}] = c
	}
	d.mu.Unlock()

	for _, p := range owned {
		d.wg.Add(1)
		go d.consumePartition(topicName, cfg.Group, p, policy, handler)
	}

	return nil
}

// State reports the delivery state of a (topic, group, partition) claim.
func (d *Dispatcher) State(topicName, group string, partition int) DeliveryState {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.claims[claimKey{topic: topicName, group: group, partition: partition}]
	if !ok {
		return StateUnassigned
	}

	return DeliveryState(c.state.Load())
}

func (d *Dispatcher) claimFor(topicName, group string, partition int) *claim {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.claims[claimKey{topic: topicName, group: group, partition: partition}]
}

// consumePartition is the single reader of one (group, partition): it polls
// the next record, drives it to acknowledgement or the dead-letter sink and
// only then advances the committed offset.
func (d *Dispatcher) consumePartition(topicName, group string, partition int, policy RetryPolicy, handler Handler) {
	defer d.wg.Done()

	c := d.claimFor(topicName, group, partition)

	next, err := d.source.CommittedOffset(group, topicName, partition)
	if err != nil {
		log.Printf("stream - consumePartition - committed offset %s/%d group %s: %v", topicName, partition, group, err)

		return
	}
	if next < 0 {
		next = 0
	}

	for {
		c.set(StateAssigned)

		rec, err := d.source.Poll(d.ctx, topicName, partition, next)
		if err != nil {
			// Shutdown or broker close; both end the claim.
			return
		}

		if !d.deliver(c, group, rec, policy, handler) {
			return
		}

		next = rec.Offset + 1
		if err := d.source.CommitOffset(group, topicName, partition, next); err != nil {
			log.Printf("stream - consumePartition - commit %s/%d group %s: %v", topicName, partition, group, err)
		}

		if latest, err := d.source.NextOffset(topicName, partition); err == nil {
			d.metrics.Lag(topicName, group, partition, latest-next)
		}
	}
}

// deliver drives one record through the state machine until it is
// acknowledged or parked. It reports false when the dispatcher is shutting
// down mid-delivery, leaving the offset untouched.
func (d *Dispatcher) deliver(c *claim, group string, rec Record, policy RetryPolicy, handler Handler) bool {
	env, decErr := d.codec.Unmarshal(rec.Value)
	if decErr != nil {
		// Malformed never reaches the handler and consumes no retry budget.
		d.park(group, rec, 0, ReasonMalformed, decErr)
		d.metrics.DeadLettered(rec.Topic, group)

		return true
	}

	attempt := DeliveryAttempt{Record: rec}

	for {
		c.set(StateDelivering)

		err := d.invoke(env, handler)
		if err == nil {
			c.set(StateAcknowledged)
			d.metrics.Consumed(rec.Topic, group)

			return true
		}

		if d.ctx.Err() != nil {
			return false
		}

		if errors.Is(err, workerpool.ErrClosed) {
			// The pool is gone; shutdown is in progress.
			return false
		}

		if errs.IsKind(err, errs.KindSaturated) {
			// Pool backpressure is not a processing failure: come back
			// shortly without touching the attempt budget.
			if !d.sleep(_saturationInterval) {
				return false
			}

			continue
		}

		c.set(StateFailed)

		switch policy.OnFailure(&attempt, err) {
		case DecisionRetry:
			d.metrics.Retried(rec.Topic, group)
			if !d.sleep(time.Until(attempt.NextAt)) {
				return false
			}
		case DecisionDeadLetter:
			reason := ReasonExhausted
			if errs.IsTerminal(err) {
				reason = ReasonTerminal
			}
			if errs.IsKind(err, errs.KindMalformed) {
				reason = ReasonMalformed
			}

			d.park(group, rec, attempt.Attempts, reason, err)
			d.metrics.DeadLettered(rec.Topic, group)

			return true
		}
	}
}

func (d *Dispatcher) invoke(env Envelope, handler Handler) error {
	if d.pool == nil {
		return handler(d.ctx, env)
	}

	return d.pool.Do(d.ctx, func() error {
		return handler(d.ctx, env)
	})
}

// park moves the record verbatim to the dead-letter sink. A context that
// outlives the delivery is used on purpose: parking must not be interrupted
// by shutdown.
func (d *Dispatcher) park(group string, rec Record, attempts int, reason string, cause error) {
	dl := DeadLetter{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Headers:   rec.Headers,
		Group:     group,
		Reason:    reason,
		Attempts:  attempts,
		LastError: cause.Error(),
		ParkedAt:  time.Now().UTC(),
	}

	if err := d.sink.Append(context.Background(), dl); err != nil {
		log.Printf("stream - Dispatcher - sink append %s/%d offset %d: %v", rec.Topic, rec.Partition, rec.Offset, err)
	}
}

func (d *Dispatcher) sleep(dur time.Duration) bool {
	if dur <= 0 {
		return d.ctx.Err() == nil
	}

	t := time.NewTimer(dur)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-d.ctx.Done():
		return false
	}
}

// Shutdown stops all partition loops and waits for them up to ctx. Records
// mid-delivery are left uncommitted and will be redelivered to the group.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()

		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

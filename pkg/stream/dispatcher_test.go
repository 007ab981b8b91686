package stream_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyxaxa/Product-Composite/pkg/stream"
	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
	"github.com/andreyxaxa/Product-Composite/pkg/workerpool"
)

type countingMetrics struct {
	published    atomic.Int64
	consumed     atomic.Int64
	retried      atomic.Int64
	deadLettered atomic.Int64
}

func (m *countingMetrics) Published(string) { m.published.Add(1) }

func (m *countingMetrics) Consumed(string, string) { m.consumed.Add(1) }

func (m *countingMetrics) Retried(string, string) { m.retried.Add(1) }

func (m *countingMetrics) DeadLettered(string, string) { m.deadLettered.Add(1) }

func (m *countingMetrics) Lag(string, string, int, int64) {}

type recorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *recorder) handler() stream.Handler {
	return func(_ context.Context, env stream.Envelope) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.keys = append(r.keys, env.Key)

		return nil
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.keys)
}

func (r *recorder) seen() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]bool, len(r.keys))
	for _, k := range r.keys {
		out[k] = true
	}

	return out
}

func newTestPool(t *testing.T, workers, depth int) *workerpool.Pool {
	t.Helper()

	pool := workerpool.New(workerpool.Workers(workers), workerpool.QueueDepth(depth))
	require.NoError(t, pool.Start())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})

	return pool
}

func shutdownDispatcher(t *testing.T, d *stream.Dispatcher) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}

func fastPolicy(maxAttempts int) stream.RetryPolicy {
	return stream.RetryPolicy{
		MaxAttempts:     maxAttempts,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     80 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestDispatcher_DeliversAndCommits(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 1))

	pub := stream.NewPublisher(b)
	sink := stream.NewMemorySink()
	d := stream.NewDispatcher(b, newTestPool(t, 4, 16), sink)
	defer shutdownDispatcher(t, d)

	assert.Equal(t, stream.StateUnassigned, d.State("t", "g", 0))

	rec := &recorder{}
	require.NoError(t, d.Subscribe("t", stream.ConsumerConfig{Group: "g"}, rec.handler()))

	for i := 0; i < 3; i++ {
		env := mustEnvelope(t, stream.EventCreate, fmt.Sprintf("key-%d", i), nil)
		require.NoError(t, pub.Publish(context.Background(), "t", env))
	}

	assert.Eventually(t, func() bool { return rec.count() == 3 }, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		off, err := b.CommittedOffset("g", "t", 0)
		return err == nil && off == 3
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return d.State("t", "g", 0) == stream.StateAssigned
	}, 2*time.Second, 5*time.Millisecond)

	assert.Zero(t, sink.Len())
}

func TestDispatcher_RetryThenSuccess(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 1))

	pub := stream.NewPublisher(b)
	sink := stream.NewMemorySink()
	metrics := &countingMetrics{}

	d := stream.NewDispatcher(b, newTestPool(t, 2, 8), sink, stream.WithDispatchMetrics(metrics))
	defer shutdownDispatcher(t, d)

	var mu sync.Mutex
	var calls []time.Time

	handler := func(_ context.Context, _ stream.Envelope) error {
		mu.Lock()
		defer mu.Unlock()

		calls = append(calls, time.Now())
		if len(calls) <= 2 {
			return errs.New(errs.KindUnavailable, "leaf briefly down")
		}

		return nil
	}

	cfg := stream.ConsumerConfig{
		Group: "g",
		Policy: stream.RetryPolicy{
			MaxAttempts:     3,
			InitialInterval: 60 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2.0,
		},
	}
	require.NoError(t, d.Subscribe("t", cfg, handler))

	require.NoError(t, pub.Publish(context.Background(), "t", mustEnvelope(t, stream.EventCreate, "1", nil)))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	gap1 := calls[1].Sub(calls[0])
	gap2 := calls[2].Sub(calls[1])
	mu.Unlock()

	assert.GreaterOrEqual(t, gap1, 50*time.Millisecond, "first redelivery waits the initial interval")
	assert.GreaterOrEqual(t, gap2, 110*time.Millisecond, "second redelivery doubles the backoff")

	assert.Eventually(t, func() bool {
		off, err := b.CommittedOffset("g", "t", 0)
		return err == nil && off == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Zero(t, sink.Len(), "a recovered delivery must not be dead-lettered")
	assert.Equal(t, int64(2), metrics.retried.Load())
	assert.Equal(t, int64(1), metrics.consumed.Load())
}

func TestDispatcher_ExhaustionParksExactlyOnceAndAdvances(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 1))

	pub := stream.NewPublisher(b)
	sink := stream.NewMemorySink()
	d := stream.NewDispatcher(b, newTestPool(t, 2, 8), sink)
	defer shutdownDispatcher(t, d)

	var poisonCalls, goodCalls atomic.Int64

	handler := func(_ context.Context, env stream.Envelope) error {
		if strings.Contains(string(env.Data), "poison") {
			poisonCalls.Add(1)
			return errs.New(errs.KindUnavailable, "cannot process")
		}

		goodCalls.Add(1)

		return nil
	}

	cfg := stream.ConsumerConfig{Group: "g", Policy: fastPolicy(3)}
	require.NoError(t, d.Subscribe("t", cfg, handler))

	require.NoError(t, pub.Publish(context.Background(), "t", mustEnvelope(t, stream.EventCreate, "k", map[string]string{"tag": "poison"})))
	require.NoError(t, pub.Publish(context.Background(), "t", mustEnvelope(t, stream.EventCreate, "k", map[string]string{"tag": "fine"})))

	assert.Eventually(t, func() bool { return goodCalls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(3), poisonCalls.Load(), "the budget is three attempts")

	parked := sink.List()
	require.Len(t, parked, 1, "the poison record is parked exactly once")
	dl := parked[0]
	assert.Equal(t, "t", dl.Topic)
	assert.Equal(t, "g", dl.Group)
	assert.Equal(t, int64(0), dl.Offset)
	assert.Equal(t, stream.ReasonExhausted, dl.Reason)
	assert.Equal(t, 3, dl.Attempts)
	assert.NotEmpty(t, dl.LastError)

	// The parked value is the envelope verbatim.
	env, err := stream.JSONCodec{}.Unmarshal(dl.Value)
	require.NoError(t, err)
	assert.Equal(t, "k", env.Key)
	assert.Contains(t, string(env.Data), "poison")

	assert.Eventually(t, func() bool {
		off, err := b.CommittedOffset("g", "t", 0)
		return err == nil && off == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcher_TerminalErrorsParkImmediately(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 1))

	pub := stream.NewPublisher(b)
	sink := stream.NewMemorySink()
	d := stream.NewDispatcher(b, newTestPool(t, 2, 8), sink)
	defer shutdownDispatcher(t, d)

	var calls atomic.Int64
	handler := func(_ context.Context, _ stream.Envelope) error {
		calls.Add(1)
		return errs.New(errs.KindNotFound, "no such product")
	}

	require.NoError(t, d.Subscribe("t", stream.ConsumerConfig{Group: "g", Policy: fastPolicy(5)}, handler))
	require.NoError(t, pub.Publish(context.Background(), "t", mustEnvelope(t, stream.EventDelete, "13", nil)))

	assert.Eventually(t, func() bool { return sink.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(1), calls.Load(), "terminal failures are not retried")

	dl := sink.List()[0]
	assert.Equal(t, stream.ReasonTerminal, dl.Reason)
	assert.Equal(t, 1, dl.Attempts)
}

func TestDispatcher_MalformedSkipsHandlerAndBudget(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 1))

	sink := stream.NewMemorySink()
	d := stream.NewDispatcher(b, newTestPool(t, 2, 8), sink)
	defer shutdownDispatcher(t, d)

	var calls atomic.Int64
	handler := func(_ context.Context, _ stream.Envelope) error {
		calls.Add(1)
		return nil
	}

	require.NoError(t, d.Subscribe("t", stream.ConsumerConfig{Group: "g"}, handler))

	_, err := b.Append(context.Background(), "t", 0, stream.Record{Value: []byte("{not an envelope")})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return sink.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	dl := sink.List()[0]
	assert.Equal(t, stream.ReasonMalformed, dl.Reason)
	assert.Zero(t, dl.Attempts, "malformed records consume no retry budget")
	assert.Zero(t, calls.Load(), "malformed records never reach the handler")

	assert.Eventually(t, func() bool {
		off, err := b.CommittedOffset("g", "t", 0)
		return err == nil && off == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcher_IndependentGroups(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 2))

	pub := stream.NewPublisher(b)
	sink := stream.NewMemorySink()
	d := stream.NewDispatcher(b, newTestPool(t, 4, 16), sink)
	defer shutdownDispatcher(t, d)

	recA, recB := &recorder{}, &recorder{}
	require.NoError(t, d.Subscribe("t", stream.ConsumerConfig{Group: "audit"}, recA.handler()))
	require.NoError(t, d.Subscribe("t", stream.ConsumerConfig{Group: "projection"}, recB.handler()))

	want := make(map[string]bool)
	for i := 0; i < 4; i++ {
		key := fmt.Sprintf("key-%d", i)
		want[key] = true
		require.NoError(t, pub.Publish(context.Background(), "t", mustEnvelope(t, stream.EventUpdate, key, nil)))
	}

	assert.Eventually(t, func() bool { return recA.count() == 4 && recB.count() == 4 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, want, recA.seen(), "every group sees every record")
	assert.Equal(t, want, recB.seen(), "every group sees every record")

	for partition := 0; partition < 2; partition++ {
		latest, err := b.NextOffset("t", partition)
		require.NoError(t, err)

		for _, group := range []string{"audit", "projection"} {
			assert.Eventually(t, func() bool {
				off, err := b.CommittedOffset(group, "t", partition)
				return err == nil && off == latest
			}, 2*time.Second, 5*time.Millisecond, "group %s partition %d", group, partition)
		}
	}
}

func TestDispatcher_StaticPartitionAssignment(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 4))

	pub := stream.NewPublisher(b)
	sink := stream.NewMemorySink()
	d := stream.NewDispatcher(b, newTestPool(t, 4, 32), sink)
	defer shutdownDispatcher(t, d)

	rec0, rec1 := &recorder{}, &recorder{}
	require.NoError(t, d.Subscribe("t", stream.ConsumerConfig{Group: "g", InstanceIndex: 0, InstanceCount: 2}, rec0.handler()))
	require.NoError(t, d.Subscribe("t", stream.ConsumerConfig{Group: "g", InstanceIndex: 1, InstanceCount: 2}, rec1.handler()))

	want0, want1 := make(map[string]bool), make(map[string]bool)
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("key-%d", i)
		if stream.Route(key, 4)%2 == 0 {
			want0[key] = true
		} else {
			want1[key] = true
		}

		require.NoError(t, pub.Publish(context.Background(), "t", mustEnvelope(t, stream.EventCreate, key, nil)))
	}

	assert.Eventually(t, func() bool {
		return rec0.count() == len(want0) && rec1.count() == len(want1)
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, want0, rec0.seen(), "instance 0 owns the even partitions")
	assert.Equal(t, want1, rec1.seen(), "instance 1 owns the odd partitions")
}

func TestDispatcher_ExclusivePartitionOwnership(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 2))

	sink := stream.NewMemorySink()
	d := stream.NewDispatcher(b, newTestPool(t, 2, 8), sink)
	defer shutdownDispatcher(t, d)

	noop := func(context.Context, stream.Envelope) error { return nil }

	require.NoError(t, d.Subscribe("t", stream.ConsumerConfig{Group: "g"}, noop))

	err := d.Subscribe("t", stream.ConsumerConfig{Group: "g"}, noop)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))

	// A different group claims the same partitions independently.
	require.NoError(t, d.Subscribe("t", stream.ConsumerConfig{Group: "other"}, noop))
}

func TestDispatcher_SaturatedPoolRedeliversWithoutBudget(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 1))

	pub := stream.NewPublisher(b)
	sink := stream.NewMemorySink()
	metrics := &countingMetrics{}
	pool := newTestPool(t, 1, 1)

	d := stream.NewDispatcher(b, pool, sink, stream.WithDispatchMetrics(metrics))
	defer shutdownDispatcher(t, d)

	var handled atomic.Int64
	handler := func(_ context.Context, _ stream.Envelope) error {
		handled.Add(1)
		return nil
	}

	require.NoError(t, d.Subscribe("t", stream.ConsumerConfig{Group: "g", Policy: fastPolicy(2)}, handler))

	// Occupy the only worker and fill the queue so the dispatcher sees
	// Saturated on submission.
	gate := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-gate
	}))
	<-started
	require.NoError(t, pool.Submit(func() {}))

	require.NoError(t, pub.Publish(context.Background(), "t", mustEnvelope(t, stream.EventCreate, "1", nil)))

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, handled.Load(), "nothing can run while the pool is saturated")

	close(gate)

	assert.Eventually(t, func() bool { return handled.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	assert.Zero(t, metrics.retried.Load(), "backpressure must not consume the retry budget")
	assert.Zero(t, sink.Len())
}

func TestDispatcher_SubscribeValidation(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 2))

	sink := stream.NewMemorySink()
	d := stream.NewDispatcher(b, newTestPool(t, 2, 8), sink)
	defer shutdownDispatcher(t, d)

	noop := func(context.Context, stream.Envelope) error { return nil }

	err := d.Subscribe("t", stream.ConsumerConfig{Group: "g"}, nil)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))

	err = d.Subscribe("t", stream.ConsumerConfig{}, noop)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))

	err = d.Subscribe("t", stream.ConsumerConfig{Group: "g", InstanceIndex: 2, InstanceCount: 2}, noop)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))

	err = d.Subscribe("missing", stream.ConsumerConfig{Group: "g"}, noop)
	require.ErrorIs(t, err, stream.ErrTopicNotFound)
}

func TestDispatcher_ShutdownStopsDelivery(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 1))

	pub := stream.NewPublisher(b)
	sink := stream.NewMemorySink()
	d := stream.NewDispatcher(b, newTestPool(t, 2, 8), sink)

	rec := &recorder{}
	require.NoError(t, d.Subscribe("t", stream.ConsumerConfig{Group: "g"}, rec.handler()))

	require.NoError(t, pub.Publish(context.Background(), "t", mustEnvelope(t, stream.EventCreate, "1", nil)))
	assert.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	shutdownDispatcher(t, d)

	require.NoError(t, pub.Publish(context.Background(), "t", mustEnvelope(t, stream.EventCreate, "2", nil)))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "no delivery after shutdown")

	err := d.Subscribe("t", stream.ConsumerConfig{Group: "late"}, rec.handler())
	require.ErrorIs(t, err, stream.ErrDispatcherClosed)
}

package stream_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyxaxa/Product-Composite/pkg/stream"
	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

func TestBroker_TopicLifecycle(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()

	require.NoError(t, b.CreateTopic("products", 3))
	require.NoError(t, b.CreateTopic("products", 3))

	err := b.CreateTopic("products", 5)
	require.ErrorIs(t, err, stream.ErrPartitionConflict)

	n, err := b.Partitions("products")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = b.Partitions("absent")
	require.ErrorIs(t, err, stream.ErrTopicNotFound)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))

	err = b.CreateTopic("", 1)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))

	err = b.CreateTopic("bad", 0)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))
}

func TestBroker_AppendAssignsMonotonicOffsets(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 2))

	for i := 0; i < 5; i++ {
		off, err := b.Append(context.Background(), "t", 1, stream.Record{Value: []byte("v")})
		require.NoError(t, err)
		assert.Equal(t, int64(i), off)
	}

	recs, err := b.Read("t", 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for i, rec := range recs {
		assert.Equal(t, int64(i), rec.Offset)
		assert.Equal(t, "t", rec.Topic)
		assert.Equal(t, 1, rec.Partition)
		assert.False(t, rec.Time.IsZero())
	}

	recs, err = b.Read("t", 0, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = b.Append(context.Background(), "t", 7, stream.Record{})
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))
}

func TestBroker_PollBlocksUntilAppend(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 1))

	got := make(chan stream.Record, 1)
	go func() {
		rec, err := b.Poll(context.Background(), "t", 0, 0)
		if err == nil {
			got <- rec
		}
	}()

	select {
	case <-got:
		t.Fatal("poll returned before anything was appended")
	case <-time.After(30 * time.Millisecond):
	}

	_, err := b.Append(context.Background(), "t", 0, stream.Record{Value: []byte("first")})
	require.NoError(t, err)

	select {
	case rec := <-got:
		assert.Equal(t, []byte("first"), rec.Value)
		assert.Equal(t, int64(0), rec.Offset)
	case <-time.After(time.Second):
		t.Fatal("poll did not wake on append")
	}
}

func TestBroker_PollContextExpiry(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Poll(ctx, "t", 0, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBroker_CommittedOffsets(t *testing.T) {
	b := stream.NewBroker()
	defer b.Close()
	require.NoError(t, b.CreateTopic("t", 1))

	off, err := b.CommittedOffset("g", "t", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), off)

	require.NoError(t, b.CommitOffset("g", "t", 0, 4))

	off, err = b.CommittedOffset("g", "t", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), off)

	off, err = b.CommittedOffset("other", "t", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), off)
}

func TestBroker_Close(t *testing.T) {
	b := stream.NewBroker()
	require.NoError(t, b.CreateTopic("t", 1))

	_, err := b.Append(context.Background(), "t", 0, stream.Record{Value: []byte("v")})
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err = b.Append(context.Background(), "t", 0, stream.Record{Value: []byte("w")})
	require.ErrorIs(t, err, stream.ErrBrokerClosed)
	assert.True(t, errs.IsKind(err, errs.KindUnavailable))

	// Appended records stay readable so consumers can drain.
	rec, err := b.Poll(context.Background(), "t", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), rec.Value)

	_, err = b.Poll(context.Background(), "t", 0, 1)
	require.ErrorIs(t, err, stream.ErrBrokerClosed)
}

func TestBroker_PollWakesOnClose(t *testing.T) {
	b := stream.NewBroker()
	require.NoError(t, b.CreateTopic("t", 1))

	errc := make(chan error, 1)
	go func() {
		_, err := b.Poll(context.Background(), "t", 0, 0)
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-errc:
		require.ErrorIs(t, err, stream.ErrBrokerClosed)
	case <-time.After(time.Second):
		t.Fatal("poll did not wake on close")
	}
}

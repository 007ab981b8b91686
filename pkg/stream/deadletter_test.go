package stream_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyxaxa/Product-Composite/pkg/stream"
)

func TestMemorySink_AppendListDrain(t *testing.T) {
	sink := stream.NewMemorySink()

	for i := 0; i < 5; i++ {
		dl := stream.DeadLetter{
			Topic:  "t",
			Group:  "g",
			Offset: int64(i),
			Reason: stream.ReasonExhausted,
		}
		require.NoError(t, sink.Append(context.Background(), dl))
	}

	require.Equal(t, 5, sink.Len())

	listed := sink.List()
	require.Len(t, listed, 5)

	// Mutating the returned slice must not touch the sink.
	listed[0].Topic = "mangled"
	assert.Equal(t, "t", sink.List()[0].Topic)

	drained := sink.Drain(2)
	require.Len(t, drained, 2)
	assert.Equal(t, int64(0), drained[0].Offset)
	assert.Equal(t, int64(1), drained[1].Offset)
	assert.Equal(t, 3, sink.Len())

	// Draining more than is parked returns what is left.
	drained = sink.Drain(10)
	require.Len(t, drained, 3)
	assert.Equal(t, int64(2), drained[0].Offset)
	assert.Zero(t, sink.Len())

	assert.Empty(t, sink.Drain(1))
}

func TestMemorySink_ConcurrentAppends(t *testing.T) {
	sink := stream.NewMemorySink()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				dl := stream.DeadLetter{
					Topic:  "t",
					Group:  fmt.Sprintf("g-%d", n),
					Reason: stream.ReasonTerminal,
				}
				_ = sink.Append(context.Background(), dl)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 200, sink.Len())
}

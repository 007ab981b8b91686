package workerpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
	"github.com/andreyxaxa/Product-Composite/pkg/workerpool"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	pool := workerpool.New(workerpool.Workers(2), workerpool.QueueDepth(8))
	require.NoError(t, pool.Start())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(func() { ran.Add(1) }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))

	assert.Equal(t, int32(5), ran.Load())
}

func TestPool_SaturationRejectsInsteadOfQueueing(t *testing.T) {
	pool := workerpool.New(workerpool.Workers(1), workerpool.QueueDepth(1))
	require.NoError(t, pool.Start())

	gate := make(chan struct{})
	started := make(chan struct{})

	// Occupy the single worker.
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-gate
	}))
	<-started

	// Fill the queue.
	require.NoError(t, pool.Submit(func() {}))

	err := pool.Submit(func() {})
	require.ErrorIs(t, err, workerpool.ErrSaturated)
	assert.True(t, errs.IsKind(err, errs.KindSaturated))

	close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))
}

func TestPool_DoReturnsTaskError(t *testing.T) {
	pool := workerpool.New(workerpool.Workers(1), workerpool.QueueDepth(1))
	require.NoError(t, pool.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	}()

	want := errors.New("handler failed")
	err := pool.Do(context.Background(), func() error { return want })
	require.ErrorIs(t, err, want)

	require.NoError(t, pool.Do(context.Background(), func() error { return nil }))
}

func TestPool_DoContextExpiry(t *testing.T) {
	pool := workerpool.New(workerpool.Workers(1), workerpool.QueueDepth(1))
	require.NoError(t, pool.Start())

	gate := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-gate
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.Do(ctx, func() error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(gate)

	sctx, scancel := context.WithTimeout(context.Background(), time.Second)
	defer scancel()
	require.NoError(t, pool.Shutdown(sctx))
}

func TestPool_ShutdownDrainsQueue(t *testing.T) {
	pool := workerpool.New(workerpool.Workers(1), workerpool.QueueDepth(4))
	require.NoError(t, pool.Start())

	gate := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-gate
	}))
	<-started

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(func() { ran.Add(1) }))
	}

	close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))

	assert.Equal(t, int32(3), ran.Load(), "queued tasks must finish before shutdown returns")

	err := pool.Submit(func() {})
	require.ErrorIs(t, err, workerpool.ErrClosed)
}

package async

import "context"

// Future is a one-shot handle to a value produced on another goroutine.
// Completion is buffered in the future itself, so abandoning the handle
// never leaks the producing goroutine.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go starts fn on its own goroutine and returns the handle to its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	go func() {
		f.val, f.err = fn()
		close(f.done)
	}()

	return f
}

// Resolved returns an already-completed future.
func Resolved[T any](val T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: val, err: err}
	close(f.done)

	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result waits for completion or ctx expiry, whichever comes first.
// It may be called any number of times; once the future has completed
// it returns the same outcome immediately, even with an expired ctx.
func (f *Future[T]) Result(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}

	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

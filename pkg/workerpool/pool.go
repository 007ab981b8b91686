package workerpool

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

const (
	_defaultWorkers    = 4
	_defaultQueueDepth = 64
)

var (
	ErrSaturated = errs.New(errs.KindSaturated, "worker pool queue is full")
	ErrClosed    = errs.New(errs.KindUnavailable, "worker pool is closed")
)

type Task func()

// Pool runs tasks on a fixed set of workers over a fixed-depth queue.
// A full queue rejects new tasks with ErrSaturated instead of growing.
type Pool struct {
	workers    int
	queueDepth int

	mu     sync.RWMutex
	closed bool
	tasks  chan Task

	wg      sync.WaitGroup
	started atomic.Bool
}

func New(opts ...Option) *Pool {
	p := &Pool{
		workers:    _defaultWorkers,
		queueDepth: _defaultQueueDepth,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.workers <= 0 {
		p.workers = _defaultWorkers
	}
	if p.queueDepth <= 0 {
		p.queueDepth = _defaultQueueDepth
	}

	p.tasks = make(chan Task, p.queueDepth)

	return p
}

func (p *Pool) Start() error {
	if !p.started.CompareAndSwap(false, true) {
		return errs.New(errs.KindInvalidInput, "worker pool already started")
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return nil
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("workerpool - worker - recovered panic: %v", r)
		}
	}()

	task()
}

// Submit never blocks: a full queue is reported as ErrSaturated and the
// caller decides whether to shed or come back later.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errs.New(errs.KindInvalidInput, "nil task")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrSaturated
	}
}

// Do submits fn and waits for its result. Saturation surfaces immediately,
// before fn is enqueued. If ctx expires while waiting, the queued fn still
// runs eventually; its result is discarded.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)

	err := p.Submit(func() {
		res <- fn()
	})
	if err != nil {
		return err
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) QueueDepth() int {
	return len(p.tasks)
}

// Shutdown stops accepting tasks, lets workers drain the queue and waits
// for them up to ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	if !p.started.CompareAndSwap(true, false) {
		return nil
	}

	p.mu.Lock()
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

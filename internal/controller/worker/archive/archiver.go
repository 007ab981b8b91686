package archive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Product-Composite/internal/repo"
	"github.com/andreyxaxa/Product-Composite/pkg/logger"
	"github.com/andreyxaxa/Product-Composite/pkg/stream"
)

// Sink is the in-memory dead-letter buffer the dispatcher parks into.
type Sink interface {
	Append(ctx context.Context, dl stream.DeadLetter) error
	Drain(n int) []stream.DeadLetter
	Len() int
}

// Archiver periodically drains parked records into durable storage:
// postgres for querying, S3 for cold batches. A batch that fails either
// leg goes back to the sink; the postgres insert is idempotent, so the
// retry cannot duplicate rows.
type Archiver struct {
	sink   Sink
	repo   repo.DeadLetterRepo
	store  repo.ArchiveStore
	logger logger.Interface

	pollInterval time.Duration
	batchSize    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(
	sink Sink,
	dlRepo repo.DeadLetterRepo,
	store repo.ArchiveStore,
	l logger.Interface,
	pollInterval time.Duration,
	batchSize int,
) *Archiver {
	return &Archiver{
		sink:         sink,
		repo:         dlRepo,
		store:        store,
		logger:       l,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

func (r *Archiver) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("Archiver - Start - worker already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	// 1. воркер переливает пачки из памяти в долговременные стораджи
	r.worker(r.pollInterval, func() {
		r.archiveBatch(r.ctx)
	})

	return nil
}

func (r *Archiver) archiveBatch(ctx context.Context) {
	// 1. забираем пачку из памяти
	batch := r.sink.Drain(r.batchSize)
	if len(batch) == 0 {
		return
	}

	// 2. сначала postgres; повторная вставка того же батча безопасна
	if r.repo != nil {
		if err := r.repo.StoreBatch(ctx, batch); err != nil {
			r.logger.Error(err, "Archiver - archiveBatch - r.repo.StoreBatch")
			r.requeue(batch)

			return
		}
	}

	// 3. затем s3
	if r.store != nil {
		key, err := r.store.UploadBatch(ctx, batch)
		if err != nil {
			r.logger.Error(err, "Archiver - archiveBatch - r.store.UploadBatch")
			r.requeue(batch)

			return
		}

		r.logger.Info("archive: uploaded %d dead letters, key=%s", len(batch), key)
	}
}

// requeue возвращает батч в память до следующего тика.
func (r *Archiver) requeue(batch []stream.DeadLetter) {
	for _, dl := range batch {
		if err := r.sink.Append(context.Background(), dl); err != nil {
			r.logger.Error(err, "Archiver - requeue - r.sink.Append")
		}
	}
}

func (r *Archiver) worker(interval time.Duration, task func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

func (r *Archiver) Shutdown(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil
	}

	// финальный дожим остатка; если сторадж так и не ожил - остаток
	// осознанно теряем, он уже есть в логах диспетчера
	for r.sink.Len() > 0 {
		before := r.sink.Len()

		r.archiveBatch(ctx)

		if r.sink.Len() >= before {
			r.logger.Warn("archive: %d dead letters left unarchived", r.sink.Len())

			break
		}
	}

	return nil
}

// Package stream is a partitioned topic messaging core: typed envelopes,
// a publisher with bounded transport retries, hash-based partition routing
// with same-key FIFO, consumer groups with exclusive partition ownership,
// and a retry/dead-letter engine with exponential backoff.
package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

// Log is the append side of a partitioned topic store.
type Log interface {
	Partitions(topic string) (int, error)
	Append(ctx context.Context, topic string, partition int, rec Record) (int64, error)
}

// Source is the consume side of a partitioned topic store.
type Source interface {
	Partitions(topic string) (int, error)
	Poll(ctx context.Context, topic string, partition int, offset int64) (Record, error)
	NextOffset(topic string, partition int) (int64, error)
	CommitOffset(group, topic string, partition int, offset int64) error
	CommittedOffset(group, topic string, partition int) (int64, error)
}

// Broker is the in-memory binder: named topics over append-only partition
// logs with monotonic offsets, plus committed read positions per consumer
// group. Partition counts are fixed at topic creation.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]*topic
	closed bool

	offMu   sync.RWMutex
	offsets map[groupKey]int64
}

type topic struct {
	partitions []*partitionLog
}

type partitionLog struct {
	mu      sync.Mutex
	records []Record
	notify  chan struct{}
}

type groupKey struct {
	group     string
	topic     string
	partition int
}

var (
	_ Log    = (*Broker)(nil)
	_ Source = (*Broker)(nil)
)

func NewBroker() *Broker {
	return &Broker{
		topics:  make(map[string]*topic),
		offsets: make(map[groupKey]int64),
	}
}

// CreateTopic registers a topic with a fixed partition count. Re-creating
// with the same count is a no-op; a different count is rejected.
func (b *Broker) CreateTopic(name string, partitions int) error {
	if name == "" {
		return errs.New(errs.KindInvalidInput, "Broker - CreateTopic - empty topic name")
	}
	if partitions < 1 {
		return errs.Newf(errs.KindInvalidInput, "Broker - CreateTopic - partition count %d < 1", partitions)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}

	if existing, ok := b.topics[name]; ok {
		if len(existing.partitions) != partitions {
			return fmt.Errorf("Broker - CreateTopic - %q: %w", name, ErrPartitionConflict)
		}

		return nil
	}

	t := &topic{partitions: make([]*partitionLog, partitions)}
	for i := range t.partitions {
		t.partitions[i] = &partitionLog{notify: make(chan struct{})}
	}
	b.topics[name] = t

	return nil
}

func (b *Broker) Partitions(name string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.topics[name]
	if !ok {
		return 0, fmt.Errorf("Broker - Partitions - %q: %w", name, ErrTopicNotFound)
	}

	return len(t.partitions), nil
}

func (b *Broker) partition(name string, partition int) (*partitionLog, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.topics[name]
	if !ok {
		return nil, fmt.Errorf("Broker - partition - %q: %w", name, ErrTopicNotFound)
	}

	if partition < 0 || partition >= len(t.partitions) {
		return nil, errs.Newf(errs.KindInvalidInput, "Broker - partition - %d out of range for topic %q", partition, name)
	}

	return t.partitions[partition], nil
}

// Append writes rec to the partition log and returns the assigned offset.
// The record is visible to pollers once Append returns.
func (b *Broker) Append(ctx context.Context, name string, partition int, rec Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return 0, ErrBrokerClosed
	}

	p, err := b.partition(name, partition)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	offset := int64(len(p.records))
	rec.Topic = name
	rec.Partition = partition
	rec.Offset = offset
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	p.records = append(p.records, rec)
	notify := p.notify
	p.notify = make(chan struct{})
	p.mu.Unlock()

	// Wake every blocked poller; each re-checks its own position.
	close(notify)

	return offset, nil
}

// Poll returns the record at offset, blocking until it is appended, ctx
// expires or the broker closes. Records already appended stay readable
// after Close so consumers can drain.
func (b *Broker) Poll(ctx context.Context, name string, partition int, offset int64) (Record, error) {
	p, err := b.partition(name, partition)
	if err != nil {
		return Record{}, err
	}

	if offset < 0 {
		offset = 0
	}

	for {
		p.mu.Lock()
		if offset < int64(len(p.records)) {
			rec := p.records[offset]
			p.mu.Unlock()

			return rec, nil
		}
		notify := p.notify
		p.mu.Unlock()

		b.mu.RLock()
		closed := b.closed
		b.mu.RUnlock()
		if closed {
			return Record{}, ErrBrokerClosed
		}

		select {
		case <-notify:
		case <-ctx.Done():
			return Record{}, ctx.Err()
		}
	}
}

// Read returns up to max records starting at offset; max <= 0 means all
// available. It never blocks.
func (b *Broker) Read(name string, partition int, offset int64, max int) ([]Record, error) {
	p, err := b.partition(name, partition)
	if err != nil {
		return nil, err
	}

	if offset < 0 {
		offset = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if offset >= int64(len(p.records)) {
		return nil, nil
	}

	out := p.records[offset:]
	if max > 0 && max < len(out) {
		out = out[:max]
	}

	res := make([]Record, len(out))
	copy(res, out)

	return res, nil
}

// NextOffset is the offset the next Append will take.
func (b *Broker) NextOffset(name string, partition int) (int64, error) {
	p, err := b.partition(name, partition)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return int64(len(p.records)), nil
}

// CommitOffset records the next offset the group will consume from the
// partition. Positions are independent across groups.
func (b *Broker) CommitOffset(group, name string, partition int, offset int64) error {
	if _, err := b.partition(name, partition); err != nil {
		return err
	}

	b.offMu.Lock()
	defer b.offMu.Unlock()

	b.offsets[groupKey{group: group, topic: name, partition: partition}] = offset

	return nil
}

// CommittedOffset returns the group's next offset for the partition, or -1
// when the group has never committed.
func (b *Broker) CommittedOffset(group, name string, partition int) (int64, error) {
	if _, err := b.partition(name, partition); err != nil {
		return 0, err
	}

	b.offMu.RLock()
	defer b.offMu.RUnlock()

	if off, ok := b.offsets[groupKey{group: group, topic: name, partition: partition}]; ok {
		return off, nil
	}

	return -1, nil
}

// Close fails subsequent appends with Unavailable and wakes blocked pollers.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()

		return nil
	}
	b.closed = true

	var logs []*partitionLog
	for _, t := range b.topics {
		logs = append(logs, t.partitions...)
	}
	b.mu.Unlock()

	for _, p := range logs {
		p.mu.Lock()
		notify := p.notify
		p.notify = make(chan struct{})
		p.mu.Unlock()

		close(notify)
	}

	return nil
}

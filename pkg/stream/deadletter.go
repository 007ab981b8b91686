package stream

import (
	"context"
	"sync"
	"time"
)

const (
	ReasonExhausted = "exhausted"
	ReasonTerminal  = "terminal"
	ReasonMalformed = "malformed"
)

// DeadLetter is the terminal record of a failed delivery. The envelope bytes
// are carried verbatim in Value; nothing is re-injected automatically.
type DeadLetter struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Group     string
	Reason    string
	Attempts  int
	LastError string
	ParkedAt  time.Time
}

// Sink is the append-only dead-letter store. Implementations must be safe
// for concurrent writers across partitions.
type Sink interface {
	Append(ctx context.Context, dl DeadLetter) error
}

// MemorySink retains dead letters in memory for out-of-band consumption.
type MemorySink struct {
	mu     sync.Mutex
	parked []DeadLetter
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, dl DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.parked = append(s.parked, dl)

	return nil
}

func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.parked)
}

// List returns a copy of everything parked, oldest first.
func (s *MemorySink) List() []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DeadLetter, len(s.parked))
	copy(out, s.parked)

	return out
}

// Drain removes and returns up to n of the oldest dead letters.
func (s *MemorySink) Drain(n int) []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || len(s.parked) == 0 {
		return nil
	}

	if n > len(s.parked) {
		n = len(s.parked)
	}

	out := make([]DeadLetter, n)
	copy(out, s.parked[:n])
	s.parked = append(s.parked[:0:0], s.parked[n:]...)

	return out
}

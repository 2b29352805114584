package ledger

import (
	"fmt"
	"sync"
	"time"
)

// RefSequence issues reference numbers of the form "<PREFIX>-<YYMM>-<NNNN>",
// with the counter restarting each month per prefix.
type RefSequence struct {
	mu     sync.Mutex
	counts map[string]int
	clock  func() time.Time
}

// RefSequenceOption configures RefSequence behaviour.
type RefSequenceOption func(*RefSequence)

// WithRefClock overrides the time source, primarily for tests.
func WithRefClock(clock func() time.Time) RefSequenceOption {
	return func(s *RefSequence) {
		s.clock = clock
	}
}

// NewRefSequence initialises an empty sequence.
func NewRefSequence(opts ...RefSequenceOption) *RefSequence {
	s := &RefSequence{
		counts: make(map[string]int),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next issues the next reference number under the prefix, e.g. "QCF-2608-0001".
func (s *RefSequence) Next(prefix string) string {
	month := s.clock().Format("0601")
	bucket := prefix + "-" + month

	s.mu.Lock()
	s.counts[bucket]++
	n := s.counts[bucket]
	s.mu.Unlock()

	return fmt.Sprintf("%s-%04d", bucket, n)
}

// Package nonce issues strictly increasing nonces for signed venue actions.
package nonce

import (
	"sync"
	"time"
)

// Source produces millisecond nonces that never repeat and never go backwards,
// even when two actions are signed within the same millisecond. The venue
// rejects a nonce it has already seen from the same signer, so each signer owns
// exactly one Source.
type Source struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewSource creates a Source backed by the wall clock.
func NewSource() *Source {
	return &Source{now: time.Now}
}

// NewSourceWithClock creates a Source with an injected clock, for tests.
func NewSourceWithClock(now func() time.Time) *Source {
	return &Source{now: now}
}

// Next returns the next nonce. The value tracks wall-clock milliseconds but is
// bumped past the last issued value whenever the clock has not advanced.
func (s *Source) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.now().UnixMilli()
	if n <= s.last {
		n = s.last + 1
	}
	s.last = n
	return n
}

// Last returns the most recently issued nonce, or zero if none was issued.
func (s *Source) Last() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

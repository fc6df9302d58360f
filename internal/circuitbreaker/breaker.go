// Package circuitbreaker guards the REST pipeline against a persistently failing venue.
package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the breaker's current mode.
type State int32

const (
	// StateClosed passes requests through and counts failures.
	StateClosed State = iota
	// StateOpen rejects requests until the cool-down elapses.
	StateOpen
	// StateHalfOpen lets probe requests through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config holds breaker thresholds.
type Config struct {
	// FailThreshold is the number of consecutive failures that opens the breaker.
	FailThreshold int `json:"fail_threshold"`
	// SuccessThreshold is the number of probe successes that closes it again.
	SuccessThreshold int `json:"success_threshold"`
	// Timeout is the cool-down before an open breaker admits probes.
	Timeout time.Duration `json:"timeout"`
}

// Breaker is a consecutive-failure circuit breaker. It is safe for concurrent use.
type Breaker struct {
	state        atomic.Int32
	failures     atomic.Int32
	successes    atomic.Int32
	lastFailTime atomic.Int64
	config       Config
	mu           sync.Mutex
}

// New creates a closed Breaker with the given thresholds.
func New(config Config) *Breaker {
	b := &Breaker{config: config}
	b.state.Store(int32(StateClosed))
	return b
}

// Allow reports whether a request may proceed. An open breaker transitions to
// half-open once the cool-down has elapsed.
func (b *Breaker) Allow() bool {
	switch State(b.state.Load()) {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		lastFail := time.Unix(0, b.lastFailTime.Load())
		if time.Since(lastFail) >= b.config.Timeout {
			b.mu.Lock()
			if State(b.state.Load()) == StateOpen {
				b.state.Store(int32(StateHalfOpen))
				b.successes.Store(0)
			}
			b.mu.Unlock()
			return true
		}
		return false
	}
	return false
}

// Record feeds the outcome of a request into the breaker.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch State(b.state.Load()) {
	case StateClosed:
		if success {
			b.failures.Store(0)
			return
		}
		if int(b.failures.Add(1)) >= b.config.FailThreshold {
			b.lastFailTime.Store(time.Now().UnixNano())
			b.state.Store(int32(StateOpen))
		}
	case StateHalfOpen:
		if !success {
			b.lastFailTime.Store(time.Now().UnixNano())
			b.state.Store(int32(StateOpen))
			b.successes.Store(0)
			return
		}
		if int(b.successes.Add(1)) >= b.config.SuccessThreshold {
			b.state.Store(int32(StateClosed))
			b.failures.Store(0)
			b.successes.Store(0)
		}
	case StateOpen:
		if !success {
			b.lastFailTime.Store(time.Now().UnixNano())
		}
	}
}

// State returns the breaker's current mode.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Reset forces the breaker closed and clears counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Store(int32(StateClosed))
	b.failures.Store(0)
	b.successes.Store(0)
}

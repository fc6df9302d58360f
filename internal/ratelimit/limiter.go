// Package ratelimit provides a weighted token-bucket limiter for API request budgets.
package ratelimit

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ErrWeightExceedsCapacity is returned when a caller requests more weight than the
// bucket can ever hold. Waiting would never succeed, so the call fails immediately.
var ErrWeightExceedsCapacity = errors.New("requested weight exceeds bucket capacity")

// Limiter is a weighted token bucket. Each request consumes a caller-supplied
// weight; tokens refill continuously in proportion to elapsed time, capped at
// the bucket capacity. Concurrent waiters drain the shared pool independently.
type Limiter struct {
	bucket   *rate.Limiter
	capacity atomic.Int64
	metrics  *Metrics
}

// Metrics tracks statistics about limiter usage.
type Metrics struct {
	totalAcquires   atomic.Int64
	grantedAcquires atomic.Int64
	deniedAcquires  atomic.Int64
	weightGranted   atomic.Int64
}

// New creates a Limiter that refills capacity tokens per period, holding at most
// capacity tokens. The bucket starts full.
func New(capacity int, period time.Duration) *Limiter {
	tps := float64(capacity) / period.Seconds()
	l := &Limiter{
		bucket:  rate.NewLimiter(rate.Limit(tps), capacity),
		metrics: &Metrics{},
	}
	l.capacity.Store(int64(capacity))
	return l
}

// Acquire blocks until weight tokens are available or the context is cancelled.
// Requesting more than the bucket capacity is a programming error and fails
// immediately with ErrWeightExceedsCapacity rather than waiting forever.
func (l *Limiter) Acquire(ctx context.Context, weight int) error {
	l.metrics.totalAcquires.Add(1)
	if int64(weight) > l.capacity.Load() {
		l.metrics.deniedAcquires.Add(1)
		return ErrWeightExceedsCapacity
	}
	if weight <= 0 {
		weight = 1
	}
	if err := l.bucket.WaitN(ctx, weight); err != nil {
		l.metrics.deniedAcquires.Add(1)
		return err
	}
	l.metrics.grantedAcquires.Add(1)
	l.metrics.weightGranted.Add(int64(weight))
	return nil
}

// TryAcquire reports whether weight tokens were available immediately.
func (l *Limiter) TryAcquire(weight int) bool {
	l.metrics.totalAcquires.Add(1)
	if int64(weight) > l.capacity.Load() || weight <= 0 {
		l.metrics.deniedAcquires.Add(1)
		return false
	}
	if !l.bucket.AllowN(time.Now(), weight) {
		l.metrics.deniedAcquires.Add(1)
		return false
	}
	l.metrics.grantedAcquires.Add(1)
	l.metrics.weightGranted.Add(int64(weight))
	return true
}

// Capacity returns the maximum number of tokens the bucket can hold.
func (l *Limiter) Capacity() int {
	return int(l.capacity.Load())
}

// SetLimit replaces the refill rate and capacity. Safe to call while other
// goroutines are acquiring.
func (l *Limiter) SetLimit(capacity int, period time.Duration) {
	l.capacity.Store(int64(capacity))
	tps := float64(capacity) / period.Seconds()
	l.bucket.SetLimit(rate.Limit(tps))
	l.bucket.SetBurst(capacity)
}

// Metrics returns a snapshot of the current limiter statistics.
func (l *Limiter) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalAcquires:   l.metrics.totalAcquires.Load(),
		GrantedAcquires: l.metrics.grantedAcquires.Load(),
		DeniedAcquires:  l.metrics.deniedAcquires.Load(),
		WeightGranted:   l.metrics.weightGranted.Load(),
	}
}

// MetricsSnapshot is a point-in-time capture of limiter statistics.
type MetricsSnapshot struct {
	// TotalAcquires is the total number of acquire attempts.
	TotalAcquires int64
	// GrantedAcquires is the number of acquires that obtained tokens.
	GrantedAcquires int64
	// DeniedAcquires is the number of acquires that failed or were cancelled.
	DeniedAcquires int64
	// WeightGranted is the cumulative weight handed out.
	WeightGranted int64
}

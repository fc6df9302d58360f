package nonce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSource_Next_Monotonic(t *testing.T) {
	source := NewSource()

	prev := source.Next()
	for i := 0; i < 1000; i++ {
		n := source.Next()
		assert.Greater(t, n, prev, "nonce must strictly increase")
		prev = n
	}
}

func TestSource_Next_FrozenClock(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	source := NewSourceWithClock(func() time.Time { return fixed })

	assert.Equal(t, int64(1700000000000), source.Next())
	assert.Equal(t, int64(1700000000001), source.Next())
	assert.Equal(t, int64(1700000000002), source.Next())
}

func TestSource_Next_ClockGoingBackwards(t *testing.T) {
	ms := int64(1700000000000)
	source := NewSourceWithClock(func() time.Time { return time.UnixMilli(ms) })

	first := source.Next()
	ms -= 5000
	second := source.Next()

	assert.Greater(t, second, first, "nonce must not follow a backwards clock")
}

func TestSource_Next_Concurrent(t *testing.T) {
	source := NewSource()

	const goroutines = 16
	const perGoroutine = 200

	var wg sync.WaitGroup
	results := make(chan int64, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				results <- source.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]struct{}, goroutines*perGoroutine)
	for n := range results {
		_, dup := seen[n]
		assert.False(t, dup, "nonce %d issued twice", n)
		seen[n] = struct{}{}
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestSource_Last(t *testing.T) {
	source := NewSource()
	assert.Zero(t, source.Last())

	n := source.Next()
	assert.Equal(t, n, source.Last())
}

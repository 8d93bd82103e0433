package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_ResetReplaysSeqs(t *testing.T) {
	for _, start := range []int64{0, 40} {
		clock := NewDeterministicClockAt(start)
		assert.Equal(t, start, clock.Current())

		first := []int64{clock.Next(), clock.Next(), clock.Next()}
		assert.Equal(t, []int64{start + 1, start + 2, start + 3}, first)

		clock.Reset()
		assert.Equal(t, start, clock.Current())
		assert.Equal(t, first, []int64{clock.Next(), clock.Next(), clock.Next()})
	}
}

func TestDeterministicClock_ConcurrentScenarios(t *testing.T) {
	// Scenarios sharing one clock under --jobs must never reuse a seq.
	clock := NewDeterministicClockAt(100)
	const scenarios, events = 8, 50

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for range scenarios {
		wg.Go(func() {
			for range events {
				seq := clock.Next()
				mu.Lock()
				assert.False(t, seen[seq], "seq %d handed out twice", seq)
				seen[seq] = true
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	assert.Len(t, seen, scenarios*events)
	assert.Equal(t, int64(100+scenarios*events), clock.Current())
}

package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/luma/internal/refs"
)

func TestFrameClock_StartsAtEpoch(t *testing.T) {
	clock := NewFrameClock(100 * time.Millisecond)
	assert.Equal(t, int64(0), clock.Frames())
	assert.Equal(t, Epoch, clock.Next())
}

func TestFrameClock_NextAdvancesByStep(t *testing.T) {
	clock := NewFrameClock(100 * time.Millisecond)

	assert.Equal(t, Epoch, clock.Next())
	assert.Equal(t, Epoch.Add(100*time.Millisecond), clock.Next())
	assert.Equal(t, Epoch.Add(200*time.Millisecond), clock.Next())
	assert.Equal(t, int64(3), clock.Frames())
}

func TestFrameClock_Advance(t *testing.T) {
	clock := NewFrameClock(100 * time.Millisecond)
	clock.Next()
	clock.Advance(time.Second)

	assert.Equal(t, Epoch.Add(1100*time.Millisecond), clock.Next())
}

func TestFrameClock_Reset(t *testing.T) {
	clock := NewFrameClock(time.Second)
	clock.Next()
	clock.Next()

	clock.Reset()
	assert.Equal(t, int64(0), clock.Frames())
	assert.Equal(t, Epoch, clock.Next())
}

func TestFrameClock_ThreadSafe(t *testing.T) {
	clock := NewFrameClock(time.Millisecond)
	const numGoroutines = 50
	const callsPerGoroutine = 20

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[time.Time]bool)
	)
	wg.Add(numGoroutines)
	for range numGoroutines {
		go func() {
			defer wg.Done()
			for range callsPerGoroutine {
				ts := clock.Next()
				mu.Lock()
				seen[ts] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, numGoroutines*callsPerGoroutine, "every frame time is unique")
}

func TestSequentialGenerator(t *testing.T) {
	var gen refs.NameGenerator = NewSequentialGenerator("img")
	assert.Equal(t, "img-1", gen.Generate())
	assert.Equal(t, "img-2", gen.Generate())

	assert.Equal(t, "ref-1", NewSequentialGenerator("").Generate())
}

func TestSequentialGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequentialGenerator("t")

	var wg sync.WaitGroup
	names := make(chan string, 1000)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				names <- gen.Generate()
			}
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]bool)
	for n := range names {
		assert.False(t, seen[n], "duplicate name %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, 1000)
}

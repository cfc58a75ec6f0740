package testutil

import (
	"sync"
	"time"
)

// Epoch is the wall time of the first frame produced by a FrameClock.
var Epoch = time.Unix(1_700_000_000, 0).UTC()

// FrameClock hands out frame times at a fixed interval for tests.
//
// Unlike a real camera, FrameClock never drifts: the n-th call to Next
// returns Epoch + (n-1)*step plus any Advance. Two runs over the same scenario therefore
// see identical clock facts and memory expiry.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FrameClock struct {
	mu   sync.Mutex
	step time.Duration
	skip time.Duration
	n    int64
}

// NewFrameClock creates a clock advancing by step per frame.
//
// The first call to Next() returns Epoch.
func NewFrameClock(step time.Duration) *FrameClock {
	return &FrameClock{step: step}
}

// Next returns the time of the next frame.
func (c *FrameClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Epoch.Add(time.Duration(c.n)*c.step + c.skip)
	c.n++
	return t
}

// Advance skips d without producing a frame.
func (c *FrameClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skip += d
}

// Frames returns how many frame times have been handed out.
func (c *FrameClock) Frames() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock to Epoch.
//
// Used for test reuse. After Reset(), the next call to Next() returns Epoch.
func (c *FrameClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
	c.skip = 0
}

package engine

import "sync/atomic"

// Clock stamps facts with a strictly increasing insertion ordinal.
//
// Facts are ordered by Seq rather than wall-clock time so that two runs over
// the same inputs list facts in the same order. The store resets its clock on
// every Clear, so ordinals are scoped to one frame.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations), though
// only the goroutine that owns the store calls Next in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next ordinal is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next ordinal.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last ordinal handed out without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Reset rewinds the clock so the next ordinal is 1.
func (c *Clock) Reset() {
	c.seq.Store(0)
}

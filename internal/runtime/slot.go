package runtime

import (
	"context"
	"errors"
	"sync"
)

// ErrSlotClosed is returned by Take once the slot is closed and drained.
var ErrSlotClosed = errors.New("frame slot closed")

// FrameSlot is a depth-1 handoff between a frame producer and the frame
// loop. Offer never blocks: a frame that the loop has not taken yet is
// replaced by the newer one, so the loop always processes the latest frame.
//
// Thread-safety: Offer and Close may be called from any goroutine while the
// loop calls Take.
//
// The signal channel (buffered, size 1) enables context-aware waiting in
// Take.
type FrameSlot struct {
	mu      sync.Mutex
	frame   Frame
	full    bool
	closed  bool
	dropped int
	signal  chan struct{}
}

// NewFrameSlot creates an empty slot.
func NewFrameSlot() *FrameSlot {
	return &FrameSlot{signal: make(chan struct{}, 1)}
}

// Offer stores f, replacing any frame not yet taken. Returns false if the
// slot is closed.
func (s *FrameSlot) Offer(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if s.full {
		s.dropped++
	}
	s.frame = f
	s.full = true

	select {
	case s.signal <- struct{}{}:
	default:
	}
	return true
}

// TryTake returns the pending frame without blocking.
func (s *FrameSlot) TryTake() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.full {
		return Frame{}, false
	}
	f := s.frame
	s.frame = Frame{}
	s.full = false
	return f, true
}

// Take blocks until a frame is available, the slot is closed and drained
// (ErrSlotClosed), or ctx is done.
func (s *FrameSlot) Take(ctx context.Context) (Frame, error) {
	for {
		if f, ok := s.TryTake(); ok {
			return f, nil
		}

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Frame{}, ErrSlotClosed
		}

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-s.signal:
		}
	}
}

// Dropped returns how many frames were replaced before being taken.
func (s *FrameSlot) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close signals that no more frames will be offered. A pending frame can
// still be taken.
func (s *FrameSlot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.signal)
}

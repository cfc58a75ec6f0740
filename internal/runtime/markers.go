package runtime

import (
	"slices"
	"sync"
	"time"

	"github.com/roach88/luma/internal/ir"
)

// CachedMarker is a marker as remembered between frames.
type CachedMarker struct {
	Marker
	FirstSeen time.Time
	LastSeen  time.Time
}

// MarkerCache keeps recently seen markers so that a marker missing from a
// few frames does not make its program vanish.
//
// Smoothing: when every corner of a re-observed marker moved by at most
// delta on both axes, the previous corners are kept. Small detection jitter
// then produces identical region facts frame after frame.
//
// Thread-safety: MarkerCache is safe for concurrent use.
type MarkerCache struct {
	mu      sync.Mutex
	delta   float64
	markers map[int]*CachedMarker
}

// NewMarkerCache creates a cache with the given smoothing delta.
func NewMarkerCache(delta float64) *MarkerCache {
	return &MarkerCache{
		delta:   delta,
		markers: make(map[int]*CachedMarker),
	}
}

// Observe records the markers detected at now.
func (c *MarkerCache) Observe(now time.Time, markers []Marker) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range markers {
		cached, ok := c.markers[m.ID]
		if !ok {
			c.markers[m.ID] = &CachedMarker{Marker: m, FirstSeen: now, LastSeen: now}
			continue
		}
		if moved(cached.Corners, m.Corners, c.delta) {
			cached.Corners = m.Corners
		}
		cached.LastSeen = now
	}
}

// Sweep evicts markers not seen within keep of now and returns how many
// were evicted.
func (c *MarkerCache) Sweep(now time.Time, keep time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for id, m := range c.markers {
		if now.Sub(m.LastSeen) > keep {
			delete(c.markers, id)
			evicted++
		}
	}
	return evicted
}

// Present returns the cached markers sorted by id.
func (c *MarkerCache) Present() []CachedMarker {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]CachedMarker, 0, len(c.markers))
	for _, m := range c.markers {
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b CachedMarker) int { return a.ID - b.ID })
	return out
}

// Corners returns the cached corners for id.
func (c *MarkerCache) Corners(id int) ([4]ir.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.markers[id]
	if !ok {
		return [4]ir.Point{}, false
	}
	return m.Corners, true
}

// Len returns the number of cached markers.
func (c *MarkerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.markers)
}

package refs

import (
	"sync"

	"github.com/google/uuid"
)

// NameGenerator produces unique reference names.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type NameGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 names.
//
// UUIDv7 embeds a timestamp in the most significant bits, so names sort by
// creation time, which keeps journal dumps readable.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined names for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu    sync.Mutex
	names []string
	idx   int
}

// NewFixedGenerator creates a generator that returns names in order.
//
// Example:
//
//	gen := NewFixedGenerator("img-1", "img-2")
//	gen.Generate() // "img-1"
//	gen.Generate() // "img-2"
//	gen.Generate() // panic: all names exhausted
func NewFixedGenerator(names ...string) *FixedGenerator {
	return &FixedGenerator{names: names}
}

// Generate returns the next predetermined name.
//
// Panics if all names have been consumed, so a test that creates more
// references than it declared fails loudly.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.names) {
		panic("FixedGenerator: all names exhausted")
	}
	name := g.names[g.idx]
	g.idx++
	return name
}

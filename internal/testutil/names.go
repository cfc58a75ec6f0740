package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator generates reference names "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario produces byte-identical fact dumps even when programs
// create references. Unlike refs.FixedGenerator it never runs out.
//
// Implements refs.NameGenerator.
//
// Thread-safety: SequentialGenerator is safe for concurrent use via internal mutex.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator for prefix.
//
// If prefix is empty, names are "ref-1", "ref-2", ...
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "ref"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next name.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/luma/internal/refs"
)

// Bank holds one Store per owner, loading each from disk on first use.
//
// Thread-safety: Bank is safe for concurrent use.
type Bank struct {
	mu     sync.Mutex
	dir    string
	stores map[int]*Store
	opts   []Option
	logger *slog.Logger
}

// NewBank creates a bank persisting to dir. An empty dir disables
// persistence.
func NewBank(dir string, registry *refs.Registry, logger *slog.Logger, opts ...Option) *Bank {
	if logger == nil {
		logger = slog.Default()
	}
	if registry != nil {
		opts = append([]Option{WithRegistry(registry)}, opts...)
	}
	return &Bank{
		dir:    dir,
		stores: make(map[int]*Store),
		opts:   opts,
		logger: logger,
	}
}

// For returns the owner's store, creating and loading it if needed. Load
// failures are logged; whatever parsed still loads.
func (b *Bank) For(owner int) *Store {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.stores[owner]; ok {
		return s
	}
	s := NewStore(owner, b.opts...)
	if b.dir != "" {
		loaded, err := s.Load(b.dir)
		if err != nil {
			b.logger.Warn("memory load failed", "owner", owner, "error", err)
		}
		if len(loaded) > 0 {
			b.logger.Debug("memories loaded", "owner", owner, "count", len(loaded))
		}
	}
	b.stores[owner] = s
	return s
}

// Owners returns the ids with a store, sorted.
func (b *Bank) Owners() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int, 0, len(b.stores))
	for id := range b.stores {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SaveAll saves every dirty store.
func (b *Bank) SaveAll() error {
	if b.dir == "" {
		return nil
	}
	var errs []error
	for _, id := range b.Owners() {
		if err := b.For(id).Save(b.dir); err != nil {
			errs = append(errs, fmt.Errorf("owner %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

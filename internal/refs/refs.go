// Package refs holds values that facts refer to by token instead of by
// content: images, source listings, large JSON blobs.
//
// A token is the string "ref <name>". Programs embed it in a string literal
// ('ref 0192...') and other programs resolve it back to the value. Frame
// references are dropped whenever the fact store is cleared; session
// references live until the process exits.
package refs

import (
	"strings"
	"sync"

	"github.com/roach88/luma/internal/ir"
)

// Lifetime controls when a reference is dropped.
type Lifetime int

const (
	// Frame references are dropped by ClearFrame.
	Frame Lifetime = iota + 1
	// Session references survive ClearFrame.
	Session
)

func (l Lifetime) String() string {
	switch l {
	case Frame:
		return "frame"
	case Session:
		return "session"
	default:
		return "unknown"
	}
}

// Pin is a detached copy of a registry entry. Holding a Pin keeps a value
// alive across frame clears; Restore puts it back.
type Pin struct {
	Name     string
	Value    any
	Lifetime Lifetime
}

type entry struct {
	value    any
	lifetime Lifetime
}

// Registry maps reference names to values.
//
// Thread-safety: Registry is safe for concurrent use; program units create
// and resolve references from their own goroutines.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	names   NameGenerator
}

// NewRegistry creates an empty registry. A nil generator means UUIDv7 names.
func NewRegistry(names NameGenerator) *Registry {
	if names == nil {
		names = UUIDv7Generator{}
	}
	return &Registry{entries: make(map[string]entry), names: names}
}

// Create stores value and returns its token.
func (r *Registry) Create(lifetime Lifetime, value any) string {
	name := r.names.Generate()
	r.mu.Lock()
	r.entries[name] = entry{value: value, lifetime: lifetime}
	r.mu.Unlock()
	return Token(name)
}

// Lookup returns the value behind a token (or bare name).
func (r *Registry) Lookup(token string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[Name(token)]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set replaces the value behind an existing token. It reports false if the
// token is unknown.
func (r *Registry) Set(token string, value any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := Name(token)
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.value = value
	r.entries[name] = e
	return true
}

// Pin returns a detached copy of the entry behind token.
func (r *Registry) Pin(token string) (Pin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name := Name(token)
	e, ok := r.entries[name]
	if !ok {
		return Pin{}, false
	}
	return Pin{Name: name, Value: e.value, Lifetime: e.lifetime}, true
}

// Restore re-registers pinned entries, overwriting any current value.
func (r *Registry) Restore(pins ...Pin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pins {
		r.entries[p.Name] = entry{value: p.Value, lifetime: p.Lifetime}
	}
}

// ClearFrame drops every Frame reference.
func (r *Registry) ClearFrame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		if e.lifetime == Frame {
			delete(r.entries, name)
		}
	}
}

// Len returns the number of live references.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Resolve returns the value behind token as a T.
func Resolve[T any](r *Registry, token string) (T, bool) {
	var zero T
	v, ok := r.Lookup(token)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// ResolveBinding resolves the reference bound to name.
func ResolveBinding[T any](r *Registry, b ir.Binding, name string) (T, bool) {
	token, ok := b.Ref(name)
	if !ok {
		var zero T
		return zero, false
	}
	return Resolve[T](r, token)
}

// Token returns the token for a reference name.
func Token(name string) string {
	return ir.RefPrefix + name
}

// Name strips the token prefix, if present.
func Name(token string) string {
	return strings.TrimPrefix(token, ir.RefPrefix)
}

// IsToken reports whether s is a reference token.
func IsToken(s string) bool {
	return strings.HasPrefix(s, ir.RefPrefix) && len(s) > len(ir.RefPrefix)
}

// Tokens returns the reference tokens carried by string literals in a
// clause, including its optional sub-clauses.
func Tokens(c ir.Clause) []string {
	var out []string
	for _, t := range c.Terms {
		if t.Kind == ir.TermStringLiteral && IsToken(t.Value) {
			out = append(out, t.Value)
		}
	}
	for _, opt := range c.Optional {
		out = append(out, Tokens(opt)...)
	}
	return out
}

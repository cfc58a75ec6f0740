// Package memory keeps facts alive beyond the frame that asserted them.
//
// Every frame starts from an empty fact store, so a program that wants a
// fact to persist remembers it. Each frame the runtime recalls the owner's
// memories and asserts them again. Lifetime is chosen by an optional
// sub-clause on the remembered fact:
//
//	(you) is saving [for (5) seconds]   expires 5 seconds after remembering
//	(you) is saving [for this session]  kept in memory, never written to disk
//	(you) is saving                     permanent, written to <owner>.mem
package memory

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/roach88/luma/internal/engine"
	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/parse"
	"github.com/roach88/luma/internal/refs"
)

// FileSuffix is appended to the owner id to name its memory file.
const FileSuffix = ".mem"

const sessionRelation = "for this session"

// expiryPattern binds the seconds of a "[for (N) seconds]" sub-clause.
var expiryPattern = mustPattern("for /seconds/ seconds")

func mustPattern(text string) ir.Clause {
	rule, err := parse.ParseRule(-1, text)
	if err != nil {
		panic(fmt.Sprintf("memory: bad built-in pattern %q: %v", text, err))
	}
	return rule.Clause()
}

// Policy is how long a memory lasts.
type Policy struct {
	// Timed is set by a "for (N) seconds" sub-clause.
	Timed bool
	// TTL is the relative lifetime of a timed memory. Zero expires it at
	// once: it is recalled one last time and then dropped.
	TTL time.Duration
	// Session memories are never written to disk.
	Session bool
}

// Permanent reports whether the memory is persisted.
func (p Policy) Permanent() bool {
	return !p.Timed && !p.Session
}

// PolicyOf derives the policy from a fact's optional sub-clauses. The first
// "for (N) seconds" sub-clause sets the TTL, with zero, negative and
// unparsable counts meaning already expired and +Inf meaning no expiry;
// "for this session" marks the memory session-only.
func PolicyOf(fact ir.Statement) Policy {
	var p Policy
	for _, opt := range fact.Clause().Optional {
		if opt.Relation() == sessionRelation {
			p.Session = true
		}
		b, err := engine.Unify(expiryPattern, opt)
		if err != nil || !b.Has("seconds") {
			continue
		}
		secs := b.Float("seconds")
		if math.IsInf(secs, 1) {
			break
		}
		p.Timed = true
		if secs > 0 {
			p.TTL = time.Duration(secs * float64(time.Second))
		}
		break
	}
	return p
}

// Memory is one remembered fact.
type Memory struct {
	Fact    ir.Statement
	Policy  Policy
	Expires time.Time // Zero unless the policy is timed
	pins    []refs.Pin
}

// Expired reports whether the memory has expired at now.
func (m *Memory) Expired(now time.Time) bool {
	return !m.Expires.IsZero() && now.After(m.Expires)
}

// Store holds the memories of one owner.
//
// Thread-safety: Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	owner    int
	memories []*Memory // Remember order
	dirty    bool
	refs     *refs.Registry
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRegistry lets memories pin the references their facts carry.
func WithRegistry(r *refs.Registry) Option {
	return func(s *Store) {
		s.refs = r
	}
}

// WithNow sets the clock used to compute expiry times.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store for owner.
func NewStore(owner int, opts ...Option) *Store {
	s := &Store{owner: owner, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Owner returns the owning program id.
func (s *Store) Owner() int {
	return s.owner
}

// Remember stores fact under the policy its optional sub-clauses select.
//
// Remembering a fact already held under the same policy is a no-op. Any
// existing memory with the same relation and the same first term is
// replaced, so "(you) has count (3)" supersedes "(you) has count (2)".
func (s *Store) Remember(fact ir.Statement) {
	policy := PolicyOf(fact)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.memories {
		if m.Fact.Hash == fact.Hash && m.Policy == policy {
			return
		}
	}

	clause := fact.Clause()
	s.memories = slices.DeleteFunc(s.memories, func(m *Memory) bool {
		return sameSubject(m.Fact.Clause(), clause)
	})

	m := &Memory{Fact: fact, Policy: policy}
	if policy.Timed {
		m.Expires = s.now().Add(policy.TTL)
	}
	if s.refs != nil {
		for _, tok := range refs.Tokens(clause) {
			if pin, ok := s.refs.Pin(tok); ok {
				m.pins = append(m.pins, pin)
			}
		}
	}
	s.memories = append(s.memories, m)
	s.dirty = true
}

func sameSubject(a, b ir.Clause) bool {
	if a.Relation() != b.Relation() || len(a.Terms) == 0 || len(b.Terms) == 0 {
		return false
	}
	return a.Terms[0].Value == b.Terms[0].Value
}

// Forget removes the memory with the fact's hash.
func (s *Store) Forget(fact ir.Statement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.memories)
	s.memories = slices.DeleteFunc(s.memories, func(m *Memory) bool {
		return m.Fact.Hash == fact.Hash
	})
	if len(s.memories) != before {
		s.dirty = true
	}
}

// ForgetAll removes every memory.
func (s *Store) ForgetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories = nil
	s.dirty = true
}

// Recall returns the facts to assert this frame and restores the references
// they pin.
//
// Expired memories are returned one last time and then dropped, so a
// memory is visible for at least one frame.
func (s *Store) Recall(now time.Time) []ir.Statement {
	s.mu.Lock()
	defer s.mu.Unlock()

	facts := make([]ir.Statement, len(s.memories))
	for i, m := range s.memories {
		facts[i] = m.Fact
		if s.refs != nil && len(m.pins) > 0 {
			s.refs.Restore(m.pins...)
		}
	}
	s.memories = slices.DeleteFunc(s.memories, func(m *Memory) bool {
		return m.Expired(now)
	})
	return facts
}

// Len returns the number of memories held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memories)
}

// Memories returns a snapshot of the held memories.
func (s *Store) Memories() []Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Memory, len(s.memories))
	for i, m := range s.memories {
		out[i] = *m
	}
	return out
}

// Dirty reports whether memories changed since the last Save or Load.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Path returns the memory file path for owner under dir.
func Path(dir string, owner int) string {
	return filepath.Join(dir, fmt.Sprintf("%d%s", owner, FileSuffix))
}

// Save writes permanent memories to dir, one statement per line. The file
// is replaced atomically, and removed when no permanent memories remain.
// Save does nothing unless memories changed since the last Save.
func (s *Store) Save(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	var lines []string
	for _, m := range s.memories {
		if m.Policy.Permanent() {
			lines = append(lines, m.Fact.Text)
		}
	}

	path := Path(dir, s.owner)
	if len(lines) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove memory file: %w", err)
		}
		s.dirty = false
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	s.dirty = false
	return nil
}

// Load reads the owner's memory file from dir and remembers every line. A
// missing file is not an error. Lines that fail to parse are skipped and
// reported together in the returned error; the rest still load.
func (s *Store) Load(dir string) ([]ir.Statement, error) {
	f, err := os.Open(Path(dir, s.owner))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open memory file: %w", err)
	}
	defer f.Close()

	var (
		loaded []ir.Statement
		errs   []error
	)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fact, err := parse.ParseFact(s.owner, line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.Remember(fact)
		loaded = append(loaded, fact)
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, fmt.Errorf("read memory file: %w", err))
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return loaded, errors.Join(errs...)
}

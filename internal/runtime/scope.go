package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/luma/internal/engine"
	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/memory"
	"github.com/roach88/luma/internal/parse"
	"github.com/roach88/luma/internal/refs"
)

// Scope is what a program sees while it runs: its owner id, the current
// frame, and the services it may use.
//
// A scope starts in buffered mode. Program units run concurrently, so
// claims and rules are recorded in call order instead of touching the
// store. Once every unit has returned, the loop switches all scopes to
// direct mode and applies their buffers in program-id order on the loop
// goroutine. Rule callbacks therefore always run in direct mode and their
// claims recurse into the store synchronously.
//
// Remember and Forget go straight to the owner's memory store (which is
// safe for concurrent use); remembered facts first appear next frame.
//
// CRITICAL: a scope must not be shared between goroutines.
type Scope struct {
	owner  int
	frame  FrameInfo
	marker *Marker

	store  *engine.Store
	memory *memory.Store
	refs   *refs.Registry
	errlog engine.ErrorLog
	logger *slog.Logger

	direct bool
	ops    []scopeOp
}

// FrameInfo describes the frame a scope runs in.
type FrameInfo struct {
	Seq       int64
	Time      time.Time
	Clock     float64 // Seconds since the loop started
	LastClock float64
}

// scopeOp is one buffered store operation.
type scopeOp struct {
	fact *ir.Statement
	rule *engine.Rule
}

// ScopeServices bundles what a scope needs from the loop.
type ScopeServices struct {
	Store  *engine.Store
	Memory *memory.Store
	Refs   *refs.Registry
	Logger *slog.Logger
}

// NewScope creates a buffered scope for owner.
func NewScope(owner int, frame FrameInfo, marker *Marker, svc ScopeServices) *Scope {
	logger := svc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var errlog engine.ErrorLog
	if svc.Store != nil {
		errlog = svc.Store.ErrorLog()
	}
	return &Scope{
		owner:  owner,
		frame:  frame,
		marker: marker,
		store:  svc.Store,
		memory: svc.Memory,
		refs:   svc.Refs,
		errlog: errlog,
		logger: logger.With("program", owner),
	}
}

// NewDirectScope creates a scope that applies every operation immediately.
// It must only be used on the goroutine that owns the store.
func NewDirectScope(owner int, frame FrameInfo, svc ScopeServices) *Scope {
	s := NewScope(owner, frame, nil, svc)
	s.direct = true
	return s
}

// Owner returns the program id the scope claims on behalf of.
func (s *Scope) Owner() int {
	return s.owner
}

// Frame returns the current frame description.
func (s *Scope) Frame() FrameInfo {
	return s.frame
}

// Now returns the frame time.
func (s *Scope) Now() time.Time {
	return s.frame.Time
}

// Marker returns the program's marker when it is on the table.
func (s *Scope) Marker() (Marker, bool) {
	if s.marker == nil {
		return Marker{}, false
	}
	return *s.marker, true
}

// Refs returns the reference registry.
func (s *Scope) Refs() *refs.Registry {
	return s.refs
}

// Logger returns a logger tagged with the program id.
func (s *Scope) Logger() *slog.Logger {
	return s.logger
}

// Claim parses text as a fact owned by this program and asserts it.
func (s *Scope) Claim(text string) error {
	fact, err := parse.ParseFact(s.owner, text)
	if err != nil {
		s.LogParseError(err)
		return err
	}
	return s.assert(fact)
}

// Claimf formats and claims.
func (s *Scope) Claimf(format string, args ...any) error {
	return s.Claim(fmt.Sprintf(format, args...))
}

// Wish is Claim under another name.
func (s *Scope) Wish(text string) error {
	return s.Claim(text)
}

// When starts a rule owned by this program.
func (s *Scope) When(texts ...string) engine.RuleBuilder {
	return engine.NewRuleBuilder(s, s.owner, texts...)
}

// Register implements engine.RuleSink. In buffered mode the returned handle
// reports Registered() == false until the loop applies the buffer.
func (s *Scope) Register(r engine.Rule) (*engine.RuleHandle, error) {
	if s.direct {
		return s.store.Register(r)
	}
	s.ops = append(s.ops, scopeOp{rule: &r})
	return engine.NewRuleHandle(s.store, r.Statement.Hash), nil
}

// LogParseError implements engine.RuleSink.
func (s *Scope) LogParseError(err error) {
	if s.errlog == nil {
		s.logger.Warn("parse error", "error", err)
		return
	}
	if pe, ok := parse.AsParseError(err); ok {
		s.errlog.LogErrors(pe.Lines())
		return
	}
	s.errlog.LogError(err.Error())
}

// LogError records a program-level error. Parse errors inside err were
// already logged where the statement was parsed and are left out.
func (s *Scope) LogError(err error) {
	err = withoutParseErrors(err)
	if err == nil {
		return
	}
	msg := fmt.Sprintf("Error in program %d: %v", s.owner, err)
	if s.errlog == nil {
		s.logger.Warn(msg)
		return
	}
	s.errlog.LogError(msg)
}

// Remember stores a fact in this program's memory. It is asserted from the
// next frame on.
func (s *Scope) Remember(text string) error {
	fact, err := s.memoryFact(text)
	if err != nil {
		return err
	}
	s.memory.Remember(fact)
	return nil
}

// Forget removes a remembered fact.
func (s *Scope) Forget(text string) error {
	fact, err := s.memoryFact(text)
	if err != nil {
		return err
	}
	s.memory.Forget(fact)
	return nil
}

// ForgetAll clears this program's memory.
func (s *Scope) ForgetAll() {
	if s.memory != nil {
		s.memory.ForgetAll()
	}
}

func (s *Scope) memoryFact(text string) (ir.Statement, error) {
	if s.memory == nil {
		return ir.Statement{}, fmt.Errorf("program %d has no memory store", s.owner)
	}
	fact, err := parse.ParseFact(s.owner, text)
	if err != nil {
		s.LogParseError(err)
		return ir.Statement{}, err
	}
	return fact, nil
}

func (s *Scope) assert(fact ir.Statement) error {
	if s.direct {
		return s.store.Assert(fact)
	}
	s.ops = append(s.ops, scopeOp{fact: &fact})
	return nil
}

// Pending returns the number of buffered operations.
func (s *Scope) Pending() int {
	return len(s.ops)
}

// apply switches the scope to direct mode and replays its buffer. Errors
// other than duplicates are collected so one rejected statement does not
// stop the rest.
func (s *Scope) apply() []error {
	s.direct = true
	ops := s.ops
	s.ops = nil

	var errs []error
	for _, op := range ops {
		switch {
		case op.fact != nil:
			if err := s.store.Assert(*op.fact); err != nil {
				errs = append(errs, err)
			}
		case op.rule != nil:
			if _, err := s.store.Register(*op.rule); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

// withoutParseErrors drops parse errors from err, descending into joined
// errors. It returns nil when nothing else remains.
func withoutParseErrors(err error) error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var rest []error
		for _, e := range joined.Unwrap() {
			if e = withoutParseErrors(e); e != nil {
				rest = append(rest, e)
			}
		}
		return errors.Join(rest...)
	}
	if parse.IsParseError(err) {
		return nil
	}
	return err
}

package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/luma/internal/index"
	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/parse"
)

// Store is the fact database and forward-chaining rule engine.
//
// Asserting a fact re-evaluates every registered rule; registering a rule
// evaluates it once against the facts already present. Rule callbacks may
// assert facts and register rules synchronously, recursing into the store.
// Statement hashes make that recursion converge: a fact or rule already
// present is a silent no-op, and match history keeps a rule from firing
// twice for the same combination of facts.
//
// CRITICAL: Store is not safe for concurrent use. It is owned by exactly one
// goroutine (the frame loop); concurrent producers buffer their statements
// and hand them over.
//
// INVARIANTS:
//   - fact hashes are unique among facts, rule hashes among rules
//   - rules are evaluated in registration order
//   - Facts() lists facts in insertion (Seq) order
type Store struct {
	facts     map[string]*ir.Statement
	factOrder []*ir.Statement
	rules     map[string]*ruleEntry
	ruleOrder []*ruleEntry

	index   *index.Index
	clock   *Clock
	history *MatchHistory
	quota   *StepQuota

	errlog        ErrorLog
	observer      Observer
	logger        *slog.Logger
	clearHooks    []func()
	quotaReported bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxSteps sets the per-frame step quota.
//
// Default: 10000 steps (DefaultMaxSteps). Zero disables the quota.
func WithMaxSteps(maxSteps int) StoreOption {
	return func(s *Store) {
		s.quota = NewStepQuota(maxSteps)
	}
}

// WithErrorLog sets the error log. Default: a DiagLog on the store logger.
func WithErrorLog(l ErrorLog) StoreOption {
	return func(s *Store) {
		s.errlog = l
	}
}

// WithObserver attaches an observer.
func WithObserver(o Observer) StoreOption {
	return func(s *Store) {
		s.observer = o
	}
}

// WithLogger sets the logger for match tracing. Matches are logged at debug
// level.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock sets the insertion-ordinal clock.
func WithClock(c *Clock) StoreOption {
	return func(s *Store) {
		s.clock = c
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		facts:   make(map[string]*ir.Statement),
		rules:   make(map[string]*ruleEntry),
		index:   index.New(),
		clock:   NewClock(),
		history: NewMatchHistory(),
		quota:   NewStepQuota(DefaultMaxSteps),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.errlog == nil {
		s.errlog = NewDiagLog(s.logger)
	}
	return s
}

// Assert inserts a fact and re-evaluates every registered rule.
//
// A fact whose hash is already present is ignored and nil is returned. When
// the step quota is exhausted the fact is not inserted and a quota error is
// returned (and logged once per frame).
func (s *Store) Assert(fact ir.Statement) error {
	if !fact.IsFact() {
		return fmt.Errorf("assert: %s is not a fact", fact.Kind)
	}
	if _, dup := s.facts[fact.Hash]; dup {
		s.logger.Debug("duplicate fact", "fact", fact.Text, "owner", fact.Owner)
		return nil
	}
	if err := s.step(); err != nil {
		return err
	}

	f := fact
	f.Seq = s.clock.Next()
	s.facts[f.Hash] = &f
	s.factOrder = append(s.factOrder, &f)
	s.index.Insert(&f)
	s.logger.Debug("assert", "fact", f.Text, "owner", f.Owner, "seq", f.Seq)
	if s.observer != nil {
		s.observer.FactAsserted(f)
	}

	// Rules registered by callbacks during this pass evaluate themselves on
	// registration.
	for _, r := range slices.Clone(s.ruleOrder) {
		s.run(r)
	}
	return nil
}

// Register stores a rule and evaluates it once against the current facts.
// A rule whose hash is already present is ignored; the returned handle
// refers to the existing rule.
func (s *Store) Register(r Rule) (*RuleHandle, error) {
	if !r.Statement.IsRule() {
		return nil, fmt.Errorf("register: %s is not a rule", r.Statement.Kind)
	}
	h := NewRuleHandle(s, r.Statement.Hash)
	if _, dup := s.rules[r.Statement.Hash]; dup {
		s.logger.Debug("duplicate rule", "rule", r.Statement.Text, "owner", r.Statement.Owner)
		return h, nil
	}
	if err := s.step(); err != nil {
		return nil, err
	}

	entry := newRuleEntry(r)
	s.rules[entry.stmt.Hash] = entry
	s.ruleOrder = append(s.ruleOrder, entry)
	if s.observer != nil {
		s.observer.RuleRegistered(entry.stmt)
	}
	s.run(entry)
	return h, nil
}

// Claim parses text as a fact owned by owner and asserts it. Parse errors
// are written to the error log and returned.
func (s *Store) Claim(owner int, text string) error {
	fact, err := parse.ParseFact(owner, text)
	if err != nil {
		s.LogParseError(err)
		return err
	}
	return s.Assert(fact)
}

// Wish is Claim under another name; programs use it for requests addressed
// to other programs.
func (s *Store) Wish(owner int, text string) error {
	return s.Claim(owner, text)
}

// When starts a rule owned by owner.
func (s *Store) When(owner int, texts ...string) RuleBuilder {
	return NewRuleBuilder(s, owner, texts...)
}

// LogParseError writes a parse failure to the error log, one entry per
// message.
func (s *Store) LogParseError(err error) {
	if pe, ok := parse.AsParseError(err); ok {
		s.errlog.LogErrors(pe.Lines())
		return
	}
	s.errlog.LogError(err.Error())
}

// Clear drops every fact and rule, resets the clock, quota and match
// history, runs the clear hooks and empties the error log.
func (s *Store) Clear() {
	clear(s.facts)
	clear(s.rules)
	s.factOrder = nil
	s.ruleOrder = nil
	s.index.Reset()
	s.history.Reset()
	s.clock.Reset()
	s.quota.Reset()
	s.quotaReported = false
	for _, hook := range s.clearHooks {
		hook()
	}
	s.errlog.ClearErrors()
}

// OnClear registers fn to run on every Clear. Frame-lifetime resources that
// facts may point at (reference payloads, for example) hang off this hook.
func (s *Store) OnClear(fn func()) {
	s.clearHooks = append(s.clearHooks, fn)
}

// ErrorLog returns the store's error log.
func (s *Store) ErrorLog() ErrorLog {
	return s.errlog
}

// Fact returns the fact with the given hash.
func (s *Store) Fact(hash string) (ir.Statement, bool) {
	f, ok := s.facts[hash]
	if !ok {
		return ir.Statement{}, false
	}
	return *f, true
}

// Facts returns every fact in insertion order.
func (s *Store) Facts() []ir.Statement {
	out := make([]ir.Statement, len(s.factOrder))
	for i, f := range s.factOrder {
		out[i] = *f
	}
	return out
}

// Rules returns every rule statement in registration order.
func (s *Store) Rules() []ir.Statement {
	out := make([]ir.Statement, len(s.ruleOrder))
	for i, r := range s.ruleOrder {
		out[i] = r.stmt
	}
	return out
}

// FactsByRelation returns the facts whose clause has the given relation
// (for example "_ has width _"), in insertion order.
func (s *Store) FactsByRelation(relation string) []ir.Statement {
	var out []ir.Statement
	for _, f := range s.index.Lookup(index.RelationKey(relation)) {
		if f.Clause().Relation() == relation {
			out = append(out, *f)
		}
	}
	return out
}

// Counts summarizes store contents.
type Counts struct {
	Facts int `json:"facts"`
	Rules int `json:"rules"`
	Keys  int `json:"keys"`
	Steps int `json:"steps"`
}

// Counts returns the current store counts.
func (s *Store) Counts() Counts {
	return Counts{
		Facts: len(s.factOrder),
		Rules: len(s.ruleOrder),
		Keys:  s.index.Keys(),
		Steps: s.quota.Current(),
	}
}

// step consumes one unit of the frame quota, logging the first overrun.
func (s *Store) step() error {
	err := s.quota.Check()
	if err != nil && !s.quotaReported {
		s.quotaReported = true
		s.errlog.LogError(err.Error())
	}
	return err
}

// run evaluates a rule and fires its fallback when nothing could match.
func (s *Store) run(r *ruleEntry) {
	out := s.match(r)
	if out.Matched || r.onNoMatch == nil {
		return
	}
	fn := r.onNoMatch
	r.onNoMatch = nil
	s.logger.Debug("match otherwise", "rule", r.stmt.Text, "owner", r.stmt.Owner)
	s.invoke(r, fn)
}

// fire runs the match callback for one combination.
func (s *Store) fire(r *ruleEntry, b ir.Binding) {
	r.fired++
	if s.observer != nil {
		s.observer.RuleFired(r.stmt, b)
	}
	if r.onMatch == nil {
		return
	}
	s.invoke(r, func() { r.onMatch(b) })
}

// invoke runs a callback, converting a panic into a logged RuntimeError so
// one faulty program cannot abort matching for the others.
func (s *Store) invoke(r *ruleEntry, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			err := NewCallbackPanicError(r.stmt.Owner, r.stmt.Hash, rec)
			s.errlog.LogError(fmt.Sprintf("%d %s: %v", r.stmt.Owner, r.stmt.Text, err))
			s.logger.Error("rule callback panicked",
				"owner", r.stmt.Owner,
				"rule", r.stmt.Text,
				"panic", rec,
			)
		}
	}()
	fn()
}

package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/luma/internal/index"
	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/parse"
)

// Rule pairs a parsed rule statement with its callbacks.
type Rule struct {
	Statement ir.Statement

	// OnMatch runs once per new consistent combination of facts.
	OnMatch func(ir.Binding)

	// OnNoMatch runs at most once, the first time an evaluation finds some
	// clause with no candidate facts.
	OnNoMatch func()
}

// ruleEntry is a registered rule with its derived lookup data.
type ruleEntry struct {
	stmt      ir.Statement
	keys      []index.Key
	shared    []string
	onMatch   func(ir.Binding)
	onNoMatch func()
	fired     int
}

func newRuleEntry(r Rule) *ruleEntry {
	return &ruleEntry{
		stmt:      r.Statement,
		keys:      queryKeys(r.Statement.Clauses),
		shared:    sharedVariables(r.Statement.Clauses),
		onMatch:   r.OnMatch,
		onNoMatch: r.OnNoMatch,
	}
}

// RuleSink accepts rules for registration. *Store registers them directly;
// a program scope may buffer them and register later. Rules whose text fails
// to parse never reach Register; their errors go to LogParseError.
type RuleSink interface {
	Register(r Rule) (*RuleHandle, error)
	LogParseError(err error)
}

// RuleHandle refers to a rule by hash. It stays valid across Clear but
// reports Registered() == false once the rule is gone.
type RuleHandle struct {
	hash  string
	store *Store
}

// NewRuleHandle returns a handle for hash in store.
func NewRuleHandle(store *Store, hash string) *RuleHandle {
	return &RuleHandle{hash: hash, store: store}
}

// Hash returns the rule's statement hash.
func (h *RuleHandle) Hash() string {
	return h.hash
}

// Registered reports whether the rule is currently registered.
func (h *RuleHandle) Registered() bool {
	if h == nil || h.store == nil {
		return false
	}
	_, ok := h.store.rules[h.hash]
	return ok
}

// Fired returns how many times the rule's callback has run since it was
// registered.
func (h *RuleHandle) Fired() int {
	if h == nil || h.store == nil {
		return 0
	}
	if r, ok := h.store.rules[h.hash]; ok {
		return r.fired
	}
	return 0
}

// RuleBuilder assembles a rule from clause texts. It is an immutable value;
// every method returns a modified copy.
//
//	store.When(3, "/p/ has width /w/").
//		And("/p/ is labeled /label/").
//		Then(func(b ir.Binding) { ... }).
//		Otherwise(func() { ... }).
//		Register()
type RuleBuilder struct {
	sink      RuleSink
	owner     int
	texts     []string
	onMatch   func(ir.Binding)
	onNoMatch func()
}

// NewRuleBuilder starts a rule owned by owner from one or more clause texts.
func NewRuleBuilder(sink RuleSink, owner int, texts ...string) RuleBuilder {
	return RuleBuilder{sink: sink, owner: owner, texts: slices.Clone(texts)}
}

// And appends another clause text.
func (b RuleBuilder) And(text string) RuleBuilder {
	b.texts = append(slices.Clone(b.texts), text)
	return b
}

// Then sets the match callback.
func (b RuleBuilder) Then(fn func(ir.Binding)) RuleBuilder {
	b.onMatch = fn
	return b
}

// Otherwise sets the no-match callback.
func (b RuleBuilder) Otherwise(fn func()) RuleBuilder {
	b.onNoMatch = fn
	return b
}

// Owner returns the owning program id.
func (b RuleBuilder) Owner() int {
	return b.owner
}

// Text returns the clause texts joined as one rule statement.
func (b RuleBuilder) Text() string {
	return strings.Join(b.texts, ir.ClauseSeparator)
}

// Build parses the accumulated text into a Rule without registering it.
func (b RuleBuilder) Build() (Rule, error) {
	stmt, err := parse.ParseRule(b.owner, b.Text())
	if err != nil {
		return Rule{}, err
	}
	return Rule{Statement: stmt, OnMatch: b.onMatch, OnNoMatch: b.onNoMatch}, nil
}

// Register builds the rule and hands it to the sink.
func (b RuleBuilder) Register() (*RuleHandle, error) {
	if b.sink == nil {
		return nil, fmt.Errorf("rule %q: no sink to register with", b.Text())
	}
	r, err := b.Build()
	if err != nil {
		b.sink.LogParseError(err)
		return nil, err
	}
	return b.sink.Register(r)
}

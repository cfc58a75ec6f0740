package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/luma/internal/ir"
)

// recorder collects bindings passed to a rule callback.
type recorder struct {
	calls []ir.Binding
}

func (r *recorder) fn(b ir.Binding) {
	r.calls = append(r.calls, b.Clone())
}

func TestStore_IdempotentAssert(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Claim(1, "(5) has width (100)"))
	require.NoError(t, s.Claim(1, "(5) has width (100)"))

	assert.Equal(t, 1, s.Counts().Facts)
}

func TestStore_SameTextDifferentOwner(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Claim(1, "(5) has width (100)"))
	require.NoError(t, s.Claim(2, "(5) has width (100)"))

	assert.Equal(t, 2, s.Counts().Facts)
}

func TestStore_SingleClauseMatch(t *testing.T) {
	s := NewStore()
	rec := &recorder{}

	_, err := s.When(7, "/p/ has width /w/").Then(rec.fn).Register()
	require.NoError(t, err)
	assert.Empty(t, rec.calls, "no facts yet")

	require.NoError(t, s.Claim(1, "(5) has width (100)"))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, ir.Binding{"p": "5", "w": "100"}, rec.calls[0])
}

func TestStore_RuleRegisteredAfterFacts(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Claim(1, "(5) has width (100)"))
	require.NoError(t, s.Claim(1, "(6) has width (200)"))

	rec := &recorder{}
	_, err := s.When(7, "/p/ has width /w/").Then(rec.fn).Register()
	require.NoError(t, err)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, "5", rec.calls[0]["p"])
	assert.Equal(t, "6", rec.calls[1]["p"], "candidates in insertion order")
}

func TestStore_NoRefireForSeenCombination(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	_, err := s.When(7, "/p/ has width /w/").Then(rec.fn).Register()
	require.NoError(t, err)

	require.NoError(t, s.Claim(1, "(5) has width (100)"))
	require.NoError(t, s.Claim(1, "(5) is red"))
	require.NoError(t, s.Claim(1, "(6) has width (100)"))

	assert.Len(t, rec.calls, 2)
}

func TestStore_LiteralPinnedQuery(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	_, err := s.When(7, "(5) has width /w/").Then(rec.fn).Register()
	require.NoError(t, err)

	require.NoError(t, s.Claim(1, "(6) has width (300)"))
	require.NoError(t, s.Claim(1, "(5) has width (100)"))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, ir.Binding{"w": "100"}, rec.calls[0])
}

func combos(calls []ir.Binding) []string {
	out := make([]string, len(calls))
	for i, b := range calls {
		out[i] = fmt.Sprintf("%s,%s", b["a"], b["b"])
	}
	return out
}

func TestStore_SharedVariableJoin(t *testing.T) {
	t.Run("differing values do not join", func(t *testing.T) {
		s := NewStore()
		rec := &recorder{}
		_, err := s.When(7, "/a/ has width /w/ , /b/ has width /w/").Then(rec.fn).Register()
		require.NoError(t, err)

		require.NoError(t, s.Claim(1, "(1) has width (10)"))
		require.NoError(t, s.Claim(1, "(2) has width (20)"))

		assert.NotContains(t, combos(rec.calls), "1,2")
		assert.NotContains(t, combos(rec.calls), "2,1")
	})

	t.Run("equal values join", func(t *testing.T) {
		s := NewStore()
		rec := &recorder{}
		_, err := s.When(7, "/a/ has width /w/ , /b/ has width /w/").Then(rec.fn).Register()
		require.NoError(t, err)

		require.NoError(t, s.Claim(1, "(1) has width (10)"))
		require.NoError(t, s.Claim(1, "(2) has width (10)"))

		assert.Contains(t, combos(rec.calls), "1,2")
		for _, b := range rec.calls {
			assert.Equal(t, "10", b["w"])
		}
	})
}

func TestStore_JoinAcrossRelations(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	_, err := s.When(7, "/p/ has width /w/").And("/p/ is labeled /label/").Then(rec.fn).Register()
	require.NoError(t, err)

	require.NoError(t, s.Claim(1, "(5) has width (100)"))
	require.NoError(t, s.Claim(1, "(6) is labeled 'Bar'"))
	assert.Empty(t, rec.calls)

	require.NoError(t, s.Claim(1, "(5) is labeled 'Foo'"))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, ir.Binding{"p": "5", "w": "100", "label": "Foo"}, rec.calls[0])
}

func TestStore_RepeatedVariableInOneClause(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	_, err := s.When(7, "/a/ points at /a/").Then(rec.fn).Register()
	require.NoError(t, err)

	require.NoError(t, s.Claim(1, "(1) points at (2)"))
	require.NoError(t, s.Claim(1, "(3) points at (3)"))

	// Within one clause the last position wins.
	require.Len(t, rec.calls, 2)
	assert.Equal(t, ir.Binding{"a": "2"}, rec.calls[0])
	assert.Equal(t, ir.Binding{"a": "3"}, rec.calls[1])
}

func TestStore_TrailingLiteralDoesNotFilter(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	_, err := s.When(7, "/p/ sees /q/ at (3)").Then(rec.fn).Register()
	require.NoError(t, err)

	require.NoError(t, s.Claim(1, "(1) sees (2) at (4)"))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, ir.Binding{"p": "1", "q": "2"}, rec.calls[0])
}

func TestStore_OptionsDoNotChangeIdentity(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Claim(1, "(5) is labelled 'Foo' with priority (10)"))
	require.NoError(t, s.Claim(1, "(5) is labelled 'Foo' with priority (20)"))

	facts := s.Facts()
	require.Len(t, facts, 1)
	assert.Equal(t, "(5) is labelled \"Foo\" with priority (10)", facts[0].Body())
}

func TestStore_OtherwiseFiresOnce(t *testing.T) {
	s := NewStore()
	var matched, fallbacks int

	_, err := s.When(7, "/p/ is missing").
		Then(func(ir.Binding) { matched++ }).
		Otherwise(func() { fallbacks++ }).
		Register()
	require.NoError(t, err)
	assert.Equal(t, 1, fallbacks, "fires on first evaluation without candidates")

	require.NoError(t, s.Claim(1, "(1) is red"))
	require.NoError(t, s.Claim(1, "(2) is red"))
	assert.Equal(t, 1, fallbacks, "never fires again")

	require.NoError(t, s.Claim(1, "(1) is missing"))
	assert.Equal(t, 1, matched)
	assert.Equal(t, 1, fallbacks)
}

func TestStore_OtherwiseNotFiredWhenMatched(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Claim(1, "(1) is present"))

	var fallbacks int
	_, err := s.When(7, "/p/ is present").Otherwise(func() { fallbacks++ }).Register()
	require.NoError(t, err)

	require.NoError(t, s.Claim(1, "(1) is red"))
	assert.Zero(t, fallbacks)
}

func TestStore_OptionPropagation(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	_, err := s.When(7, "/p/ is labelled /label/ with priority /priority/").Then(rec.fn).Register()
	require.NoError(t, err)

	require.NoError(t, s.Claim(1, "(5) is labelled 'Foo' with priority (10)"))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, ir.Binding{"p": "5", "label": "Foo", "priority": "10"}, rec.calls[0])
}

func TestStore_OptionalSubClauseBinding(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	_, err := s.When(7, "/p/ is saving [for /n/ seconds]").Then(rec.fn).Register()
	require.NoError(t, err)

	require.NoError(t, s.Claim(1, "(1) is saving [for (30) seconds]"))
	require.NoError(t, s.Claim(1, "(2) is saving"))

	require.Len(t, rec.calls, 2)
	assert.Equal(t, ir.Binding{"p": "1", "n": "30"}, rec.calls[0])
	assert.Equal(t, ir.Binding{"p": "2"}, rec.calls[1])
}

func TestStore_CallbackAssertsRecursively(t *testing.T) {
	s := NewStore()
	var doubled []string

	_, err := s.When(7, "/p/ has width /w/").Then(func(b ir.Binding) {
		_ = s.Claim(7, fmt.Sprintf("(%s) has double width (%d)", b["p"], 2*b.Int("w")))
	}).Register()
	require.NoError(t, err)
	_, err = s.When(8, "/p/ has double width /d/").Then(func(b ir.Binding) {
		doubled = append(doubled, b["d"])
	}).Register()
	require.NoError(t, err)

	require.NoError(t, s.Claim(1, "(5) has width (100)"))

	assert.Equal(t, []string{"200"}, doubled)
	assert.Equal(t, 2, s.Counts().Facts)
}

func TestStore_NestedRuleRegistration(t *testing.T) {
	s := NewStore()
	rec := &recorder{}

	_, err := s.When(7, "/p/ is a button").Then(func(b ir.Binding) {
		_, _ = s.When(7, fmt.Sprintf("(%s) is pressed by /who/", b["p"])).Then(rec.fn).Register()
	}).Register()
	require.NoError(t, err)

	require.NoError(t, s.Claim(1, "(4) is pressed by (9)"))
	require.NoError(t, s.Claim(1, "(4) is a button"))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, ir.Binding{"who": "9"}, rec.calls[0])
	assert.Equal(t, 2, s.Counts().Rules)
}

func TestStore_QuotaStopsRunawayChain(t *testing.T) {
	s := NewStore(WithMaxSteps(50))

	_, err := s.When(7, "counter is /n/").Then(func(b ir.Binding) {
		_ = s.Claim(7, fmt.Sprintf("counter is (%d)", b.Int("n")+1))
	}).Register()
	require.NoError(t, err)

	err = s.Claim(7, "counter is (0)")
	require.NoError(t, err, "the first assert is within quota")

	assert.LessOrEqual(t, s.Counts().Facts, 50)
	errs := s.ErrorLog().Errors()
	require.Len(t, errs, 1, "quota overrun is logged once")
	assert.Contains(t, errs[0], "QUOTA_EXCEEDED")

	s.Clear()
	assert.NoError(t, s.Claim(7, "(1) is fresh"), "Clear restores the quota")
}

func TestStore_CallbackPanicIsRecovered(t *testing.T) {
	s := NewStore()
	var after int

	_, err := s.When(7, "/p/ is red").Then(func(ir.Binding) { panic("boom") }).Register()
	require.NoError(t, err)
	_, err = s.When(8, "/p/ is red").Then(func(ir.Binding) { after++ }).Register()
	require.NoError(t, err)

	require.NotPanics(t, func() { _ = s.Claim(1, "(1) is red") })
	assert.Equal(t, 1, after, "later rules still run")
	require.Len(t, s.ErrorLog().Errors(), 1)
	assert.Contains(t, s.ErrorLog().Errors()[0], "boom")
}

func TestStore_ParseErrorsGoToErrorLog(t *testing.T) {
	s := NewStore()

	err := s.Claim(3, "/p/ is red")
	require.Error(t, err)

	_, err = s.When(3, "/p/ is (red").Register()
	require.Error(t, err)

	errs := s.ErrorLog().Errors()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "3 parse error: variables only allowed in rules")
	assert.Contains(t, errs[1], "unmatched char: (")
	assert.Zero(t, s.Counts().Facts)
	assert.Zero(t, s.Counts().Rules)
}

func TestStore_DuplicateRuleIsNoop(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	require.NoError(t, s.Claim(1, "(1) is red"))

	h1, err := s.When(7, "/p/ is red").Then(rec.fn).Register()
	require.NoError(t, err)
	h2, err := s.When(7, "/p/ is red").Then(rec.fn).Register()
	require.NoError(t, err)

	assert.Equal(t, h1.Hash(), h2.Hash())
	assert.Len(t, rec.calls, 1)
	assert.Equal(t, 1, s.Counts().Rules)
	assert.Equal(t, 1, h1.Fired())
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	var hookRuns int
	s.OnClear(func() { hookRuns++ })

	h, err := s.When(7, "/p/ is red").Register()
	require.NoError(t, err)
	require.NoError(t, s.Claim(1, "(1) is red"))
	s.ErrorLog().LogError("stale")
	require.True(t, h.Registered())

	s.Clear()

	assert.Equal(t, Counts{}, s.Counts())
	assert.False(t, h.Registered())
	assert.Empty(t, s.ErrorLog().Errors())
	assert.Equal(t, 1, hookRuns)

	require.NoError(t, s.Claim(1, "(1) is red"))
	assert.Equal(t, int64(1), s.Facts()[0].Seq, "clock restarts")
}

func TestStore_Queries(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Claim(1, "(5) has width (100)"))
	require.NoError(t, s.Claim(1, "(5) is red"))
	require.NoError(t, s.Claim(2, "(6) has width (50)"))

	facts := s.Facts()
	require.Len(t, facts, 3)
	for i, f := range facts {
		assert.Equal(t, int64(i+1), f.Seq)
	}

	widths := s.FactsByRelation("_ has width _")
	require.Len(t, widths, 2)
	assert.Equal(t, 1, widths[0].Owner)
	assert.Equal(t, 2, widths[1].Owner)

	got, ok := s.Fact(facts[1].Hash)
	require.True(t, ok)
	assert.Equal(t, "(5) is red", got.Text)

	_, err := s.When(1, "/p/ is red").Register()
	require.NoError(t, err)
	rules := s.Rules()
	require.Len(t, rules, 1)
	assert.True(t, rules[0].IsRule())
}

func TestStore_RejectsWrongKind(t *testing.T) {
	s := NewStore()
	rule := ir.NewRule(1, "x", []ir.Clause{{Terms: []ir.Term{{Kind: ir.TermSymbol, Value: "x"}}}})
	assert.Error(t, s.Assert(rule))

	fact := ir.NewFact(1, "x", ir.Clause{Terms: []ir.Term{{Kind: ir.TermSymbol, Value: "x"}}})
	_, err := s.Register(Rule{Statement: fact})
	assert.Error(t, err)
}

type countingObserver struct {
	facts, rules, fired int
}

func (o *countingObserver) FactAsserted(ir.Statement)          { o.facts++ }
func (o *countingObserver) RuleRegistered(ir.Statement)        { o.rules++ }
func (o *countingObserver) RuleFired(ir.Statement, ir.Binding) { o.fired++ }

func TestStore_Observer(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	s := NewStore(WithObserver(Observers{a, b}))

	_, err := s.When(7, "/p/ is red").Register()
	require.NoError(t, err)
	require.NoError(t, s.Claim(1, "(1) is red"))
	require.NoError(t, s.Claim(1, "(1) is red"))

	for _, o := range []*countingObserver{a, b} {
		assert.Equal(t, 1, o.facts)
		assert.Equal(t, 1, o.rules)
		assert.Equal(t, 1, o.fired)
	}
}

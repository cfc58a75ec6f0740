package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatementHashDeterminism(t *testing.T) {
	clauses := []Clause{widthClause()}

	h1 := StatementHash(1, clauses)
	h2 := StatementHash(1, clauses)

	assert.Equal(t, h1, h2, "StatementHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestStatementHashChangesWithOwner(t *testing.T) {
	clauses := []Clause{widthClause()}
	assert.NotEqual(t, StatementHash(1, clauses), StatementHash(2, clauses))
}

func TestStatementHashChangesWithText(t *testing.T) {
	a := widthClause()
	b := widthClause()
	b.Terms[0].Value = "6"
	assert.NotEqual(t, StatementHash(1, []Clause{a}), StatementHash(1, []Clause{b}))
}

func TestStatementHashIgnoresOptional(t *testing.T) {
	plain := widthClause()
	qualified := widthClause()
	qualified.Optional = []Clause{{Terms: []Term{{Kind: TermSymbol, Value: "forever"}}}}

	assert.Equal(t, StatementHash(1, []Clause{plain}), StatementHash(1, []Clause{qualified}))
}

func TestStatementHashIgnoresOptions(t *testing.T) {
	low := widthClause()
	low.Options = map[string]string{"priority": "10"}
	high := widthClause()
	high.Options = map[string]string{"priority": "20"}

	assert.Equal(t, StatementHash(1, []Clause{low}), StatementHash(1, []Clause{high}))
	assert.Equal(t, StatementHash(1, []Clause{widthClause()}), StatementHash(1, []Clause{low}))
}

func TestStatementHashNormalizesUnicode(t *testing.T) {
	composed := Clause{Terms: []Term{{Kind: TermStringLiteral, Value: "caf\u00e9"}, {Kind: TermSymbol, Value: "is", Ordinal: 1}}}
	decomposed := Clause{Terms: []Term{{Kind: TermStringLiteral, Value: "cafe\u0301"}, {Kind: TermSymbol, Value: "is", Ordinal: 1}}}

	assert.Equal(t, StatementHash(1, []Clause{composed}), StatementHash(1, []Clause{decomposed}))
}

func TestCombinationKey(t *testing.T) {
	assert.Equal(t, "a|b", CombinationKey([]string{"a", "b"}))
	assert.NotEqual(t, CombinationKey([]string{"a", "b"}), CombinationKey([]string{"b", "a"}))
}

func TestNewFactAndRule(t *testing.T) {
	fact := NewFact(3, "(5) has width (100)", widthClause())
	assert.True(t, fact.IsFact())
	assert.False(t, fact.IsRule())
	assert.Equal(t, StatementHash(3, []Clause{widthClause()}), fact.Hash)
	assert.Equal(t, "3 claims (5) has width /w/", fact.String())

	rule := NewRule(3, "/x/ has width /w/ , /x/ is red", []Clause{widthClause(), widthClause()})
	assert.True(t, rule.IsRule())
	assert.Equal(t, "(5) has width /w/ , (5) has width /w/", rule.Body())
	assert.Equal(t, "fact", KindFact.String())
	assert.Equal(t, "rule", KindRule.String())
}

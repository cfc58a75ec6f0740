package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/parse"
)

func mustFact(t *testing.T, text string) ir.Statement {
	t.Helper()
	f, err := parse.ParseFact(1, text)
	require.NoError(t, err)
	return f
}

func mustRule(t *testing.T, text string) ir.Statement {
	t.Helper()
	r, err := parse.ParseRule(1, text)
	require.NoError(t, err)
	return r
}

func TestFactKeysCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"clock is ticking", 1},
		{"(5) is red", 2},
		{"(5) has width (100)", 4},
		{"(5) points at (7) from (3)", 4},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Len(t, FactKeys(mustFact(t, tt.text).Clause()), tt.want)
		})
	}
}

func TestQueryKeyMatchesFactKey(t *testing.T) {
	fact := mustFact(t, "(5) has width (100)")
	keys := FactKeys(fact.Clause())

	tests := []struct {
		rule string
	}{
		{"/p/ has width /w/"},
		{"(5) has width /w/"},
		{"/p/ has width (100)"},
		{"(5) has width (100)"},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			q := QueryKey(mustRule(t, tt.rule).Clause())
			assert.Contains(t, keys, q)
		})
	}
}

func TestQueryKeyExcludesOtherValues(t *testing.T) {
	fact := mustFact(t, "(5) has width (100)")
	keys := FactKeys(fact.Clause())

	assert.NotContains(t, keys, QueryKey(mustRule(t, "(6) has width /w/").Clause()))
	assert.NotContains(t, keys, QueryKey(mustRule(t, "/p/ has height /h/").Clause()))
}

func TestIndexLookupOrder(t *testing.T) {
	ix := New()
	a := mustFact(t, "(1) is red")
	b := mustFact(t, "(2) is red")
	c := mustFact(t, "(3) is blue")
	for _, f := range []*ir.Statement{&a, &b, &c} {
		ix.Insert(f)
	}

	red := ix.Lookup(QueryKey(mustRule(t, "/p/ is red").Clause()))
	require.Len(t, red, 2)
	assert.Same(t, &a, red[0])
	assert.Same(t, &b, red[1])

	two := ix.Lookup(QueryKey(mustRule(t, "(2) is red").Clause()))
	require.Len(t, two, 1)
	assert.Same(t, &b, two[0])

	assert.Equal(t, 3, ix.Len())
	assert.Empty(t, ix.Lookup(QueryKey(mustRule(t, "/p/ is green").Clause())))
}

func TestIndexReset(t *testing.T) {
	ix := New()
	f := mustFact(t, "(1) is red")
	ix.Insert(&f)
	require.Equal(t, 1, ix.Len())

	ix.Reset()
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, 0, ix.Keys())
	assert.Empty(t, ix.Lookup(QueryKey(f.Clause())))
}

func TestRelationKey(t *testing.T) {
	fact := mustFact(t, "(5) has width (100)")
	assert.Contains(t, FactKeys(fact.Clause()), RelationKey("_ has width _"))
	assert.Equal(t, QueryKey(mustRule(t, "/p/ has width /w/").Clause()), RelationKey("_ has width _"))
}

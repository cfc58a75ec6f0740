package parse

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func lexAll(text string, mode Mode) []Token {
	return slices.Collect(Lex(text, mode))
}

func TestLexEmptyInput(t *testing.T) {
	assert.Empty(t, lexAll("", ModeFact))
}

func TestLexFact(t *testing.T) {
	got := lexAll(`(5) has width (100) , "hello world" is 'said'`, ModeFact)
	want := []Token{
		{Kind: TokenLiteral, Value: "5", Pos: 0},
		{Kind: TokenSymbol, Value: "has", Pos: 4},
		{Kind: TokenSymbol, Value: "width", Pos: 8},
		{Kind: TokenLiteral, Value: "100", Pos: 14},
		{Kind: TokenClauseDelimiter, Pos: 20},
		{Kind: TokenStringLiteral, Value: "hello world", Pos: 22},
		{Kind: TokenSymbol, Value: "is", Pos: 36},
		{Kind: TokenStringLiteral, Value: "said", Pos: 39},
		{Kind: TokenEndOfInput, Pos: 45},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestLexGroupBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		kinds []TokenKind
		value string
	}{
		{
			name:  "closer not followed by space stays inside group",
			text:  "(a)b c)",
			kinds: []TokenKind{TokenLiteral, TokenEndOfInput},
			value: "a)b c",
		},
		{
			name:  "opener not after space is part of a symbol",
			text:  "f(x)",
			kinds: []TokenKind{TokenSymbol, TokenEndOfInput},
			value: "f(x)",
		},
		{
			name:  "comma inside a group is literal text",
			text:  `"a, b"`,
			kinds: []TokenKind{TokenStringLiteral, TokenEndOfInput},
			value: "a, b",
		},
		{
			name:  "slashes in a string need no escaping",
			text:  "'a/b/c'",
			kinds: []TokenKind{TokenStringLiteral, TokenEndOfInput},
			value: "a/b/c",
		},
		{
			name:  "optional group",
			text:  "[for (5) seconds]",
			kinds: []TokenKind{TokenOptional, TokenEndOfInput},
			value: "for (5) seconds",
		},
		{
			name:  "comma without spaces delimits",
			text:  "a,b",
			kinds: []TokenKind{TokenSymbol, TokenClauseDelimiter, TokenSymbol, TokenEndOfInput},
			value: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lexAll(tt.text, ModeRule)
			assert.Equal(t, tt.kinds, kinds(got))
			assert.Equal(t, tt.value, got[0].Value)
		})
	}
}

func TestLexVariables(t *testing.T) {
	got := lexAll("/p/ has width /w/", ModeRule)
	assert.Equal(t, []TokenKind{TokenVariable, TokenSymbol, TokenSymbol, TokenVariable, TokenEndOfInput}, kinds(got))
	assert.Equal(t, "p", got[0].Value)
	assert.Equal(t, "w", got[3].Value)
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		mode Mode
		err  string
	}{
		{"variable in fact", "/p/ has width (1)", ModeFact, "variables only allowed in rules"},
		{"comma in variable", "/a,b/ is here", ModeRule, "forbidden char in variable: ','"},
		{"unterminated literal", "(5 has width", ModeFact, "unmatched char: ("},
		{"unterminated string", `"never closed`, ModeFact, `unmatched char: "`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lexAll(tt.text, tt.mode)
			var errs []string
			for _, tok := range got {
				if tok.Kind == TokenError {
					errs = append(errs, tok.Err)
				}
			}
			assert.Equal(t, []string{tt.err}, errs)
			assert.Equal(t, TokenEndOfInput, got[len(got)-1].Kind, "stream always ends with EndOfInput")
		})
	}
}

func TestLexStopsEarly(t *testing.T) {
	var n int
	for range Lex("a b c d e", ModeFact) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestTokenKindString(t *testing.T) {
	assert.Equal(t, "Literal", TokenLiteral.String())
	assert.Equal(t, "EndOfInput", TokenEndOfInput.String())
	assert.Equal(t, "TokenKind(99)", TokenKind(99).String())
}

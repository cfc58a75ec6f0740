package parse

import (
	"fmt"
	"iter"
	"strings"
)

// TokenKind tags a lexed token.
type TokenKind int

const (
	TokenStringLiteral TokenKind = iota + 1
	TokenLiteral
	TokenOptional
	TokenVariable
	TokenSymbol
	TokenClauseDelimiter
	TokenError
	TokenEndOfInput
)

var tokenKindNames = map[TokenKind]string{
	TokenStringLiteral:   "StringLiteral",
	TokenLiteral:         "Literal",
	TokenOptional:        "Optional",
	TokenVariable:        "Variable",
	TokenSymbol:          "Symbol",
	TokenClauseDelimiter: "ClauseDelimiter",
	TokenError:           "Error",
	TokenEndOfInput:      "EndOfInput",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Mode selects which token kinds are legal. Variables are only lexed in
// ModeRule; in ModeFact a variable group becomes an error token.
type Mode int

const (
	ModeFact Mode = iota + 1
	ModeRule
)

// Token is one lexed unit. Pos is the rune offset where the token starts.
type Token struct {
	Kind  TokenKind
	Value string
	Pos   int
	Err   string // Set only for TokenError
}

func (t Token) String() string {
	switch t.Kind {
	case TokenError:
		return fmt.Sprintf("%s(%s)@%d", t.Kind, t.Err, t.Pos)
	case TokenClauseDelimiter, TokenEndOfInput:
		return fmt.Sprintf("%s@%d", t.Kind, t.Pos)
	default:
		return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Value, t.Pos)
	}
}

const (
	termDelimiter   = ' '
	clauseDelimiter = ','
)

type groupDef struct {
	kind  TokenKind
	close rune
}

var groups = map[rune]groupDef{
	'"':  {kind: TokenStringLiteral, close: '"'},
	'\'': {kind: TokenStringLiteral, close: '\''},
	'(':  {kind: TokenLiteral, close: ')'},
	'[':  {kind: TokenOptional, close: ']'},
	'/':  {kind: TokenVariable, close: '/'},
}

// Lex returns a lazy token sequence for text.
//
// The sequence is finite and single-pass: it always ends with exactly one
// TokenEndOfInput, except for empty input which yields nothing. Lexical
// errors are reported in-stream as TokenError so a caller can collect all of
// them in one pass.
func Lex(text string, mode Mode) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		if text == "" {
			return
		}
		runes := []rune(text)

		var (
			cur      *strings.Builder
			curKind  TokenKind
			curPos   int
			inGroup  bool
			groupOpn rune
			groupEnd rune
		)

		emit := func() bool {
			if cur == nil {
				return true
			}
			tok := Token{Kind: curKind, Value: cur.String(), Pos: curPos}
			cur = nil
			return yield(tok)
		}

		for i, ch := range runes {
			prev, next := rune(0), rune(0)
			if i > 0 {
				prev = runes[i-1]
			}
			if i+1 < len(runes) {
				next = runes[i+1]
			}

			if g, ok := groups[ch]; ok && !inGroup && (prev == 0 || prev == termDelimiter) {
				inGroup = true
				groupOpn, groupEnd = ch, g.close
				cur, curKind, curPos = &strings.Builder{}, g.kind, i
				continue
			}

			if inGroup && ch == groupEnd && (next == 0 || next == termDelimiter) {
				inGroup = false
				if curKind == TokenVariable {
					if strings.ContainsRune(cur.String(), clauseDelimiter) {
						cur = nil
						if !yield(Token{Kind: TokenError, Pos: curPos, Err: fmt.Sprintf("forbidden char in variable: '%c'", clauseDelimiter)}) {
							return
						}
						continue
					}
					if mode != ModeRule {
						cur = nil
						if !yield(Token{Kind: TokenError, Pos: curPos, Err: "variables only allowed in rules"}) {
							return
						}
						continue
					}
				}
				if !emit() {
					return
				}
				continue
			}

			if !inGroup && ch == clauseDelimiter {
				if !emit() {
					return
				}
				if !yield(Token{Kind: TokenClauseDelimiter, Pos: i}) {
					return
				}
				continue
			}

			if !inGroup && ch == termDelimiter {
				if !emit() {
					return
				}
				continue
			}

			if cur == nil {
				cur, curKind, curPos = &strings.Builder{}, TokenSymbol, i
			}
			cur.WriteRune(ch)
		}

		if inGroup {
			// The partial group is discarded; the error names its opener.
			cur = nil
			if !yield(Token{Kind: TokenError, Pos: curPos, Err: fmt.Sprintf("unmatched char: %c", groupOpn)}) {
				return
			}
		} else if !emit() {
			return
		}
		yield(Token{Kind: TokenEndOfInput, Pos: len(runes)})
	}
}

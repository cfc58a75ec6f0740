package parse

import (
	"fmt"
	"strconv"

	"github.com/roach88/luma/internal/ir"
)

const (
	selfLiteral   = "you"
	optionKeyword = "with"
)

// ParseFact parses text as a single-clause fact owned by owner.
func ParseFact(owner int, text string) (ir.Statement, error) {
	return Parse(owner, text, ir.KindFact)
}

// ParseRule parses text as a rule of one or more clauses owned by owner.
func ParseRule(owner int, text string) (ir.Statement, error) {
	return Parse(owner, text, ir.KindRule)
}

// Parse parses text into a statement of the given kind.
//
// All lexical errors are collected before any statement is built, so a
// *ParseError lists every bad token in the text, not just the first.
func Parse(owner int, text string, kind ir.Kind) (ir.Statement, error) {
	clauses, err := parseClauses(owner, text, kind)
	if err != nil {
		return ir.Statement{}, err
	}

	switch kind {
	case ir.KindFact:
		if len(clauses) != 1 {
			return ir.Statement{}, newParseError(owner, text,
				fmt.Sprintf("a fact takes exactly one clause, got %d", len(clauses)))
		}
		return ir.NewFact(owner, text, clauses[0]), nil
	case ir.KindRule:
		return ir.NewRule(owner, text, clauses), nil
	default:
		return ir.Statement{}, fmt.Errorf("parse: unknown statement kind %v", kind)
	}
}

func modeFor(kind ir.Kind) Mode {
	if kind == ir.KindRule {
		return ModeRule
	}
	return ModeFact
}

// clauseBuilder accumulates the terms, options and optional sub-clauses of
// the clause being parsed.
type clauseBuilder struct {
	clause ir.Clause
}

func (b *clauseBuilder) addTerm(kind ir.TermKind, value string) {
	b.clause.Terms = append(b.clause.Terms, ir.Term{
		Kind:    kind,
		Value:   value,
		Ordinal: len(b.clause.Terms),
	})
}

func (b *clauseBuilder) addOption(name, value string) {
	if b.clause.Options == nil {
		b.clause.Options = make(map[string]string)
	}
	b.clause.Options[name] = value
}

func (b *clauseBuilder) take() ir.Clause {
	c := b.clause
	b.clause = ir.Clause{}
	return c
}

func parseClauses(owner int, text string, kind ir.Kind) ([]ir.Clause, error) {
	var tokens []Token
	var lexErrs []string
	for tok := range Lex(text, modeFor(kind)) {
		if tok.Kind == TokenError {
			lexErrs = append(lexErrs, tok.Err)
		}
		tokens = append(tokens, tok)
	}
	if len(tokens) == 0 {
		return nil, newParseError(owner, text, "empty statement")
	}
	if len(lexErrs) > 0 {
		return nil, newParseError(owner, text, lexErrs...)
	}

	var (
		clauses     []ir.Clause
		b           clauseBuilder
		inOptions   bool
		expectName  bool
		optionName  string
		endOfClause = func() {
			// A clause without terms is dropped along with anything attached to it.
			if c := b.take(); len(c.Terms) > 0 {
				clauses = append(clauses, c)
			}
			inOptions = false
		}
	)

	for _, tok := range tokens {
		if inOptions {
			switch tok.Kind {
			case TokenSymbol:
				if !expectName {
					return nil, newParseError(owner, text,
						fmt.Sprintf("expecting a literal or variable in options list near %s", tok.Value))
				}
				optionName, expectName = tok.Value, false
			case TokenLiteral, TokenStringLiteral, TokenVariable:
				if expectName {
					return nil, newParseError(owner, text,
						fmt.Sprintf("expecting a name in options list near %s", tok.Value))
				}
				b.addOption(optionName, tok.Value)
				expectName = true
			case TokenOptional:
				return nil, newParseError(owner, text,
					fmt.Sprintf("optional clause not allowed in options list near [%s]", tok.Value))
			case TokenClauseDelimiter, TokenEndOfInput:
				if !expectName {
					return nil, newParseError(owner, text,
						fmt.Sprintf("expecting a literal or variable in options list near %s", optionName))
				}
				endOfClause()
			}
			continue
		}

		switch tok.Kind {
		case TokenStringLiteral:
			b.addTerm(ir.TermStringLiteral, tok.Value)
		case TokenLiteral:
			value := tok.Value
			if value == selfLiteral {
				value = strconv.Itoa(owner)
			}
			b.addTerm(ir.TermLiteral, value)
		case TokenVariable:
			b.addTerm(ir.TermVariable, tok.Value)
		case TokenSymbol:
			if tok.Value == optionKeyword {
				inOptions, expectName = true, true
				continue
			}
			b.addTerm(ir.TermSymbol, tok.Value)
		case TokenOptional:
			nested, err := parseClauses(owner, tok.Value, kind)
			if err != nil {
				pe, _ := AsParseError(err)
				msgs := make([]string, 0, len(pe.Messages))
				for _, m := range pe.Messages {
					msgs = append(msgs, fmt.Sprintf("in optional clause [%s]: %s", tok.Value, m))
				}
				return nil, newParseError(owner, text, msgs...)
			}
			if len(nested) != 1 {
				return nil, newParseError(owner, text,
					fmt.Sprintf("optional clause [%s] takes exactly one clause, got %d", tok.Value, len(nested)))
			}
			b.clause.Optional = append(b.clause.Optional, nested[0])
		case TokenClauseDelimiter, TokenEndOfInput:
			endOfClause()
		}
	}

	if len(clauses) == 0 {
		return nil, newParseError(owner, text, "empty statement")
	}
	return clauses, nil
}

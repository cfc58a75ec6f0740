package ir

import (
	"fmt"
	"strings"
)

// Kind tags a Statement as a Fact or a Rule.
type Kind int

const (
	// KindFact is a ground statement with exactly one clause.
	KindFact Kind = iota + 1
	// KindRule is a pattern of one or more implicitly AND-ed clauses.
	KindRule
)

// String returns "fact" or "rule".
func (k Kind) String() string {
	switch k {
	case KindFact:
		return "fact"
	case KindRule:
		return "rule"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ClauseSeparator joins clauses in rendered statement text.
const ClauseSeparator = " , "

// Statement is the tagged variant shared by facts and rules.
//
// INVARIANTS:
//   - KindFact statements hold exactly one clause and no variables
//   - KindRule statements hold at least one clause
//   - Hash is StatementHash(Owner, Clauses) and never recomputed
type Statement struct {
	Kind    Kind     `json:"kind"`
	Owner   int      `json:"owner"`
	Text    string   `json:"text"`
	Clauses []Clause `json:"clauses"`
	Hash    string   `json:"hash"`
	Seq     int64    `json:"seq"` // Insertion ordinal, stamped by the store
}

// NewFact builds a fact statement and computes its hash.
func NewFact(owner int, text string, clause Clause) Statement {
	return newStatement(KindFact, owner, text, []Clause{clause})
}

// NewRule builds a rule statement and computes its hash.
func NewRule(owner int, text string, clauses []Clause) Statement {
	return newStatement(KindRule, owner, text, clauses)
}

func newStatement(kind Kind, owner int, text string, clauses []Clause) Statement {
	return Statement{
		Kind:    kind,
		Owner:   owner,
		Text:    text,
		Clauses: clauses,
		Hash:    StatementHash(owner, clauses),
	}
}

// IsFact reports whether the statement is a fact.
func (s Statement) IsFact() bool {
	return s.Kind == KindFact
}

// IsRule reports whether the statement is a rule.
func (s Statement) IsRule() bool {
	return s.Kind == KindRule
}

// Clause returns the single clause of a fact (the first clause of a rule).
func (s Statement) Clause() Clause {
	if len(s.Clauses) == 0 {
		return Clause{}
	}
	return s.Clauses[0]
}

// Body renders the clauses, options included, joined by ClauseSeparator.
func (s Statement) Body() string {
	return renderClauses(s.Clauses)
}

// String renders the statement for logs: "<owner> claims <body>" or
// "<owner> when <body>".
func (s Statement) String() string {
	verb := "claims"
	if s.Kind == KindRule {
		verb = "when"
	}
	return fmt.Sprintf("%d %s %s", s.Owner, verb, s.Body())
}

func renderClauses(clauses []Clause) string {
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, ClauseSeparator)
}

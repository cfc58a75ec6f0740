package ir

import (
	"slices"
	"strings"
)

// TermKind tags the four kinds of clause slot.
type TermKind int

const (
	// TermStringLiteral is a quoted value: "text" or 'text'.
	TermStringLiteral TermKind = iota + 1
	// TermLiteral is a bare value in parentheses: (value).
	TermLiteral
	// TermVariable is a named pattern slot: /name/. Rules only.
	TermVariable
	// TermSymbol is a fixed keyword that forms the relation shape.
	TermSymbol
)

// String returns the kind name used in diagnostics and golden dumps.
func (k TermKind) String() string {
	switch k {
	case TermStringLiteral:
		return "string"
	case TermLiteral:
		return "literal"
	case TermVariable:
		return "variable"
	case TermSymbol:
		return "symbol"
	default:
		return "unknown"
	}
}

// RelationPlaceholder replaces literal and variable slots in a Relation.
const RelationPlaceholder = "_"

// Term is one slot of a clause.
type Term struct {
	Kind    TermKind `json:"kind"`
	Value   string   `json:"value"`
	Ordinal int      `json:"ordinal"` // Position within the owning clause
}

// IsLiteral reports whether the term carries a ground value.
func (t Term) IsLiteral() bool {
	return t.Kind == TermLiteral || t.Kind == TermStringLiteral
}

// IsVariable reports whether the term is a pattern variable.
func (t Term) IsVariable() bool {
	return t.Kind == TermVariable
}

// String renders the term in statement syntax.
func (t Term) String() string {
	switch t.Kind {
	case TermStringLiteral:
		return `"` + t.Value + `"`
	case TermLiteral:
		return "(" + t.Value + ")"
	case TermVariable:
		return "/" + t.Value + "/"
	default:
		return t.Value
	}
}

// Clause is one relational fragment: ordered terms, named options, and
// nested optional sub-clauses.
type Clause struct {
	Terms    []Term            `json:"terms"`
	Options  map[string]string `json:"options,omitempty"`
	Optional []Clause          `json:"optional,omitempty"`
}

// Len returns the number of terms.
func (c Clause) Len() int {
	return len(c.Terms)
}

// Relation returns the clause shape: symbols verbatim, every literal or
// variable slot replaced by RelationPlaceholder.
//
// Example: `(5) has width /w/` → `_ has width _`
func (c Clause) Relation() string {
	parts := make([]string, len(c.Terms))
	for i, t := range c.Terms {
		if t.IsLiteral() || t.IsVariable() {
			parts[i] = RelationPlaceholder
		} else {
			parts[i] = t.Value
		}
	}
	return strings.Join(parts, " ")
}

// Args returns the argument positions of the clause (every non-symbol term)
// in order. Index keys are derived from the first two.
func (c Clause) Args() []Term {
	args := make([]Term, 0, len(c.Terms))
	for _, t := range c.Terms {
		if t.IsLiteral() || t.IsVariable() {
			args = append(args, t)
		}
	}
	return args
}

// Variables returns the variable names in term order, duplicates included.
func (c Clause) Variables() []string {
	var names []string
	for _, t := range c.Terms {
		if t.IsVariable() {
			names = append(names, t.Value)
		}
	}
	return names
}

// Ordinals returns the positions at which the variable name occurs.
func (c Clause) Ordinals(name string) []int {
	var ordinals []int
	for _, t := range c.Terms {
		if t.IsVariable() && t.Value == name {
			ordinals = append(ordinals, t.Ordinal)
		}
	}
	return ordinals
}

// TermValue returns the value at ordinal, or false if out of range.
func (c Clause) TermValue(ordinal int) (string, bool) {
	if ordinal < 0 || ordinal >= len(c.Terms) {
		return "", false
	}
	return c.Terms[ordinal].Value, true
}

// HasVariables reports whether any term, including those of optional
// sub-clauses, is a pattern variable.
func (c Clause) HasVariables() bool {
	for _, t := range c.Terms {
		if t.IsVariable() {
			return true
		}
	}
	for _, opt := range c.Optional {
		if opt.HasVariables() {
			return true
		}
	}
	return false
}

// TermString renders only the terms, joined by single spaces. This is the
// form statement identity is computed from.
func (c Clause) TermString() string {
	parts := make([]string, len(c.Terms))
	for i, t := range c.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// String renders the clause in statement syntax: terms joined by single
// spaces, followed by any options in name order. Optional sub-clauses are
// not rendered.
func (c Clause) String() string {
	parts := make([]string, 0, len(c.Terms)+1+2*len(c.Options))
	for _, t := range c.Terms {
		parts = append(parts, t.String())
	}
	if len(c.Options) > 0 {
		names := make([]string, 0, len(c.Options))
		for name := range c.Options {
			names = append(names, name)
		}
		slices.Sort(names)
		parts = append(parts, "with")
		for _, name := range names {
			parts = append(parts, name, "("+c.Options[name]+")")
		}
	}
	return strings.Join(parts, " ")
}

package program

import (
	"fmt"
	"strings"

	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/parse"
)

// Validation error codes (E200-E299)
const (
	ErrDuplicateProgramID = "E201" // two definitions share an id
	ErrRuleNoClauses      = "E202" // rule has an empty when list
	ErrInvalidStatement   = "E203" // statement text does not parse
	ErrUndefinedVariable  = "E204" // template refers to an unbound variable
	ErrRuleNoActions      = "E205" // rule has neither then nor otherwise
)

// ValidationError describes one problem in a program definition.
type ValidationError struct {
	Program int    `json:"program"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] program %d: %s: %s", e.Code, e.Program, e.Field, e.Message)
}

// templatePlaceholder stands in for ${name} when checking that a template
// parses.
const templatePlaceholder = "x"

// Validate checks a definition and returns every problem found.
func Validate(def *Definition) []ValidationError {
	v := &validator{program: def.ID}
	v.statements("claims", def.Claims, ir.KindFact, nil)
	v.statements("wishes", def.Wishes, ir.KindFact, nil)
	v.statements("remember", def.Remember, ir.KindFact, nil)
	for i, rule := range def.Rules {
		v.rule(fmt.Sprintf("rules[%d]", i), rule, nil)
	}
	return v.errs
}

// ValidateAll validates every definition and checks ids are unique.
func ValidateAll(defs []Definition) []ValidationError {
	var errs []ValidationError
	seen := make(map[int]string)
	for i := range defs {
		def := &defs[i]
		if prev, dup := seen[def.ID]; dup {
			errs = append(errs, ValidationError{
				Program: def.ID,
				Field:   "id",
				Message: fmt.Sprintf("duplicate program id (also in %s)", prev),
				Code:    ErrDuplicateProgramID,
			})
		}
		seen[def.ID] = def.Source
		errs = append(errs, Validate(def)...)
	}
	return errs
}

type validator struct {
	program int
	errs    []ValidationError
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Program: v.program,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

// statements checks texts of the given kind. bound is nil outside rules,
// where templates are not expanded.
func (v *validator) statements(field string, texts []string, kind ir.Kind, bound map[string]bool) {
	for i, text := range texts {
		v.statement(fmt.Sprintf("%s[%d]", field, i), text, kind, bound)
	}
}

func (v *validator) statement(field, text string, kind ir.Kind, bound map[string]bool) (ir.Statement, bool) {
	for _, name := range References(text) {
		if !bound[name] {
			v.add(field, ErrUndefinedVariable, "undefined variable %q in %q", name, text)
		}
	}
	stmt, err := parse.Parse(v.program, templatePlaceholders(text), kind)
	if err != nil {
		msg := err.Error()
		if pe, ok := parse.AsParseError(err); ok {
			msg = strings.Join(pe.Messages, "; ")
		}
		v.add(field, ErrInvalidStatement, "%s in %q", msg, text)
		return ir.Statement{}, false
	}
	return stmt, true
}

func (v *validator) rule(field string, rule RuleSpec, outer map[string]bool) {
	if len(rule.When) == 0 {
		v.add(field+".when", ErrRuleNoClauses, "rule needs at least one clause")
		return
	}
	if rule.Then.Empty() && rule.Otherwise.Empty() {
		v.add(field, ErrRuleNoActions, "rule has neither then nor otherwise actions")
	}

	text := strings.Join(rule.When, ir.ClauseSeparator)
	stmt, ok := v.statement(field+".when", text, ir.KindRule, outer)
	if !ok {
		return
	}
	inner := boundNames(stmt)
	for name := range outer {
		inner[name] = true
	}
	v.actions(field+".then", rule.Then, inner)
	v.actions(field+".otherwise", rule.Otherwise, outer)
}

func (v *validator) actions(field string, a *Actions, bound map[string]bool) {
	if a == nil {
		return
	}
	if bound == nil {
		bound = map[string]bool{}
	}
	v.statements(field+".claims", a.Claims, ir.KindFact, bound)
	v.statements(field+".wishes", a.Wishes, ir.KindFact, bound)
	v.statements(field+".remember", a.Remember, ir.KindFact, bound)
	v.statements(field+".forget", a.Forget, ir.KindFact, bound)
	for _, name := range References(a.Log) {
		if !bound[name] {
			v.add(field+".log", ErrUndefinedVariable, "undefined variable %q in %q", name, a.Log)
		}
	}
	for i, rule := range a.Rules {
		v.rule(fmt.Sprintf("%s.rules[%d]", field, i), rule, bound)
	}
}

// boundNames returns every name a match of stmt can bind: variables,
// option names and variables of optional sub-clauses.
func boundNames(stmt ir.Statement) map[string]bool {
	names := make(map[string]bool)
	var walk func(c ir.Clause)
	walk = func(c ir.Clause) {
		for _, name := range c.Variables() {
			names[name] = true
		}
		for name := range c.Options {
			names[name] = true
		}
		for _, opt := range c.Optional {
			walk(opt)
		}
	}
	for _, c := range stmt.Clauses {
		walk(c)
	}
	return names
}

func templatePlaceholders(text string) string {
	return templateVarPattern.ReplaceAllString(text, templatePlaceholder)
}

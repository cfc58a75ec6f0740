package program

import (
	"errors"
	"fmt"

	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/runtime"
)

// Program runs a Definition. It implements runtime.Program.
type Program struct {
	def Definition
}

// New wraps a definition.
func New(def Definition) *Program {
	return &Program{def: def}
}

// Programs wraps every definition.
func Programs(defs []Definition) []runtime.Program {
	out := make([]runtime.Program, len(defs))
	for i, def := range defs {
		out[i] = New(def)
	}
	return out
}

// ID implements runtime.Program.
func (p *Program) ID() int {
	return p.def.ID
}

// Resident implements runtime.Program.
func (p *Program) Resident() bool {
	return p.def.Resident
}

// Definition returns the program's definition.
func (p *Program) Definition() Definition {
	return p.def
}

// Run claims the program's statements and registers its rules. Errors from
// individual statements are joined; the rest of the program still runs.
func (p *Program) Run(s *runtime.Scope) error {
	var errs []error
	for _, text := range p.def.Claims {
		errs = append(errs, s.Claim(text))
	}
	for _, text := range p.def.Wishes {
		errs = append(errs, s.Wish(text))
	}
	for _, text := range p.def.Remember {
		errs = append(errs, s.Remember(text))
	}
	for _, rule := range p.def.Rules {
		errs = append(errs, register(s, rule, ir.Binding{}))
	}
	return errors.Join(errs...)
}

// register expands the rule's clause templates against outer and registers
// it. Callbacks see outer merged with the match binding, so nested rules
// can refer to variables bound further out.
func register(s *runtime.Scope, rule RuleSpec, outer ir.Binding) error {
	clauses := make([]string, len(rule.When))
	for i, text := range rule.When {
		expanded, err := Expand(text, outer)
		if err != nil {
			return fmt.Errorf("rule %q: %w", text, err)
		}
		clauses[i] = expanded
	}

	b := s.When(clauses...)
	if !rule.Then.Empty() {
		then := rule.Then
		b = b.Then(func(match ir.Binding) {
			bound := outer.Clone()
			bound.Merge(match)
			if err := perform(s, then, bound); err != nil {
				s.LogError(err)
			}
		})
	}
	if !rule.Otherwise.Empty() {
		otherwise := rule.Otherwise
		b = b.Otherwise(func() {
			if err := perform(s, otherwise, outer); err != nil {
				s.LogError(err)
			}
		})
	}
	_, err := b.Register()
	return err
}

// perform carries out actions with b.
func perform(s *runtime.Scope, a *Actions, b ir.Binding) error {
	var errs []error
	each := func(templates []string, do func(string) error) {
		for _, tmpl := range templates {
			text, err := Expand(tmpl, b)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			errs = append(errs, do(text))
		}
	}

	each(a.Claims, s.Claim)
	each(a.Wishes, s.Wish)
	each(a.Remember, s.Remember)
	each(a.Forget, s.Forget)
	if a.Log != "" {
		each([]string{a.Log}, func(msg string) error {
			s.Logger().Info(msg, "bindings", b.Map())
			return nil
		})
	}
	for _, rule := range a.Rules {
		errs = append(errs, register(s, rule, b))
	}
	return errors.Join(errs...)
}

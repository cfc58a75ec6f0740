// Package program loads declarative programs and runs them on the table.
//
// A program file describes what a program claims every frame and which
// rules it registers. Rule actions are text templates: ${name} is replaced
// by the value bound to name when the rule fires.
//
//	id: 12
//	name: lamp
//	claims:
//	  - (you) is a lamp
//	rules:
//	  - when: ["/p/ is a lamp", "/p/ has width /w/"]
//	    then:
//	      claims: ["(${p}) glows (${w})"]
//	    otherwise:
//	      log: no lamp on the table
//
// Files may be YAML (.yaml, .yml) or CUE (.cue); both decode into the same
// Definition.
package program

import "strconv"

// Definition is a program as written in a program file.
type Definition struct {
	ID       int        `yaml:"id" json:"id"`
	Name     string     `yaml:"name,omitempty" json:"name,omitempty"`
	Resident bool       `yaml:"resident,omitempty" json:"resident,omitempty"`
	Claims   []string   `yaml:"claims,omitempty" json:"claims,omitempty"`
	Wishes   []string   `yaml:"wishes,omitempty" json:"wishes,omitempty"`
	Remember []string   `yaml:"remember,omitempty" json:"remember,omitempty"`
	Rules    []RuleSpec `yaml:"rules,omitempty" json:"rules,omitempty"`

	// Source is the file the definition was loaded from. Not decoded.
	Source string `yaml:"-" json:"-"`
}

// RuleSpec is one When rule. Then runs per match; Otherwise runs at most
// once per frame, when some clause has no candidate facts.
type RuleSpec struct {
	When      []string `yaml:"when" json:"when"`
	Then      *Actions `yaml:"then,omitempty" json:"then,omitempty"`
	Otherwise *Actions `yaml:"otherwise,omitempty" json:"otherwise,omitempty"`
}

// Actions are the effects of a rule firing. Every string is a template.
type Actions struct {
	Claims   []string   `yaml:"claims,omitempty" json:"claims,omitempty"`
	Wishes   []string   `yaml:"wishes,omitempty" json:"wishes,omitempty"`
	Remember []string   `yaml:"remember,omitempty" json:"remember,omitempty"`
	Forget   []string   `yaml:"forget,omitempty" json:"forget,omitempty"`
	Log      string     `yaml:"log,omitempty" json:"log,omitempty"`
	Rules    []RuleSpec `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Empty reports whether a has no effect.
func (a *Actions) Empty() bool {
	return a == nil || (len(a.Claims) == 0 && len(a.Wishes) == 0 && len(a.Remember) == 0 &&
		len(a.Forget) == 0 && a.Log == "" && len(a.Rules) == 0)
}

// Label returns the name if set, else the id.
func (d *Definition) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return strconv.Itoa(d.ID)
}

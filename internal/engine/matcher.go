package engine

import (
	"errors"
	"iter"
	"slices"

	"github.com/roach88/luma/internal/index"
	"github.com/roach88/luma/internal/ir"
)

// ErrNoMatch is returned by Unify when a candidate clause has a different
// shape than the pattern: another length or another symbol somewhere.
var ErrNoMatch = errors.New("clause does not match")

// Unify binds pattern against a candidate fact clause.
//
// The check is all-or-nothing per clause: symbols must agree position by
// position before any variable is bound. Pattern literals are not compared;
// the index key already pins the leading ones. Variables bind to the
// candidate's value when the candidate term is a literal. Each pattern
// option copies the same-named candidate option, keyed by option name.
// Optional sub-clauses are unified pairwise against every candidate optional
// sub-clause; those that agree contribute their bindings and those that do
// not are skipped.
func Unify(pattern, candidate ir.Clause) (ir.Binding, error) {
	b := ir.Binding{}
	if err := unifyInto(pattern, candidate, b); err != nil {
		return nil, err
	}
	return b, nil
}

func unifyInto(pattern, candidate ir.Clause, b ir.Binding) error {
	if len(pattern.Terms) != len(candidate.Terms) {
		return ErrNoMatch
	}
	for i, pt := range pattern.Terms {
		ct := candidate.Terms[i]
		switch {
		case pt.Kind == ir.TermSymbol:
			if ct.Kind != ir.TermSymbol || ct.Value != pt.Value {
				return ErrNoMatch
			}
		}
	}

	for i, pt := range pattern.Terms {
		if pt.IsVariable() && candidate.Terms[i].IsLiteral() {
			b[pt.Value] = candidate.Terms[i].Value
		}
	}
	for name := range pattern.Options {
		if v, ok := candidate.Options[name]; ok {
			b[name] = v
		}
	}
	for _, po := range pattern.Optional {
		for _, co := range candidate.Optional {
			_ = unifyInto(po, co, b)
		}
	}
	return nil
}

// Outcome summarizes one evaluation of a rule against the index.
type Outcome struct {
	// Matched is false when some clause had no candidate facts at all.
	// Only then does a rule's fallback fire.
	Matched bool

	// Combinations counts the candidate combinations considered.
	Combinations int

	// Fired counts callback invocations.
	Fired int
}

// sharedVariables returns, in sorted order, every variable name that occurs
// more than once across the top-level terms of the clauses. A single clause
// is never joined, so it has no shared variables.
func sharedVariables(clauses []ir.Clause) []string {
	if len(clauses) < 2 {
		return nil
	}
	counts := make(map[string]int)
	for _, c := range clauses {
		for _, name := range c.Variables() {
			counts[name]++
		}
	}
	var shared []string
	for name, n := range counts {
		if n > 1 {
			shared = append(shared, name)
		}
	}
	slices.Sort(shared)
	return shared
}

// sharedAgree reports whether every shared variable reads the same value at
// each of its positions across the combination.
func sharedAgree(clauses []ir.Clause, combo []*ir.Statement, shared []string) bool {
	for _, name := range shared {
		var value string
		seen := false
		for i, c := range clauses {
			candidate := combo[i].Clause()
			for _, ord := range c.Ordinals(name) {
				v, ok := candidate.TermValue(ord)
				if !ok {
					return false
				}
				if !seen {
					value, seen = v, true
				} else if v != value {
					return false
				}
			}
		}
	}
	return true
}

// combinations yields the cartesian product of lists, last list varying
// fastest. The yielded slice is reused between iterations.
func combinations(lists [][]*ir.Statement) iter.Seq[[]*ir.Statement] {
	return func(yield func([]*ir.Statement) bool) {
		if len(lists) == 0 {
			return
		}
		for _, l := range lists {
			if len(l) == 0 {
				return
			}
		}
		idx := make([]int, len(lists))
		combo := make([]*ir.Statement, len(lists))
		for {
			for i, l := range lists {
				combo[i] = l[idx[i]]
			}
			if !yield(combo) {
				return
			}
			i := len(lists) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(lists[i]) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

// match evaluates one rule against the current index and invokes its
// callback for every new, consistent combination.
//
// Candidate lists are captured before any callback runs. Facts asserted by a
// callback are matched by the nested evaluation that their own assertion
// triggers, not by this one.
func (s *Store) match(r *ruleEntry) Outcome {
	clauses := r.stmt.Clauses
	lists := make([][]*ir.Statement, len(clauses))
	for i, key := range r.keys {
		candidates := s.index.Lookup(key)
		if len(candidates) == 0 {
			return Outcome{}
		}
		lists[i] = candidates
	}

	out := Outcome{Matched: true}
	hashes := make([]string, len(clauses))
	for combo := range combinations(lists) {
		out.Combinations++
		if len(r.shared) > 0 && !sharedAgree(clauses, combo, r.shared) {
			continue
		}
		for i, f := range combo {
			hashes[i] = f.Hash
		}
		if !s.history.Record(r.stmt.Hash, ir.CombinationKey(hashes)) {
			continue
		}

		binding := ir.Binding{}
		for i, c := range clauses {
			if err := unifyInto(c, combo[i].Clause(), binding); err != nil {
				// The index key matched but the terms did not; the callback
				// still runs with whatever the other clauses bound.
				s.logger.Debug("clause did not bind",
					"rule", r.stmt.Text,
					"owner", r.stmt.Owner,
					"fact", combo[i].Text,
				)
			}
		}

		if err := s.step(); err != nil {
			return out
		}
		s.logger.Debug("match",
			"rule", r.stmt.Text,
			"owner", r.stmt.Owner,
			"facts", factTexts(combo),
		)
		out.Fired++
		s.fire(r, binding)
	}
	return out
}

func factTexts(combo []*ir.Statement) []string {
	out := make([]string, len(combo))
	for i, f := range combo {
		out[i] = f.String()
	}
	return out
}

func queryKeys(clauses []ir.Clause) []index.Key {
	keys := make([]index.Key, len(clauses))
	for i, c := range clauses {
		keys[i] = index.QueryKey(c)
	}
	return keys
}

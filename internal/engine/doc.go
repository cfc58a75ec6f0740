// Package engine implements the luma fact store and forward-chaining rule
// engine.
//
// ARCHITECTURE:
//
// Facts and rules are ir.Statement values. The Store files each fact in a
// multi-key index (see package index) and keeps rules in registration order.
// Every assertion re-evaluates every rule; a rule is evaluated by looking up
// one candidate list per clause, walking the cartesian product of those
// lists, keeping the combinations whose shared variables agree, and invoking
// the rule callback once per combination it has not seen before.
//
// Evaluation Flow:
//  1. Assert(fact): skip duplicates, stamp Seq, index the fact
//  2. For each rule (snapshot, registration order): match
//  3. match: candidate lists -> combinations -> shared-variable filter ->
//     match history -> Unify each clause -> callback
//  4. A callback may Assert or Register, recursing into step 1
//  5. A rule whose clauses found no candidates fires its fallback once
//
// The store is single-threaded. Program units running concurrently buffer
// their statements and hand them to the goroutine that owns the store (see
// package runtime).
//
// CRITICAL PATTERNS:
//
// Idempotency is the fixpoint guard: a fact or rule whose hash is already
// present is a silent no-op, and match history keeps a rule from firing twice
// for one combination. The per-frame step quota bounds chains that keep
// producing distinct facts.
//
// Errors never escape a frame: parse failures, quota overruns and callback
// panics are written to the ErrorLog, which Clear empties.
package engine

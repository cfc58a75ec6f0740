package engine

// MatchHistory remembers which fact combinations each rule has already been
// invoked with.
//
// Every fact assertion re-runs every registered rule, so without this record
// a rule would fire again for combinations it has already seen. A
// combination is identified by ir.CombinationKey over the participating fact
// hashes in clause order; history is kept per rule hash and lives until the
// store is cleared.
//
// CRITICAL DISTINCTION from the step quota:
//   - History: "Has this rule seen this exact combination?" (skips one firing)
//   - Quota: "Has this frame done too much work?" (rejects further asserts)
//
// MatchHistory is not safe for concurrent use.
type MatchHistory struct {
	seen map[string]map[string]struct{} // rule hash -> combination key
}

// NewMatchHistory creates an empty history.
func NewMatchHistory() *MatchHistory {
	return &MatchHistory{seen: make(map[string]map[string]struct{})}
}

// Seen reports whether the rule has already been invoked with combination.
func (h *MatchHistory) Seen(ruleHash, combination string) bool {
	_, ok := h.seen[ruleHash][combination]
	return ok
}

// Record marks the combination as invoked for the rule. It returns false if
// it was already recorded.
func (h *MatchHistory) Record(ruleHash, combination string) bool {
	rule := h.seen[ruleHash]
	if rule == nil {
		rule = make(map[string]struct{})
		h.seen[ruleHash] = rule
	}
	if _, ok := rule[combination]; ok {
		return false
	}
	rule[combination] = struct{}{}
	return true
}

// Forget drops the history of one rule.
func (h *MatchHistory) Forget(ruleHash string) {
	delete(h.seen, ruleHash)
}

// Reset drops all history.
func (h *MatchHistory) Reset() {
	clear(h.seen)
}

// Rules returns the number of rules with recorded history.
func (h *MatchHistory) Rules() int {
	return len(h.seen)
}

// Size returns the number of combinations recorded for a rule.
func (h *MatchHistory) Size(ruleHash string) int {
	return len(h.seen[ruleHash])
}

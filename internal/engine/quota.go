package engine

// DefaultMaxSteps bounds the assertions and rule firings in one frame.
const DefaultMaxSteps = 10000

// StepQuota counts the work done since the last store Clear and enforces a
// ceiling on it.
//
// Rule callbacks may assert facts that fire further rules. Statement
// idempotency is the normal fixpoint guard; the quota catches chains that
// keep producing new facts (a counter incremented by a rule, for example).
//
// A limit of zero or less disables enforcement.
type StepQuota struct {
	limit   int
	current int
}

// NewStepQuota creates a quota with the given limit.
func NewStepQuota(limit int) *StepQuota {
	return &StepQuota{limit: limit}
}

// Check consumes one step. It returns a quota RuntimeError once the limit is
// passed; every later call fails too until Reset.
func (q *StepQuota) Check() error {
	q.current++
	if q.limit > 0 && q.current > q.limit {
		return NewQuotaError(q.current, q.limit)
	}
	return nil
}

// Exhausted reports whether the limit has been passed.
func (q *StepQuota) Exhausted() bool {
	return q.limit > 0 && q.current > q.limit
}

// Reset sets the step count back to 0.
func (q *StepQuota) Reset() {
	q.current = 0
}

// Current returns the step count.
func (q *StepQuota) Current() int {
	return q.current
}

// Limit returns the configured ceiling.
func (q *StepQuota) Limit() int {
	return q.limit
}

package harness

// FrameTrace is what one frame left in the store.
type FrameTrace struct {
	Seq     int64    `json:"seq"`
	Clock   float64  `json:"clock"`
	Markers []int    `json:"markers"`
	Facts   []string `json:"facts"` // Fact bodies in insertion order
	Errors  []string `json:"errors,omitempty"`
}

// Has reports whether the frame holds a fact with the given body.
func (f FrameTrace) Has(body string) bool {
	for _, fact := range f.Facts {
		if fact == body {
			return true
		}
	}
	return false
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates overall test success.
	// True if every frame expectation and assertion held.
	Pass bool `json:"pass"`

	// Frames holds one trace per executed frame, in order.
	Frames []FrameTrace `json:"frames"`

	// Errors contains failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Frames: []FrameTrace{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Last returns the last frame trace. ok is false before any frame ran.
func (r *Result) Last() (FrameTrace, bool) {
	if len(r.Frames) == 0 {
		return FrameTrace{}, false
	}
	return r.Frames[len(r.Frames)-1], true
}

// Frame returns the trace of the 1-based frame n; n <= 0 means the last.
func (r *Result) Frame(n int) (FrameTrace, bool) {
	if n <= 0 {
		return r.Last()
	}
	if n > len(r.Frames) {
		return FrameTrace{}, false
	}
	return r.Frames[n-1], true
}

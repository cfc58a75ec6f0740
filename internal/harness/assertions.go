package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the frame's facts to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Facts    []string // Facts of the frame checked, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Facts) > 0 {
		fmt.Fprintf(&buf, "\nFacts:\n")
		for i, fact := range e.Facts {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, fact)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion against the result and returns
// one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertFactPresent:
		return assertFact(result, a, true)
	case AssertFactAbsent:
		return assertFact(result, a, false)
	case AssertFactCount:
		return assertFactCount(result, a)
	case AssertErrorContains:
		return assertErrorContains(result, a)
	case AssertNoErrors:
		return assertNoErrors(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func frameFor(result *Result, a Assertion) (FrameTrace, error) {
	f, ok := result.Frame(a.Frame)
	if !ok {
		return FrameTrace{}, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("frame %d", a.Frame),
			Actual:   fmt.Sprintf("only %d frames ran", len(result.Frames)),
		}
	}
	return f, nil
}

// assertFact checks that a fact body is (or is not) in a frame.
func assertFact(result *Result, a Assertion, want bool) error {
	f, err := frameFor(result, a)
	if err != nil {
		return err
	}
	if f.Has(a.Fact) == want {
		return nil
	}

	expected, actual := "fact "+a.Fact, "not found in frame"
	if !want {
		expected, actual = "no fact "+a.Fact, "found in frame"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s (frame %d)", expected, f.Seq),
		Actual:   actual,
		Facts:    f.Facts,
	}
}

// assertFactCount checks how many fact bodies contain the pattern.
func assertFactCount(result *Result, a Assertion) error {
	f, err := frameFor(result, a)
	if err != nil {
		return err
	}
	count := 0
	for _, fact := range f.Facts {
		if strings.Contains(fact, a.Pattern) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d facts containing %q (frame %d)", a.Count, a.Pattern, f.Seq),
			Actual:   fmt.Sprintf("%d facts", count),
			Facts:    f.Facts,
		}
	}
	return nil
}

// errorFrames returns the frames an error assertion looks at: one frame,
// or all of them when Frame is 0.
func errorFrames(result *Result, a Assertion) ([]FrameTrace, error) {
	if a.Frame == 0 {
		return result.Frames, nil
	}
	f, err := frameFor(result, a)
	if err != nil {
		return nil, err
	}
	return []FrameTrace{f}, nil
}

func assertErrorContains(result *Result, a Assertion) error {
	frames, err := errorFrames(result, a)
	if err != nil {
		return err
	}
	var seen []string
	for _, f := range frames {
		for _, line := range f.Errors {
			if strings.Contains(line, a.Text) {
				return nil
			}
			seen = append(seen, line)
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("an error containing %q", a.Text),
		Actual:   fmt.Sprintf("errors %q", seen),
	}
}

func assertNoErrors(result *Result, a Assertion) error {
	frames, err := errorFrames(result, a)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if len(f.Errors) > 0 {
			return &AssertionError{
				Type:     a.Type,
				Expected: "no errors",
				Actual:   fmt.Sprintf("frame %d: %q", f.Seq, f.Errors),
			}
		}
	}
	return nil
}

// checkExpect checks a frame against its inline expectations.
func checkExpect(f FrameTrace, e *Expect) []string {
	var failures []string
	for _, body := range e.Facts {
		if !f.Has(body) {
			failures = append(failures, fmt.Sprintf("missing fact %s", body))
		}
	}
	for _, body := range e.Absent {
		if f.Has(body) {
			failures = append(failures, fmt.Sprintf("unexpected fact %s", body))
		}
	}
	for _, text := range e.Errors {
		found := false
		for _, line := range f.Errors {
			if strings.Contains(line, text) {
				found = true
				break
			}
		}
		if !found {
			failures = append(failures, fmt.Sprintf("missing error containing %q", text))
		}
	}
	if e.NoErrors && len(f.Errors) > 0 {
		failures = append(failures, fmt.Sprintf("unexpected errors %q", f.Errors))
	}
	return failures
}

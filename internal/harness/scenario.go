package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/luma/internal/program"
	"github.com/roach88/luma/internal/runtime"
)

// Scenario defines a program test: which programs run, what the camera sees
// each frame, and what must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Programs lists program files or directories to load.
	// Paths are relative to the scenario file location.
	Programs []string `yaml:"programs,omitempty"`

	// Define holds inline program definitions.
	Define []program.Definition `yaml:"define,omitempty"`

	// Interval is the time between frames. Default: 100ms.
	Interval time.Duration `yaml:"interval,omitempty"`

	// KeepTime overrides how long an unseen marker stays present.
	KeepTime time.Duration `yaml:"keep_time,omitempty"`

	// MaxSteps overrides the per-frame step quota.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Frames is the scripted camera input, one entry per frame.
	Frames []FrameStep `yaml:"frames"`

	// Assertions validate the frames after the run.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Path is the file the scenario was loaded from, if any.
	Path string `yaml:"-"`
}

// FrameStep is one scripted frame.
type FrameStep struct {
	// Repeat runs this frame several times. Default: 1.
	Repeat int `yaml:"repeat,omitempty"`

	// Markers visible in this frame.
	Markers []runtime.SceneMarker `yaml:"markers,omitempty"`

	// Appearance, if set, is published as the table's appearance.
	Appearance string `yaml:"appearance,omitempty"`

	// Expect is checked against the last repetition of this frame.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists what must hold right after a frame.
type Expect struct {
	Facts    []string `yaml:"facts,omitempty"`  // Bodies that must be present
	Absent   []string `yaml:"absent,omitempty"` // Bodies that must be missing
	Errors   []string `yaml:"errors,omitempty"` // Substrings of error lines
	NoErrors bool     `yaml:"no_errors,omitempty"`
}

// Assertion validates the run after all frames.
type Assertion struct {
	// Type specifies the assertion type:
	// - "fact_present": Fact is in Frame
	// - "fact_absent": Fact is not in Frame
	// - "fact_count": Count facts in Frame contain Pattern
	// - "error_contains": an error line contains Text (Frame 0: any frame)
	// - "no_errors": no error lines (Frame 0: in any frame)
	Type string `yaml:"type"`

	// Fact is an exact fact body (fact_present, fact_absent).
	Fact string `yaml:"fact,omitempty"`

	// Pattern is a body substring (fact_count).
	Pattern string `yaml:"pattern,omitempty"`

	// Count is the expected number of matches (fact_count).
	Count int `yaml:"count,omitempty"`

	// Text is an error line substring (error_contains).
	Text string `yaml:"text,omitempty"`

	// Frame is the 1-based frame number; 0 means the last frame for fact
	// assertions and every frame for error assertions.
	Frame int `yaml:"frame,omitempty"`
}

// Assertion type constants.
const (
	AssertFactPresent   = "fact_present"
	AssertFactAbsent    = "fact_absent"
	AssertFactCount     = "fact_count"
	AssertErrorContains = "error_contains"
	AssertNoErrors      = "no_errors"
)

// DefaultInterval is the frame interval when a scenario sets none.
const DefaultInterval = 100 * time.Millisecond

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Program paths are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.Path = path

	base := filepath.Dir(path)
	for i, p := range scenario.Programs {
		if !filepath.IsAbs(p) {
			scenario.Programs[i] = filepath.Join(base, p)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes a scenario document without validating program
// paths.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("failed to parse YAML: empty scenario")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Programs) == 0 && len(s.Define) == 0 {
		return fmt.Errorf("programs or define is required")
	}

	if len(s.Frames) == 0 {
		return fmt.Errorf("frames list is required and must be non-empty")
	}

	if s.Interval < 0 {
		return fmt.Errorf("interval must be positive")
	}

	for _, p := range s.Programs {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("program path not found: %s", p)
		}
	}

	for i, step := range s.Frames {
		if step.Repeat < 0 {
			return fmt.Errorf("frames[%d]: repeat must be non-negative", i)
		}
		for _, m := range step.Markers {
			if _, err := m.Marker(); err != nil {
				return fmt.Errorf("frames[%d]: %w", i, err)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Frame < 0 {
		return fmt.Errorf("assertions[%d]: frame must be non-negative", index)
	}

	switch a.Type {
	case AssertFactPresent, AssertFactAbsent:
		if a.Fact == "" {
			return fmt.Errorf("assertions[%d]: fact is required for %s", index, a.Type)
		}
	case AssertFactCount:
		if a.Pattern == "" {
			return fmt.Errorf("assertions[%d]: pattern is required for fact_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for fact_count", index)
		}
	case AssertErrorContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for error_contains", index)
		}
	case AssertNoErrors:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/luma/internal/program"
	"github.com/roach88/luma/internal/runtime"
	"github.com/roach88/luma/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic frame clock and reference names.
type Harness struct {
	loop   *runtime.Loop
	clock  *testutil.FrameClock
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on a fresh loop for isolation. Memories are kept in
// process only; nothing is written to disk.
//
// Execution flow:
// 1. Load, merge and validate the programs
// 2. Run every frame step, checking its expectations
// 3. Evaluate the assertions
//
// A returned error means the scenario could not run; failed checks are
// reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	defs, err := loadPrograms(scenario)
	if err != nil {
		return nil, err
	}

	interval := scenario.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	opts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithNameGenerator(testutil.NewSequentialGenerator("r")),
	}
	if scenario.KeepTime > 0 {
		opts = append(opts, runtime.WithKeepTime(scenario.KeepTime))
	}
	if scenario.MaxSteps > 0 {
		opts = append(opts, runtime.WithMaxSteps(scenario.MaxSteps))
	}

	h := &Harness{
		loop:   runtime.NewLoop(program.Programs(defs), opts...),
		clock:  testutil.NewFrameClock(interval),
		logger: logger,
	}

	result := NewResult()
	if err := h.executeFrames(context.Background(), scenario.Frames, result); err != nil {
		return nil, fmt.Errorf("failed to execute frames: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// loadPrograms reads the scenario's program paths, appends the inline
// definitions and validates the set.
func loadPrograms(s *Scenario) ([]program.Definition, error) {
	var defs []program.Definition
	for _, path := range s.Programs {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load programs: %w", err)
		}
		if info.IsDir() {
			loaded, err := program.LoadDir(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load programs: %w", err)
			}
			defs = append(defs, loaded...)
			continue
		}
		def, err := program.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load programs: %w", err)
		}
		defs = append(defs, def)
	}
	for i, def := range s.Define {
		def.Source = fmt.Sprintf("%s: define[%d]", s.Name, i)
		defs = append(defs, def)
	}

	if verrs := program.ValidateAll(defs); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("invalid programs: %w", errors.Join(errs...))
	}
	return defs, nil
}

// executeFrames runs every frame step in order.
func (h *Harness) executeFrames(ctx context.Context, steps []FrameStep, result *Result) error {
	for i, step := range steps {
		markers := make([]runtime.Marker, len(step.Markers))
		for j, m := range step.Markers {
			marker, err := m.Marker()
			if err != nil {
				return fmt.Errorf("frame step %d: %w", i, err)
			}
			markers[j] = marker
		}

		repeat := max(step.Repeat, 1)
		var trace FrameTrace
		for range repeat {
			f := runtime.Frame{Time: h.clock.Next(), Markers: markers}
			if step.Appearance != "" {
				f.Appearance = step.Appearance
			}
			snap, err := h.loop.Frame(ctx, f)
			if err != nil {
				return fmt.Errorf("frame step %d: %w", i, err)
			}
			trace = traceOf(snap)
			result.Frames = append(result.Frames, trace)
		}

		if step.Expect != nil {
			for _, msg := range checkExpect(trace, step.Expect) {
				result.AddError(fmt.Sprintf("frames[%d] (frame %d): %s", i, trace.Seq, msg))
			}
		}

		h.logger.Info("frame step completed",
			"step", i,
			"frames", repeat,
			"facts", len(trace.Facts),
			"errors", len(trace.Errors),
		)
	}
	return nil
}

func traceOf(snap *runtime.Snapshot) FrameTrace {
	facts := make([]string, len(snap.Facts))
	for i, f := range snap.Facts {
		facts[i] = f.Body()
	}
	markers := snap.Markers
	if markers == nil {
		markers = []int{}
	}
	return FrameTrace{
		Seq:     snap.Seq,
		Clock:   snap.Clock,
		Markers: markers,
		Facts:   facts,
		Errors:  snap.Errors,
	}
}

package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/natefinch/atomic"
	"github.com/sebdah/goldie/v2"
)

// Dump renders a result as the golden text format: one header line per
// frame followed by its facts and errors, indented.
//
//	scenario: lamp_lights_up
//	frame 1 clock=0 markers=[12]
//	  (12) is a lamp
//	  ! 3 parse error: ...
func Dump(name string, result *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	for _, f := range result.Frames {
		ids := make([]string, len(f.Markers))
		for i, id := range f.Markers {
			ids[i] = strconv.Itoa(id)
		}
		fmt.Fprintf(&buf, "frame %d clock=%s markers=[%s]\n",
			f.Seq, strconv.FormatFloat(f.Clock, 'f', -1, 64), strings.Join(ids, " "))
		for _, fact := range f.Facts {
			fmt.Fprintf(&buf, "  %s\n", fact)
		}
		for _, line := range f.Errors {
			fmt.Fprintf(&buf, "  ! %s\n", line)
		}
	}
	return buf.Bytes()
}

// GoldenPath returns the path to the golden file for a scenario file.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// WriteGolden atomically replaces the golden file at path.
func WriteGolden(path string, dump []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(dump)); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden compares dump with the golden file at path. It returns an
// empty diff on a match and a line diff (-golden +actual) otherwise.
func CompareGolden(path string, dump []byte) (string, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read golden file: %w", err)
	}
	if bytes.Equal(want, dump) {
		return "", nil
	}
	return cmp.Diff(strings.Split(string(want), "\n"), strings.Split(string(dump), "\n")), nil
}

// RunWithGolden executes a scenario and compares its dump against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the dump doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Dump(scenario.Name, result))
	return result, nil
}

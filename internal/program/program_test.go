package program

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/runtime"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name     string
		template string
		binding  ir.Binding
		want     string
		wantErr  string
	}{
		{name: "no references", template: "(you) is here", want: "(you) is here"},
		{name: "single", template: "(${p}) glows", binding: ir.Binding{"p": "12"}, want: "(12) glows"},
		{name: "repeated", template: "(${p}) sees (${p})", binding: ir.Binding{"p": "3"}, want: "(3) sees (3)"},
		{name: "spaces in name", template: "'${the label}'", binding: ir.Binding{"the label": "lamp"}, want: "'lamp'"},
		{
			name:     "all or nothing",
			template: "(${p}) has (${missing}) and (${gone})",
			binding:  ir.Binding{"p": "1"},
			wantErr:  `binding variable "missing" not found`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.template, tt.binding)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReferences(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "a"}, References("${a} ${b c} ${a}"))
	assert.Empty(t, References("(you) is here"))
	assert.True(t, HasReferences("x ${y}"))
	assert.False(t, HasReferences("x $y {z}"))
}

func quietLoop(programs []runtime.Program) *runtime.Loop {
	return runtime.NewLoop(programs, runtime.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func bodies(facts []ir.Statement) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.Body()
	}
	return out
}

func TestProgramsRunOnLoop(t *testing.T) {
	defs, err := LoadDir("testdata/programs")
	require.NoError(t, err)
	require.Empty(t, ValidateAll(defs))

	loop := quietLoop(Programs(defs))
	t0 := time.Unix(1_700_000_000, 0)
	ctx := context.Background()

	// Lamp absent: only the resident watcher runs and its fallback fires.
	snap, err := loop.Frame(ctx, runtime.Frame{Time: t0})
	require.NoError(t, err)
	assert.Contains(t, bodies(snap.Facts), "(1) sees nothing")
	assert.Empty(t, snap.Errors)

	lamp := runtime.Marker{ID: 12, Corners: [4]ir.Point{{X: 0, Y: 0}, {X: 80, Y: 0}, {X: 80, Y: 40}, {X: 0, Y: 40}}}
	snap, err = loop.Frame(ctx, runtime.Frame{Time: t0.Add(time.Second), Markers: []runtime.Marker{lamp}})
	require.NoError(t, err)
	facts := bodies(snap.Facts)
	assert.Contains(t, facts, "(12) is a lamp")
	assert.Contains(t, facts, `(12) is highlighted "yellow"`)
	assert.Contains(t, facts, "(12) glows (80)")
	assert.Contains(t, facts, "(12) is watched")
	assert.Empty(t, snap.Errors)

	// The remembered fact appears from the next frame on.
	snap, err = loop.Frame(ctx, runtime.Frame{Time: t0.Add(2 * time.Second)})
	require.NoError(t, err)
	assert.Contains(t, bodies(snap.Facts), "(1) saw (12)")
}

func TestProgramActionErrorsAreLogged(t *testing.T) {
	def := Definition{
		ID:       5,
		Resident: true,
		Claims:   []string{"(you) is ready"},
		Rules: []RuleSpec{{
			When: []string{"/p/ is ready"},
			Then: &Actions{Claims: []string{"(${p}) is set", "(${nope}) is unset"}},
		}},
	}
	loop := quietLoop(Programs([]Definition{def}))
	snap, err := loop.Frame(context.Background(), runtime.Frame{Time: time.Unix(10, 0)})
	require.NoError(t, err)

	assert.Contains(t, bodies(snap.Facts), "(5) is set")
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "Error in program 5")
	assert.Contains(t, snap.Errors[0], `binding variable "nope" not found`)
}

func TestProgramRunJoinsErrors(t *testing.T) {
	p := New(Definition{ID: 2, Claims: []string{"(you) is fine", "(bad"}})
	assert.Equal(t, 2, p.ID())
	assert.False(t, p.Resident())

	loop := quietLoop([]runtime.Program{p, runtime.Func{ProgramID: 3, IsResident: true}})
	snap, err := loop.Frame(context.Background(), runtime.Frame{
		Time:    time.Unix(10, 0),
		Markers: []runtime.Marker{{ID: 2}},
	})
	require.NoError(t, err)
	assert.Contains(t, bodies(snap.Facts), "(2) is fine")
	assert.NotEmpty(t, snap.Errors)
}

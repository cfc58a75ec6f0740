package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/luma/internal/engine"
	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/parse"
	"github.com/roach88/luma/internal/runtime"
)

// createTestJournal opens a journal in a temp dir.
func createTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func mustFact(t *testing.T, owner int, text string, seq int64) ir.Statement {
	t.Helper()
	f, err := parse.ParseFact(owner, text)
	require.NoError(t, err)
	f.Seq = seq
	return f
}

func testSnapshot(t *testing.T, seq int64) *runtime.Snapshot {
	return &runtime.Snapshot{
		Seq:      seq,
		Time:     time.Unix(1_700_000_000, int64(seq)*int64(time.Millisecond)),
		Clock:    float64(seq) / 10,
		Programs: 2,
		Markers:  []int{4, 12},
		Counts:   engine.Counts{Facts: 2, Rules: 1, Keys: 5, Steps: 7},
		Activity: runtime.Activity{Asserted: 2, Registered: 1, Fired: 1},
		Facts: []ir.Statement{
			mustFact(t, 12, "(you) is a lamp", 1),
			mustFact(t, -1, "the clock time is (0.1)", 2),
		},
		Errors:   []string{"Error in program 4: boom"},
		Timeline: []runtime.Span{{Name: "clear", Duration: time.Microsecond}, {Name: "programs", Start: time.Microsecond, Duration: 3 * time.Microsecond}},
		Duration: 4 * time.Microsecond,
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	_, path := createTestJournal(t)

	j2, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer j2.Close()

	sessions, err := j2.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, int64(1), sessions[0].Seq)
	assert.Equal(t, int64(2), sessions[1].Seq)
	assert.Equal(t, j2.Session(), sessions[1].ID)
	assert.Equal(t, ir.EngineVersion, sessions[1].Version)

	var mode string
	require.NoError(t, j2.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestRecordAndReadFrame(t *testing.T) {
	j, _ := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordFrame(ctx, testSnapshot(t, 1)))
	require.NoError(t, j.RecordFrame(ctx, testSnapshot(t, 2)))
	// Idempotent.
	require.NoError(t, j.RecordFrame(ctx, testSnapshot(t, 2)))

	frames, err := j.Frames(ctx, j.Session())
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, int64(1), frames[0].Seq)
	assert.Equal(t, []int{4, 12}, frames[1].Markers)
	assert.Equal(t, engine.Counts{Facts: 2, Rules: 1, Keys: 5, Steps: 7}, frames[1].Counts)
	assert.Equal(t, 1, frames[1].Activity.Fired)
	assert.Equal(t, 4*time.Microsecond, frames[1].Duration)
	assert.True(t, frames[1].Time.Equal(time.Unix(1_700_000_000, 2*int64(time.Millisecond))))

	detail, err := j.Frame(ctx, j.Session(), 2)
	require.NoError(t, err)
	require.Len(t, detail.Facts, 2)
	assert.Equal(t, "(12) is a lamp", detail.Facts[0].Body)
	assert.Equal(t, 12, detail.Facts[0].Owner)
	assert.Equal(t, []string{"Error in program 4: boom"}, detail.Errors)
	require.Len(t, detail.Timeline, 2)
	assert.Equal(t, "programs", detail.Timeline[1].Name)
	assert.Equal(t, time.Microsecond, detail.Timeline[1].Start)

	sessions, err := j.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sessions[0].Frames)
}

func TestFrameNotFound(t *testing.T) {
	j, _ := createTestJournal(t)
	_, err := j.Frame(context.Background(), j.Session(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindFacts(t *testing.T) {
	j, _ := createTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.RecordFrame(ctx, testSnapshot(t, 1)))
	require.NoError(t, j.RecordFrame(ctx, testSnapshot(t, 2)))

	found, err := j.FindFacts(ctx, j.Session(), "%lamp%")
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "(12) is a lamp", found[1][0].Body)
}

func TestReadOnlyJournal(t *testing.T) {
	_, path := createTestJournal(t)

	ro, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer ro.Close()

	assert.Empty(t, ro.Session())
	assert.ErrorIs(t, ro.RecordFrame(context.Background(), testSnapshot(t, 1)), ErrNoSession)

	latest, err := ro.LatestSession(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, latest.ID)
}

func TestLatestSessionEmpty(t *testing.T) {
	ro, err := OpenReadOnly(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.LatestSession(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournalRecordsLoopFrames(t *testing.T) {
	j, _ := createTestJournal(t)
	loop := runtime.NewLoop([]runtime.Program{
		runtime.Func{ProgramID: 1, IsResident: true, Fn: func(s *runtime.Scope) error {
			return s.Claim("(you) is alive")
		}},
	}, runtime.WithRecorder(j))

	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)
	for i := range 3 {
		_, err := loop.Frame(ctx, runtime.Frame{Time: t0.Add(time.Duration(i) * 100 * time.Millisecond)})
		require.NoError(t, err)
	}

	frames, err := j.Frames(ctx, j.Session())
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, int64(3), frames[2].Seq)
	assert.InDelta(t, 0.2, frames[2].Clock, 1e-9)

	found, err := j.FindFacts(ctx, j.Session(), "(1) is alive")
	require.NoError(t, err)
	assert.Len(t, found, 3)
}

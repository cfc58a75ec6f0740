package memory

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/luma/internal/engine"
	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/parse"
	"github.com/roach88/luma/internal/refs"
)

func fact(t *testing.T, owner int, text string) ir.Statement {
	t.Helper()
	f, err := parse.ParseFact(owner, text)
	require.NoError(t, err)
	return f
}

// fakeNow is a settable clock.
type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time { return f.t }

func TestPolicyOf(t *testing.T) {
	tests := []struct {
		text string
		want Policy
	}{
		{"(1) is saving", Policy{}},
		{"(1) is saving [for (5) seconds]", Policy{Timed: true, TTL: 5 * time.Second}},
		{"(1) is saving [for (0.5) seconds]", Policy{Timed: true, TTL: 500 * time.Millisecond}},
		{"(1) is saving [for (0) seconds]", Policy{Timed: true}},
		{"(1) is saving [for (-3) seconds]", Policy{Timed: true}},
		{"(1) is saving [for (+Inf) seconds]", Policy{}},
		{"(1) is saving [for this session]", Policy{Session: true}},
		{"(1) is saving [for a while]", Policy{}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, PolicyOf(fact(t, 1, tt.text)))
		})
	}
	assert.True(t, Policy{}.Permanent())
	assert.False(t, Policy{Session: true}.Permanent())
	assert.False(t, Policy{Timed: true}.Permanent())
}

func TestRememberIdempotent(t *testing.T) {
	s := NewStore(1)
	s.Remember(fact(t, 1, "(1) is saving"))
	s.Remember(fact(t, 1, "(1) is saving"))
	assert.Equal(t, 1, s.Len())
}

func TestRememberReplacesSameSubject(t *testing.T) {
	s := NewStore(1)
	s.Remember(fact(t, 1, "(you) has count (2)"))
	s.Remember(fact(t, 1, "(7) has count (9)"))
	s.Remember(fact(t, 1, "(you) has count (3)"))

	got := s.Recall(time.Now())
	require.Len(t, got, 2)
	assert.Equal(t, "(7) has count (9)", got[0].Text)
	assert.Equal(t, "(you) has count (3)", got[1].Text)
}

func TestRememberPolicyChangeReplaces(t *testing.T) {
	s := NewStore(1)
	s.Remember(fact(t, 1, "(1) is saving"))
	s.Remember(fact(t, 1, "(1) is saving [for this session]"))

	mems := s.Memories()
	require.Len(t, mems, 1)
	assert.True(t, mems[0].Policy.Session)
}

func TestRecallExpiry(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1000, 0)}
	s := NewStore(1, WithNow(clock.now))

	s.Remember(fact(t, 1, "(1) is blinking [for (5) seconds]"))
	s.Remember(fact(t, 1, "(1) is saving"))

	assert.Len(t, s.Recall(clock.t.Add(4*time.Second)), 2)
	assert.Len(t, s.Recall(clock.t.Add(6*time.Second)), 2, "expired memory is returned one last time")
	got := s.Recall(clock.t.Add(7 * time.Second))
	require.Len(t, got, 1)
	assert.Equal(t, "(1) is saving", got[0].Text)
}

func TestZeroSecondMemoryExpiresAtOnce(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1000, 0)}
	s := NewStore(1, WithNow(clock.now))
	dir := t.TempDir()

	s.Remember(fact(t, 1, "(1) is flashing [for (0) seconds]"))
	require.NoError(t, s.Save(dir))
	_, err := os.Stat(Path(dir, 1))
	assert.True(t, errors.Is(err, fs.ErrNotExist), "timed memories are not written")

	got := s.Recall(clock.t.Add(100 * time.Millisecond))
	require.Len(t, got, 1, "shown for one last frame")
	assert.Empty(t, s.Recall(clock.t.Add(200*time.Millisecond)))
}

func TestForget(t *testing.T) {
	s := NewStore(1)
	s.Remember(fact(t, 1, "(1) is saving"))
	s.Remember(fact(t, 1, "(2) is saving"))

	s.Forget(fact(t, 1, "(1) is saving"))
	assert.Equal(t, 1, s.Len())

	s.ForgetAll()
	assert.Equal(t, 0, s.Len())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := NewStore(42)
	remembered := fact(t, 42, "(you) has favorite color 'teal'")
	s.Remember(remembered)
	s.Remember(fact(t, 42, "(you) is blinking [for (5) seconds]"))
	s.Remember(fact(t, 42, "(you) has visitor 'x' [for this session]"))
	require.NoError(t, s.Save(dir))

	data, err := os.ReadFile(filepath.Join(dir, "42.mem"))
	require.NoError(t, err)
	assert.Equal(t, "(you) has favorite color 'teal'\n", string(data), "only permanent memories are written")

	fresh := NewStore(42)
	loaded, err := fresh.Load(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.False(t, fresh.Dirty())

	db := engine.NewStore()
	for _, f := range fresh.Recall(time.Now()) {
		require.NoError(t, db.Assert(f))
	}
	facts := db.Facts()
	require.Len(t, facts, 1)
	assert.Equal(t, remembered.Hash, facts[0].Hash)
}

func TestSaveOnlyWhenDirty(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(1)
	s.Remember(fact(t, 1, "(1) is saving"))
	require.NoError(t, s.Save(dir))
	assert.False(t, s.Dirty())

	path := Path(dir, 1)
	require.NoError(t, os.WriteFile(path, []byte("(1) was edited\n"), 0o644))
	require.NoError(t, s.Save(dir))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "(1) was edited\n", string(data), "clean store does not rewrite")
}

func TestSaveEmptyRemovesFile(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(1)
	s.Remember(fact(t, 1, "(1) is saving"))
	require.NoError(t, s.Save(dir))
	require.FileExists(t, Path(dir, 1))

	s.ForgetAll()
	require.NoError(t, s.Save(dir))
	assert.NoFileExists(t, Path(dir, 1))
}

func TestLoadMissingAndBadLines(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(5)

	loaded, err := s.Load(dir)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, os.WriteFile(Path(dir, 5), []byte("(5) is fine\n/x/ is bad\n\n(5) is also fine\n"), 0o644))
	loaded, err = s.Load(dir)
	require.Error(t, err)
	assert.True(t, parse.IsParseError(err))
	assert.Len(t, loaded, 2)
}

func TestMemoryPinsReferences(t *testing.T) {
	reg := refs.NewRegistry(refs.NewFixedGenerator("img"))
	tok := reg.Create(refs.Frame, "pixels")

	s := NewStore(1, WithRegistry(reg))
	s.Remember(fact(t, 1, "(1) has snapshot '"+tok+"'"))

	reg.ClearFrame()
	_, ok := reg.Lookup(tok)
	require.False(t, ok)

	s.Recall(time.Now())
	v, ok := refs.Resolve[string](reg, tok)
	require.True(t, ok, "recall restores pinned references")
	assert.Equal(t, "pixels", v)
}

func TestBank(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir, 3), []byte("(3) is loaded\n"), 0o644))

	b := NewBank(dir, nil, nil)
	s3 := b.For(3)
	assert.Same(t, s3, b.For(3))
	assert.Equal(t, 1, s3.Len())

	b.For(4).Remember(fact(t, 4, "(4) is new"))
	assert.Equal(t, []int{3, 4}, b.Owners())

	require.NoError(t, b.SaveAll())
	assert.FileExists(t, Path(dir, 4))
}

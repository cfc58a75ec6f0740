package program

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileYAML(t *testing.T) {
	def, err := LoadFile("testdata/programs/lamp.yaml")
	require.NoError(t, err)

	assert.Equal(t, 12, def.ID)
	assert.Equal(t, "lamp", def.Label())
	assert.False(t, def.Resident)
	assert.Equal(t, []string{"(you) is a lamp"}, def.Claims)
	require.Len(t, def.Rules, 1)
	assert.Equal(t, []string{"/p/ is a lamp", "/p/ has width /w/"}, def.Rules[0].When)
	assert.Equal(t, []string{"(${p}) glows (${w})"}, def.Rules[0].Then.Claims)
	assert.Nil(t, def.Rules[0].Otherwise)
	assert.Equal(t, "testdata/programs/lamp.yaml", def.Source)
}

func TestLoadFileCUE(t *testing.T) {
	def, err := LoadFile("testdata/programs/watcher.cue")
	require.NoError(t, err)

	assert.Equal(t, 1, def.ID)
	assert.True(t, def.Resident)
	require.Len(t, def.Rules, 1)
	rule := def.Rules[0]
	assert.Equal(t, []string{"(${p}) is watched"}, rule.Then.Claims)
	require.Len(t, rule.Then.Rules, 1)
	assert.Equal(t, "watching ${p}", rule.Then.Rules[0].Then.Log)
	assert.Equal(t, []string{"(you) sees nothing"}, rule.Otherwise.Claims)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile("testdata/bad/unknown_field.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")

	_, err = LoadFile("testdata/bad/missing_id.cue")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "id", ce.Field)

	_, err = LoadFile("testdata/programs/README.txt")
	assert.ErrorContains(t, err, "unsupported program file type")

	_, err = LoadFile("testdata/nope.yaml")
	assert.Error(t, err)
}

func TestDecodeCUEReportsPosition(t *testing.T) {
	_, err := DecodeCUE("broken.cue", []byte("id: 1\nclaims: [\n"))
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "broken.cue:")

	_, err = DecodeCUE("abstract.cue", []byte("id: int\n"))
	require.Error(t, err)
}

func TestDecodeYAMLEmpty(t *testing.T) {
	_, err := DecodeYAML(nil)
	assert.ErrorContains(t, err, "empty program")
}

func TestLoadDir(t *testing.T) {
	defs, err := LoadDir("testdata/programs")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, 1, defs[0].ID, "sorted by id")
	assert.Equal(t, 12, defs[1].ID)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.yml"), []byte("id: 4\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("id: [\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.cue"), 0o755))

	defs, err = LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
	require.Len(t, defs, 1, "good files still load")
	assert.Equal(t, 4, defs[0].ID)

	_, err = LoadDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestIsProgramFile(t *testing.T) {
	assert.True(t, IsProgramFile("a.yaml"))
	assert.True(t, IsProgramFile("a.YML"))
	assert.True(t, IsProgramFile("a.cue"))
	assert.False(t, IsProgramFile("a.json"))
}

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lampProgram = `
id: 12
name: lamp
claims:
  - (you) is a lamp
`
	watcherProgram = `
id: 1
name: watcher
resident: true
claims:
  - (you) is the table
rules:
  - when: ["/p/ is a lamp"]
    then:
      claims: ["(${p}) is lit"]
`
	brokenProgram = `
id: 7
claims:
  - /p/ is red
rules:
  - when: ["/p/ is a lamp"]
    then:
      claims: ["(${q}) is lit"]
`
)

// writeFile writes content under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// programsDir creates a directory holding the given program files.
func programsDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "programs")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range files {
		writeFile(t, dir, name, content)
	}
	return dir
}

func executeValidate(t *testing.T, format, dir string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir})
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidPrograms(t *testing.T) {
	dir := programsDir(t, map[string]string{"lamp.yaml": lampProgram, "watcher.yaml": watcherProgram})

	out, err := executeValidate(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All 2 program(s) valid")
}

func TestValidateValidProgramsJSON(t *testing.T) {
	dir := programsDir(t, map[string]string{"lamp.yaml": lampProgram})

	out, err := executeValidate(t, "json", dir)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, float64(1), data["programs"])
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := executeValidate(t, "text", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := executeValidate(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeLoad)
	assert.Contains(t, out, "no program files found")
}

func TestValidateUndecodableFile(t *testing.T) {
	dir := programsDir(t, map[string]string{"bad.yaml": "id: [not an int"})

	_, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeLoad)
}

func TestValidateInvalidProgram(t *testing.T) {
	dir := programsDir(t, map[string]string{"broken.yaml": brokenProgram})

	out, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "program 7 claims[0]")
	assert.Contains(t, out, "E203")
	assert.Contains(t, out, "E204")
}

func TestValidateInvalidProgramJSON(t *testing.T) {
	dir := programsDir(t, map[string]string{"broken.yaml": brokenProgram})

	out, err := executeValidate(t, "json", dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E203", resp.Error.Code)

	data := resp.Data.(map[string]any)
	assert.Equal(t, false, data["valid"])
	assert.Len(t, data["errors"], 2)
}

func TestValidateDuplicateIDs(t *testing.T) {
	dir := programsDir(t, map[string]string{"a.yaml": lampProgram, "b.yaml": lampProgram})

	out, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "E201")
	assert.Contains(t, out, "duplicate program id")
}

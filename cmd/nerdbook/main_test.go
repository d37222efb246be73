package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command in a fresh workspace state and returns stdout.
func execute(t *testing.T, ws string, args ...string) (string, error) {
	t.Helper()
	workspace, configPath, timeout, verbose = "", "", 0, false
	runJSON, runWatch = false, false
	journalSession, journalLimit, journalSessions = "", 20, false
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"-w", ws}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEval(t *testing.T) {
	out, err := execute(t, t.TempDir(), "eval", "const xs = [1, 2, 3];", "xs.length")
	require.NoError(t, err)
	assert.Equal(t, "Return value: 3\n", out)
}

func TestEvalFailure(t *testing.T) {
	out, err := execute(t, t.TempDir(), "eval", "throw new Error('nope')")
	assert.Error(t, err)
	assert.Equal(t, "Error: Execution error: nope\n", out)
}

func TestRunJSON(t *testing.T) {
	ws := t.TempDir()
	path := filepath.Join(ws, "nb.js")
	src := "// %% data\nconst nums = [1, 2, 3]\n\n// %% sum\nconsole.log('summing')\nnums.reduce((a, b) => a + b, 0)\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	out, err := execute(t, ws, "run", "--json", path)
	require.NoError(t, err)

	var results []cellResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, cellResult{ID: 1, Title: "data", Output: "Return value: [\n  1,\n  2,\n  3\n]", OK: true}, results[0])
	assert.Equal(t, cellResult{ID: 2, Title: "sum", Output: "summing\n\nReturn value: 6", OK: true}, results[1])
}

func TestRunReportsFailures(t *testing.T) {
	ws := t.TempDir()
	path := filepath.Join(ws, "nb.js")
	require.NoError(t, os.WriteFile(path, []byte("// %%\nmissing()\n// %%\n'after'\n"), 0644))

	out, err := execute(t, ws, "run", path)
	assert.EqualError(t, err, "1 of 2 cells failed")
	assert.Contains(t, out, "── cell 1")
	assert.Contains(t, out, "Error: Execution error: ")
	assert.Contains(t, out, `Return value: "after"`)
}

func TestJournalListsExecutions(t *testing.T) {
	ws := t.TempDir()
	_, err := execute(t, ws, "eval", "6 * 7")
	require.NoError(t, err)

	out, err := execute(t, ws, "journal")
	require.NoError(t, err)
	assert.Contains(t, out, "6 * 7")
	assert.Contains(t, out, "ok")

	out, err = execute(t, ws, "journal", "--sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "SESSION")
}

func TestJournalEmpty(t *testing.T) {
	out, err := execute(t, t.TempDir(), "journal")
	require.NoError(t, err)
	assert.Equal(t, "No executions recorded\n", out)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nerdbook")
	assert.Contains(t, out, "javascript")
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "a ...", firstLine("a\nb", 10))
	assert.Equal(t, "abcdefg...", firstLine("abcdefghijklmnop", 10))
}

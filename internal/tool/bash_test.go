package tool

import (
	"context"
	"encoding/json"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBash(t *testing.T, input string) (*Result, error) {
	t.Helper()
	return NewBashTool(t.TempDir()).Execute(context.Background(), json.RawMessage(input), testContext())
}

func TestBash_CapturesStdout(t *testing.T) {
	skipOnWindows(t)
	result, err := runBash(t, `{"command": "echo streaming", "description": "echo"}`)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "streaming")
	assert.Equal(t, 0, result.Metadata["exit"])
	assert.Equal(t, false, result.Metadata["timed_out"])
}

func TestBash_CapturesStderrToo(t *testing.T) {
	skipOnWindows(t)
	result, err := runBash(t, `{"command": "echo oops 1>&2", "description": "stderr"}`)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "oops")
}

func TestBash_NonzeroExitIsNotAnError(t *testing.T) {
	skipOnWindows(t)
	result, err := runBash(t, `{"command": "exit 3", "description": "fail"}`)
	require.NoError(t, err, "a failing command is still a completed tool call")
	assert.Equal(t, 3, result.Metadata["exit"])
}

func TestBash_TimeoutMarksMetadata(t *testing.T) {
	skipOnWindows(t)
	result, err := runBash(t, `{"command": "sleep 5", "timeout": 100, "description": "sleep"}`)
	require.NoError(t, err)
	assert.Equal(t, true, result.Metadata["timed_out"])
	assert.Contains(t, result.Output, "timed out")
}

func TestBash_RunsInWorkdir(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	toolCtx := testContext()
	toolCtx.WorkDir = dir

	result, err := NewBashTool(dir).Execute(context.Background(),
		json.RawMessage(`{"command": "pwd", "description": "where"}`), toolCtx)
	require.NoError(t, err)
	// macOS tempdirs resolve through /private, so compare the tail.
	assert.True(t, strings.HasSuffix(strings.TrimSpace(result.Output), filepath.Base(dir)),
		"pwd output %q should end in %q", result.Output, filepath.Base(dir))
}

func TestBash_TitleFallsBackWhenNoDescription(t *testing.T) {
	skipOnWindows(t)
	result, err := runBash(t, `{"command": "true", "description": ""}`)
	require.NoError(t, err)
	assert.Equal(t, "Run command", result.Title)
}

func TestBash_InvalidInput(t *testing.T) {
	_, err := runBash(t, `{"command": []}`)
	require.Error(t, err)
}

func TestBash_DefaultTimeoutIsThirtySeconds(t *testing.T) {
	assert.Equal(t, int64(30), int64(DefaultBashTimeout.Seconds()))
}

func TestLoginShellNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, loginShell())
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "b", "a", "b", "a"}))
	assert.Empty(t, dedupe(nil))
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell semantics")
	}
}

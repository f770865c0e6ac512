package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func globFixtureTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range []string{
		"main.go",
		"util.go",
		"README.md",
		"internal/server/server.go",
		"internal/server/server_test.go",
		"docs/guide.md",
	} {
		path := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("package x\n"), 0o644))
	}
	return dir
}

func runGlob(t *testing.T, dir, pattern string) *Result {
	t.Helper()
	result, err := NewGlobTool(dir).Execute(context.Background(),
		json.RawMessage(fmt.Sprintf(`{"pattern": %q}`, pattern)), testContext())
	require.NoError(t, err)
	return result
}

func TestGlob_TopLevelPattern(t *testing.T) {
	dir := globFixtureTree(t)

	result := runGlob(t, dir, "*.go")
	assert.Equal(t, 2, result.Metadata["count"])
	assert.Contains(t, result.Output, "main.go")
	assert.Contains(t, result.Output, "util.go")
	assert.NotContains(t, result.Output, "server.go")
}

func TestGlob_RecursiveDoublestar(t *testing.T) {
	dir := globFixtureTree(t)

	result := runGlob(t, dir, "**/*.go")
	assert.Equal(t, 4, result.Metadata["count"])
	assert.Contains(t, result.Output, filepath.Join("internal", "server", "server_test.go"))
}

func TestGlob_NoMatches(t *testing.T) {
	dir := globFixtureTree(t)

	result := runGlob(t, dir, "*.rs")
	assert.Equal(t, 0, result.Metadata["count"])
	assert.Contains(t, result.Output, "No files matched")
}

func TestGlob_NewestFirst(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "older.go")
	newer := filepath.Join(dir, "newer.go")
	require.NoError(t, os.WriteFile(older, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("b"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	result := runGlob(t, dir, "*.go")
	lines := result.Output
	assert.Less(t, indexOf(lines, "newer.go"), indexOf(lines, "older.go"))
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestGlob_RelativePathOverride(t *testing.T) {
	dir := globFixtureTree(t)

	result, err := NewGlobTool(dir).Execute(context.Background(),
		json.RawMessage(`{"pattern": "*.md", "path": "docs"}`), testContext())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metadata["count"])
	assert.Contains(t, result.Output, "guide.md")
}

func TestGlob_TruncatesAtCap(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < globMaxResults+20; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%03d.txt", i)), nil, 0o644))
	}

	result := runGlob(t, dir, "*.txt")
	assert.Equal(t, globMaxResults, result.Metadata["count"])
	assert.Equal(t, true, result.Metadata["truncated"])
	assert.Contains(t, result.Output, "narrow the pattern")
}

func TestGlob_InvalidInput(t *testing.T) {
	_, err := NewGlobTool(t.TempDir()).Execute(context.Background(),
		json.RawMessage(`{"pattern": 7}`), testContext())
	require.Error(t, err)
}

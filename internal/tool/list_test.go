package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runList(t *testing.T, dir, input string) *Result {
	t.Helper()
	result, err := NewListTool(dir).Execute(context.Background(), json.RawMessage(input), testContext())
	require.NoError(t, err)
	return result
}

func TestList_DirsBeforeFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aaa.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "zzz"), 0o755))

	result := runList(t, dir, `{}`)
	assert.Less(t, strings.Index(result.Output, "zzz"), strings.Index(result.Output, "aaa.txt"))
	assert.Contains(t, result.Output, "[dir ] zzz")
	assert.Contains(t, result.Output, "[file] aaa.txt (1 bytes)")
}

func TestList_SkipsDefaultIgnores(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"node_modules", ".git", "src"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, d), 0o755))
	}

	result := runList(t, dir, `{}`)
	assert.NotContains(t, result.Output, "node_modules")
	assert.NotContains(t, result.Output, ".git")
	assert.Contains(t, result.Output, "src")
	assert.Equal(t, 1, result.Metadata["count"])
}

func TestList_ExtraIgnoreGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.log"), nil, 0o644))

	result := runList(t, dir, `{"ignore": ["*.log"]}`)
	assert.Contains(t, result.Output, "keep.go")
	assert.NotContains(t, result.Output, "skip.log")
}

func TestList_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "inner")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "only.txt"), nil, 0o644))

	result := runList(t, dir, fmt.Sprintf(`{"path": %q}`, sub))
	assert.Contains(t, result.Output, "only.txt")
	assert.Equal(t, sub, result.Metadata["path"])
}

func TestList_RelativePathJoinsWorkdir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "rel"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rel", "f.txt"), nil, 0o644))

	result := runList(t, dir, `{"path": "rel"}`)
	assert.Contains(t, result.Output, "f.txt")
}

func TestList_MissingDirectory(t *testing.T) {
	_, err := NewListTool(t.TempDir()).Execute(context.Background(),
		json.RawMessage(`{"path": "/no/such/dir"}`), testContext())
	require.Error(t, err)
}

func TestListIgnored(t *testing.T) {
	patterns := []string{"dist/", "*.tmp"}

	assert.True(t, listIgnored("dist", true, patterns))
	assert.False(t, listIgnored("dist", false, patterns), "trailing-slash pattern only hits directories")
	assert.True(t, listIgnored("x.tmp", false, patterns))
	assert.False(t, listIgnored("x.txt", false, patterns))
}

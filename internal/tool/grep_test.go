package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grepFixtureTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"server.go":        "package srv\n\nfunc ListenAndServe() error {\n\treturn nil\n}\n",
		"client.go":        "package srv\n\n// Dial connects to the server.\nfunc Dial(addr string) {}\n",
		"notes.md":         "ListenAndServe is the entry point.\n",
		"sub/handler.go":   "package sub\n\nfunc handleConn() { /* Dial back */ }\n",
		".git/internal":    "ListenAndServe should not be found here\n",
		"vendor/dep/v.go":  "func ListenAndServe() {}\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func runGrep(t *testing.T, dir, input string) *Result {
	t.Helper()
	result, err := NewGrepTool(dir).Execute(context.Background(), json.RawMessage(input), testContext())
	require.NoError(t, err)
	return result
}

func TestGrep_FindsMatchesWithLineNumbers(t *testing.T) {
	dir := grepFixtureTree(t)

	result := runGrep(t, dir, `{"pattern": "ListenAndServe"}`)
	assert.Equal(t, 2, result.Metadata["count"])
	assert.Contains(t, result.Output, "server.go:3:")
	assert.Contains(t, result.Output, "notes.md:1:")
}

func TestGrep_SkipsVCSAndVendorDirs(t *testing.T) {
	dir := grepFixtureTree(t)

	result := runGrep(t, dir, `{"pattern": "ListenAndServe"}`)
	assert.NotContains(t, result.Output, ".git")
	assert.NotContains(t, result.Output, "vendor")
}

func TestGrep_IncludeGlobByBasename(t *testing.T) {
	dir := grepFixtureTree(t)

	result := runGrep(t, dir, `{"pattern": "Dial", "include": "*.go"}`)
	assert.Equal(t, 3, result.Metadata["count"])
	assert.Contains(t, result.Output, "client.go")
	assert.Contains(t, result.Output, filepath.Join("sub", "handler.go"))
}

func TestGrep_RegexSyntax(t *testing.T) {
	dir := grepFixtureTree(t)

	result := runGrep(t, dir, `{"pattern": "func \\w+\\("}`)
	count, _ := result.Metadata["count"].(int)
	assert.GreaterOrEqual(t, count, 3)
}

func TestGrep_NoMatches(t *testing.T) {
	dir := grepFixtureTree(t)

	result := runGrep(t, dir, `{"pattern": "zebra_quantum_flux"}`)
	assert.Equal(t, 0, result.Metadata["count"])
	assert.Contains(t, result.Output, "No matches found")
}

func TestGrep_InvalidRegex(t *testing.T) {
	_, err := NewGrepTool(t.TempDir()).Execute(context.Background(),
		json.RawMessage(`{"pattern": "("}`), testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestGrep_SkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin.dat"),
		[]byte("needle\x00needle"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "text.txt"),
		[]byte("needle\n"), 0o644))

	result := runGrep(t, dir, `{"pattern": "needle"}`)
	assert.Equal(t, 1, result.Metadata["count"])
	assert.Contains(t, result.Output, "text.txt")
}

func TestGrep_CapsMatches(t *testing.T) {
	dir := t.TempDir()
	var content string
	for i := 0; i < grepMaxMatches+50; i++ {
		content += fmt.Sprintf("match line %d\n", i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.txt"), []byte(content), 0o644))

	result := runGrep(t, dir, `{"pattern": "match line"}`)
	assert.Equal(t, grepMaxMatches, result.Metadata["count"])
	assert.Equal(t, true, result.Metadata["truncated"])
}

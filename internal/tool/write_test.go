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

func TestWrite_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	result, err := NewWriteTool(dir).Execute(context.Background(),
		json.RawMessage(fmt.Sprintf(`{"file_path": %q, "content": "hello\n"}`, path)), testContext())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
	assert.Equal(t, 6, result.Metadata["bytes"])
}

func TestWrite_CreatesMissingParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "c.txt")

	_, err := NewWriteTool(dir).Execute(context.Background(),
		json.RawMessage(fmt.Sprintf(`{"file_path": %q, "content": "nested"}`, path)), testContext())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nested", string(data))
}

func TestWrite_OverwriteRecordsDiff(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("old line\n"), 0o644))

	result, err := NewWriteTool(dir).Execute(context.Background(),
		json.RawMessage(fmt.Sprintf(`{"file_path": %q, "content": "new line\n"}`, path)), testContext())
	require.NoError(t, err)

	diff, _ := result.Metadata["diff"].(string)
	require.NotEmpty(t, diff)
	assert.Contains(t, diff, "note.md")
	assert.Equal(t, 1, result.Metadata["additions"])
	assert.Equal(t, 1, result.Metadata["deletions"])
}

func TestWrite_InvalidJSONInput(t *testing.T) {
	_, err := NewWriteTool(t.TempDir()).Execute(context.Background(),
		json.RawMessage(`{"file_path": 42}`), testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

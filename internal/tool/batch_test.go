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

// failTool always errors, to exercise partial outcomes.
type failTool struct{}

func (f *failTool) ID() string          { return "alwaysfail" }
func (f *failTool) Description() string { return "fails" }
func (f *failTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (f *failTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	return nil, fmt.Errorf("deliberate failure")
}

func batchFixture(t *testing.T) (*BatchTool, string) {
	t.Helper()
	dir := t.TempDir()
	registry := DefaultRegistry(dir, nil)
	registry.Register(&failTool{})
	return NewBatchTool(dir, registry), dir
}

func runBatch(t *testing.T, b *BatchTool, calls ...BatchCall) (*Result, error) {
	t.Helper()
	input, err := json.Marshal(batchParams{ToolCalls: calls})
	require.NoError(t, err)
	return b.Execute(context.Background(), input, testContext())
}

func readCall(path string) BatchCall {
	raw, _ := json.Marshal(map[string]string{"file_path": path})
	return BatchCall{Tool: "read", Parameters: raw}
}

func TestBatch_AllSucceed(t *testing.T) {
	b, dir := batchFixture(t)
	p1 := filepath.Join(dir, "one.txt")
	p2 := filepath.Join(dir, "two.txt")
	require.NoError(t, os.WriteFile(p1, []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(p2, []byte("second"), 0o644))

	result, err := runBatch(t, b, readCall(p1), readCall(p2))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Metadata["successful"])
	assert.Equal(t, 0, result.Metadata["failed"])
	assert.Contains(t, result.Output, "2/2 sub-calls succeeded")
	assert.Contains(t, result.Output, "first")
	assert.Contains(t, result.Output, "second")
}

func TestBatch_PartialFailureKeepsSiblings(t *testing.T) {
	b, dir := batchFixture(t)
	p := filepath.Join(dir, "ok.txt")
	require.NoError(t, os.WriteFile(p, []byte("fine"), 0o644))

	result, err := runBatch(t, b,
		readCall(p),
		BatchCall{Tool: "alwaysfail", Parameters: json.RawMessage(`{}`)},
	)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Metadata["successful"])
	assert.Equal(t, 1, result.Metadata["failed"])
	assert.Contains(t, result.Output, "=== read (ok) ===")
	assert.Contains(t, result.Output, "=== alwaysfail (failed) ===")
	assert.Contains(t, result.Output, "deliberate failure")
}

func TestBatch_AllFail(t *testing.T) {
	b, _ := batchFixture(t)

	result, err := runBatch(t, b,
		BatchCall{Tool: "alwaysfail", Parameters: json.RawMessage(`{}`)},
		BatchCall{Tool: "alwaysfail", Parameters: json.RawMessage(`{}`)},
	)
	require.NoError(t, err, "zero successes still produce a summary, not an error")
	assert.Equal(t, 0, result.Metadata["successful"])
	assert.Equal(t, 2, result.Metadata["failed"])
	assert.Contains(t, result.Output, "0/2 sub-calls succeeded")
}

func TestBatch_EmptyCallsRejected(t *testing.T) {
	b, _ := batchFixture(t)

	_, err := runBatch(t, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one")
}

func TestBatch_TooManyCallsRejected(t *testing.T) {
	b, dir := batchFixture(t)
	p := filepath.Join(dir, "x.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	calls := make([]BatchCall, maxBatchCalls+1)
	for i := range calls {
		calls[i] = readCall(p)
	}
	_, err := runBatch(t, b, calls...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 10")
}

func TestBatch_NestedBatchRefused(t *testing.T) {
	b, _ := batchFixture(t)

	result, err := runBatch(t, b, BatchCall{Tool: "batch", Parameters: json.RawMessage(`{"tool_calls":[]}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metadata["failed"])
	assert.Contains(t, result.Output, "cannot nest")
}

func TestBatch_EditRefused(t *testing.T) {
	b, _ := batchFixture(t)

	result, err := runBatch(t, b, BatchCall{Tool: "edit", Parameters: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metadata["failed"])
	assert.Contains(t, result.Output, "not allowed in a batch")
}

func TestBatch_UnknownToolListsAlternatives(t *testing.T) {
	b, _ := batchFixture(t)

	result, err := runBatch(t, b, BatchCall{Tool: "telepathy", Parameters: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metadata["failed"])
	assert.Contains(t, result.Output, `"telepathy" not found`)
	assert.Contains(t, result.Output, "read")
}

func TestBatch_PermissionHookGatesSubCalls(t *testing.T) {
	b, dir := batchFixture(t)
	p := filepath.Join(dir, "gated.txt")
	require.NoError(t, os.WriteFile(p, []byte("gated"), 0o644))

	toolCtx := testContext()
	toolCtx.CheckPermission = func(toolName string, input map[string]any) (bool, string) {
		return toolName == "read", "read is denied for this agent"
	}

	input, err := json.Marshal(batchParams{ToolCalls: []BatchCall{readCall(p)}})
	require.NoError(t, err)
	result, err := b.Execute(context.Background(), input, toolCtx)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Metadata["successful"])
	assert.Contains(t, result.Output, "read is denied for this agent")
}

func TestBatch_SubCallsInheritPathGuard(t *testing.T) {
	b, dir := batchFixture(t)
	target := filepath.Join(dir, "protected.txt")
	require.NoError(t, os.WriteFile(target, []byte("before"), 0o644))

	toolCtx := testContext()
	toolCtx.PathGuard = deniedGuard(t)

	raw, _ := json.Marshal(map[string]string{"file_path": target, "content": "after"})
	input, err := json.Marshal(batchParams{ToolCalls: []BatchCall{{Tool: "write", Parameters: raw}}})
	require.NoError(t, err)
	result, err := b.Execute(context.Background(), input, toolCtx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Metadata["failed"])
	data, _ := os.ReadFile(target)
	assert.Equal(t, "before", string(data), "guard must stop the batched write")
}

func TestBatch_LongOutputsArePreviewTruncated(t *testing.T) {
	b, dir := batchFixture(t)
	p := filepath.Join(dir, "huge.txt")
	require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("wide line of text\n", 500)), 0o644))

	result, err := runBatch(t, b, readCall(p))
	require.NoError(t, err)
	assert.Contains(t, result.Output, "(truncated)")
	assert.Less(t, len(result.Output), 4000)
}

func TestBatch_MalformedPayload(t *testing.T) {
	b, _ := batchFixture(t)
	_, err := b.Execute(context.Background(), json.RawMessage(`{"tool_calls": "nope"}`), testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected")
}

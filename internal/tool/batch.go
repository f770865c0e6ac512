package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolo-run/wolo/pkg/types"
)

const (
	// maxBatchCalls caps how many sub-calls one batch may carry.
	maxBatchCalls = 10
	// batchPreviewLen truncates each sub-call's output in the summary.
	batchPreviewLen = 2000
)

const batchDescription = `Run several independent tool calls concurrently.

Payload: {"tool_calls": [{"tool": "read", "parameters": {"file_path": "..."}}, ...]}

- 1 to 10 sub-calls per batch; sub-calls start together and finish in any
  order.
- A failing sub-call does not stop its siblings; the summary reports each
  one separately.
- batch cannot nest, and edit is excluded (run edits one at a time so
  their order is explicit).
- Use it for fan-out context gathering: many reads, grep plus glob,
  independent inspection commands. Do not use it when one call's input
  depends on another call's output.`

// batchExcluded lists tools a batch refuses to run.
var batchExcluded = map[string]string{
	"batch":    "batches cannot nest",
	"edit":     "run edits separately so their order is explicit",
	"todoread": "call it directly, it is cheap",
}

// BatchTool fans sub-calls out over the shared registry.
type BatchTool struct {
	workDir  string
	registry *Registry
}

type batchParams struct {
	ToolCalls []BatchCall `json:"tool_calls"`
}

// BatchCall is one sub-call inside a batch payload.
type BatchCall struct {
	Tool       string          `json:"tool"`
	Parameters json.RawMessage `json:"parameters"`
}

// batchOutcome records how one sub-call went.
type batchOutcome struct {
	index   int
	tool    string
	ok      bool
	result  *Result
	errText string
	elapsed time.Duration
}

// NewBatchTool creates the batch tool over registry.
func NewBatchTool(workDir string, registry *Registry) *BatchTool {
	return &BatchTool{workDir: workDir, registry: registry}
}

func (t *BatchTool) ID() string          { return "batch" }
func (t *BatchTool) Description() string { return batchDescription }

func (t *BatchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"tool_calls": {
				"type": "array",
				"description": "Tool calls to run concurrently",
				"items": {
					"type": "object",
					"properties": {
						"tool": {
							"type": "string",
							"description": "Name of the tool to run"
						},
						"parameters": {
							"type": "object",
							"description": "Input for that tool"
						}
					},
					"required": ["tool", "parameters"]
				},
				"minItems": 1
			}
		},
		"required": ["tool_calls"]
	}`)
}

func (t *BatchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params batchParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w\n\nExpected: {\"tool_calls\": [{\"tool\": \"name\", \"parameters\": {...}}]}", err)
	}
	if len(params.ToolCalls) == 0 {
		return nil, fmt.Errorf("tool_calls must contain at least one call")
	}
	if len(params.ToolCalls) > maxBatchCalls {
		return nil, fmt.Errorf("batch accepts at most %d tool calls, got %d; split into multiple batches", maxBatchCalls, len(params.ToolCalls))
	}

	outcomes := make([]*batchOutcome, len(params.ToolCalls))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range params.ToolCalls {
		i, call := i, call
		g.Go(func() error {
			out := t.runSubCall(gctx, i, call, toolCtx)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			return nil // siblings keep running on failure
		})
	}
	_ = g.Wait()

	return t.summarize(outcomes), nil
}

// runSubCall executes one sub-call under the outer call's path guard and
// permission hook, so a batched call is gated exactly like a top-level one.
func (t *BatchTool) runSubCall(ctx context.Context, index int, call BatchCall, toolCtx *Context) *batchOutcome {
	start := time.Now()
	out := &batchOutcome{index: index, tool: call.Tool}
	defer func() { out.elapsed = time.Since(start) }()

	if why, excluded := batchExcluded[call.Tool]; excluded {
		out.errText = fmt.Sprintf("tool %q is not allowed in a batch: %s", call.Tool, why)
		return out
	}
	impl, ok := t.registry.Get(call.Tool)
	if !ok {
		out.errText = fmt.Sprintf("tool %q not found; available: %s", call.Tool, strings.Join(t.suggestableTools(), ", "))
		return out
	}

	subCtx := &Context{
		SessionID:       toolCtx.SessionID,
		MessageID:       toolCtx.MessageID,
		CallID:          fmt.Sprintf("%s-batch-%d", toolCtx.CallID, index),
		Agent:           toolCtx.Agent,
		WorkDir:         toolCtx.WorkDir,
		AbortCh:         toolCtx.AbortCh,
		Extra:           toolCtx.Extra,
		PathGuard:       toolCtx.PathGuard,
		CheckPermission: toolCtx.CheckPermission,
		// metadata streaming is per-part; a sub-call has no part of its own
	}

	if toolCtx.CheckPermission != nil {
		var input map[string]any
		_ = json.Unmarshal(call.Parameters, &input)
		if denied, reason := toolCtx.CheckPermission(call.Tool, input); denied {
			out.errText = reason
			return out
		}
	}

	result, err := impl.Execute(ctx, call.Parameters, subCtx)
	if err != nil {
		out.errText = err.Error()
		return out
	}
	out.ok = true
	out.result = result
	return out
}

// summarize folds the outcomes into one Result: a headline count, then a
// truncated preview per sub-call. The "failed" metadata key drives the
// outer part's completed-vs-partial status upstream.
func (t *BatchTool) summarize(outcomes []*batchOutcome) *Result {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })

	succeeded := 0
	var sections []string
	var attachments []types.FilePart
	details := make([]map[string]any, 0, len(outcomes))
	tools := make([]string, len(outcomes))

	for i, out := range outcomes {
		tools[i] = out.tool
		detail := map[string]any{
			"tool":    out.tool,
			"success": out.ok,
			"time_ms": out.elapsed.Milliseconds(),
		}
		if out.ok {
			succeeded++
			if out.result != nil {
				sections = append(sections, fmt.Sprintf("=== %s (ok) ===\n%s", out.tool, previewText(out.result.Output)))
				attachments = append(attachments, out.result.Attachments...)
				detail["title"] = out.result.Title
			}
		} else {
			sections = append(sections, fmt.Sprintf("=== %s (failed) ===\n%s", out.tool, previewText(out.errText)))
			detail["error"] = out.errText
		}
		details = append(details, detail)
	}

	failed := len(outcomes) - succeeded
	headline := fmt.Sprintf("%d/%d sub-calls succeeded.", succeeded, len(outcomes))
	if failed > 0 {
		headline = fmt.Sprintf("%d/%d sub-calls succeeded, %d failed.", succeeded, len(outcomes), failed)
	}

	return &Result{
		Title:       fmt.Sprintf("Batch (%d/%d succeeded)", succeeded, len(outcomes)),
		Output:      headline + "\n\n" + strings.Join(sections, "\n\n"),
		Attachments: attachments,
		Metadata: map[string]any{
			"total":      len(outcomes),
			"successful": succeeded,
			"failed":     failed,
			"tools":      tools,
			"details":    details,
		},
	}
}

// previewText bounds one sub-call's contribution to the summary.
func previewText(s string) string {
	if len(s) <= batchPreviewLen {
		return s
	}
	return s[:batchPreviewLen] + "\n... (truncated)"
}

// suggestableTools lists registry tools worth suggesting on a bad name.
func (t *BatchTool) suggestableTools() []string {
	var out []string
	for _, impl := range t.registry.List() {
		if _, excluded := batchExcluded[impl.ID()]; excluded {
			continue
		}
		out = append(out, impl.ID())
	}
	sort.Strings(out)
	return out
}

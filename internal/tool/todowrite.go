package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolo-run/wolo/internal/event"
	"github.com/wolo-run/wolo/internal/session"
	"github.com/wolo-run/wolo/pkg/types"
)

const todowriteDescription = `Replace the session's todo list with an updated one.

Use it to plan multi-step work and show progress:
- Create todos when a task has three or more distinct steps, or the user
  gave several tasks at once.
- Keep exactly one item in_progress; mark items completed as soon as they
  finish rather than batching updates.
- Drop items that stopped being relevant instead of leaving them pending.

Skip it for single trivial tasks and purely conversational turns.

Each item carries id, content, status (pending | in_progress | completed)
and priority (high | medium | low).`

// TodoWriteTool persists the session's todo list and announces the change.
type TodoWriteTool struct {
	workDir string
	store   *session.Store
}

type todoWriteParams struct {
	Todos []types.TodoInfo `json:"todos"`
}

// NewTodoWriteTool creates the todowrite tool over the session store.
func NewTodoWriteTool(workDir string, store *session.Store) *TodoWriteTool {
	return &TodoWriteTool{workDir: workDir, store: store}
}

func (t *TodoWriteTool) ID() string          { return "todowrite" }
func (t *TodoWriteTool) Description() string { return todowriteDescription }

func (t *TodoWriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"todos": {
				"type": "array",
				"description": "The full replacement todo list",
				"items": {
					"type": "object",
					"properties": {
						"id": {
							"type": "string",
							"description": "Stable identifier for the item"
						},
						"content": {
							"type": "string",
							"description": "What needs doing"
						},
						"status": {
							"type": "string",
							"description": "pending, in_progress, or completed"
						},
						"priority": {
							"type": "string",
							"description": "high, medium, or low"
						}
					},
					"required": ["id", "content", "status", "priority"]
				}
			}
		},
		"required": ["todos"]
	}`)
}

func (t *TodoWriteTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params todoWriteParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if err := t.store.SaveTodos(toolCtx.SessionID, params.Todos); err != nil {
		return nil, fmt.Errorf("save todos: %w", err)
	}

	event.Publish(event.Event{
		Type: event.TodoUpdated,
		Data: event.TodoUpdatedData{
			SessionID: toolCtx.SessionID,
			Todos:     params.Todos,
		},
	})

	out, _ := json.MarshalIndent(params.Todos, "", "  ")
	return &Result{
		Title:    fmt.Sprintf("%d todos open", openTodoCount(params.Todos)),
		Output:   string(out),
		Metadata: map[string]any{"todos": params.Todos},
	}, nil
}

// openTodoCount counts items not yet completed.
func openTodoCount(todos []types.TodoInfo) int {
	n := 0
	for _, todo := range todos {
		if todo.Status != "completed" {
			n++
		}
	}
	return n
}

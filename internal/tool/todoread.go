package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolo-run/wolo/internal/session"
)

const todoreadDescription = `Read the session's current todo list.`

// TodoReadTool returns the persisted todo list for the calling session.
type TodoReadTool struct {
	workDir string
	store   *session.Store
}

// NewTodoReadTool creates the todoread tool over the session store.
func NewTodoReadTool(workDir string, store *session.Store) *TodoReadTool {
	return &TodoReadTool{workDir: workDir, store: store}
}

func (t *TodoReadTool) ID() string          { return "todoread" }
func (t *TodoReadTool) Description() string { return todoreadDescription }

func (t *TodoReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {},
		"required": []
	}`)
}

func (t *TodoReadTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	todos, err := t.store.GetTodos(toolCtx.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load todos: %w", err)
	}

	out, _ := json.MarshalIndent(todos, "", "  ")
	return &Result{
		Title:    fmt.Sprintf("%d todos open", openTodoCount(todos)),
		Output:   string(out),
		Metadata: map[string]any{"todos": todos},
	}, nil
}

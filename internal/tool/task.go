package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wolo-run/wolo/internal/agent"
)

const taskDescription = `Delegate a self-contained piece of work to a subagent.

The subagent runs its own agent loop in a child session with the chosen
agent configuration and reports back its final answer.

Agent types:
- general: full tool suite, for open-ended work
- explore: read-only codebase exploration
- plan: analysis and planning without mutations

Notes:
- Each invocation is stateless; put everything the subagent needs into
  message.
- Independent tasks can be delegated concurrently via batch.`

// TaskTool spawns subagent sessions through a pluggable executor.
type TaskTool struct {
	workDir       string
	agentRegistry *agent.Registry
	executor      TaskExecutor
}

// TaskExecutor runs a subagent loop in a child session. Implemented by the
// agent loop package; the indirection keeps this package free of a
// dependency cycle (agents need tools, task needs agents).
type TaskExecutor interface {
	ExecuteSubtask(ctx context.Context, sessionID string, agentName string, prompt string, opts TaskOptions) (*TaskResult, error)
}

// TaskOptions carries optional knobs for one subtask run.
type TaskOptions struct {
	Model       string
	ResumeFrom  string
	Description string
}

// TaskResult is what a finished subtask reports back.
type TaskResult struct {
	Output    string         `json:"output"`
	SessionID string         `json:"session_id"`
	AgentID   string         `json:"agent_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type taskParams struct {
	Agent       string `json:"agent"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
	Model       string `json:"model,omitempty"`
}

// NewTaskTool creates the task tool over an agent registry.
func NewTaskTool(workDir string, registry *agent.Registry) *TaskTool {
	if registry == nil {
		registry = agent.NewRegistry()
	}
	return &TaskTool{workDir: workDir, agentRegistry: registry}
}

// SetExecutor wires in the subagent executor after construction.
func (t *TaskTool) SetExecutor(executor TaskExecutor) {
	t.executor = executor
}

func (t *TaskTool) ID() string          { return "task" }
func (t *TaskTool) Description() string { return taskDescription }

func (t *TaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"agent": {
				"type": "string",
				"description": "Agent type to run the task with (general, explore, plan)"
			},
			"message": {
				"type": "string",
				"description": "The full task for the subagent"
			},
			"description": {
				"type": "string",
				"description": "A 3-5 word label for the task"
			},
			"model": {
				"type": "string",
				"description": "Optional model override for the subagent"
			}
		},
		"required": ["agent", "message"]
	}`)
}

func (t *TaskTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params taskParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Agent == "" {
		return nil, fmt.Errorf("agent is required")
	}
	if params.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	sub, err := t.agentRegistry.Get(params.Agent)
	if err != nil {
		return nil, fmt.Errorf("unknown agent type %q; available: %s", params.Agent, strings.Join(t.subagentNames(), ", "))
	}
	if !sub.IsSubagent() {
		return nil, fmt.Errorf("agent %q cannot run as a subagent (mode: %s)", params.Agent, sub.Mode)
	}

	label := params.Description
	if label == "" {
		label = params.Agent + " task"
	}
	toolCtx.SetMetadata(label, map[string]any{
		"subagent": params.Agent,
		"status":   "starting",
	})

	if t.executor == nil {
		return &Result{
			Title:  "Task: " + label,
			Output: fmt.Sprintf("[no subagent executor configured]\n\nAgent: %s\nMessage: %s", params.Agent, params.Message),
			Metadata: map[string]any{
				"subagent": params.Agent,
				"status":   "skipped",
			},
		}, nil
	}

	result, err := t.executor.ExecuteSubtask(ctx, toolCtx.SessionID, params.Agent, params.Message, TaskOptions{
		Model:       params.Model,
		Description: label,
	})
	if err != nil {
		return &Result{
			Title:  "Task failed: " + label,
			Output: "Error: " + err.Error(),
			Metadata: map[string]any{
				"subagent": params.Agent,
				"status":   "failed",
				"error":    err.Error(),
			},
		}, nil
	}

	meta := map[string]any{
		"subagent": params.Agent,
		"status":   "completed",
	}
	if result.SessionID != "" {
		meta["session_id"] = result.SessionID
	}
	if result.AgentID != "" {
		meta["agent_id"] = result.AgentID
	}
	for k, v := range result.Metadata {
		meta[k] = v
	}

	return &Result{
		Title:    "Completed: " + label,
		Output:   result.Output,
		Metadata: meta,
	}, nil
}

// FormatToolStart labels the delegation by its description and agent.
func (t *TaskTool) FormatToolStart(input map[string]any) string {
	agentName, _ := input["agent"].(string)
	if desc, _ := input["description"].(string); desc != "" {
		return fmt.Sprintf("%s (%s agent)", desc, agentName)
	}
	if agentName != "" {
		return "delegate to " + agentName
	}
	return ""
}

// FormatToolComplete reports which child session did the work.
func (t *TaskTool) FormatToolComplete(output, status string, duration time.Duration, metadata map[string]any) string {
	sessionID, _ := metadata["session_id"].(string)
	if sessionID == "" {
		return ""
	}
	return fmt.Sprintf("%s in session %s (%s)", status, sessionID, duration.Round(time.Second))
}

// ShowOutput is true: the subagent's final answer is the result.
func (t *TaskTool) ShowOutput() bool { return true }

// subagentNames lists the agent types task may delegate to.
func (t *TaskTool) subagentNames() []string {
	agents := t.agentRegistry.ListSubagents()
	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = a.Name
	}
	return names
}

package tool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolo-run/wolo/internal/agent"
	"github.com/wolo-run/wolo/internal/control"
	"github.com/wolo-run/wolo/internal/session"
)

// ToolRenderer is the optional per-tool rendering hook set. A tool that
// implements it controls the one-line briefs published with its tool-start
// and tool-complete events, and whether renderers should show its raw
// output at all. Tools that don't implement it get the registry's
// defaults.
type ToolRenderer interface {
	// FormatToolStart renders a short "what is about to run" line from the
	// call input. Returning "" falls back to the registry default.
	FormatToolStart(input map[string]any) string

	// FormatToolComplete renders a short outcome line. Returning "" falls
	// back to the registry default.
	FormatToolComplete(output, status string, duration time.Duration, metadata map[string]any) string

	// ShowOutput reports whether renderers should display the tool's full
	// output below the brief.
	ShowOutput() bool
}

// Registry holds every tool available to a run: the built-in suite plus any
// task tool wired to a subagent registry.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	workDir string
	store   *session.Store
}

// NewRegistry creates an empty tool registry rooted at workDir.
func NewRegistry(workDir string, store *session.Store) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		workDir: workDir,
		store:   store,
	}
}

// Store returns the session store backing todo persistence.
func (r *Registry) Store() *session.Store {
	return r.store
}

// Register adds a tool to the registry. A name containing "__" is rejected:
// that separator is reserved for namespacing MCP-server tools
// (server__toolname) and a built-in or agent tool using it would collide
// with that scheme.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if containsDoubleUnderscore(t.ID()) {
		log.Warn().Str("tool", t.ID()).Msg("tool: refusing to register name reserved for MCP namespacing")
		return
	}
	r.tools[t.ID()] = t
}

func containsDoubleUnderscore(id string) bool {
	for i := 0; i+1 < len(id); i++ {
		if id[i] == '_' && id[i+1] == '_' {
			return true
		}
	}
	return false
}

// Get retrieves a tool by exact ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// List returns every registered tool in unspecified order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}

// IDs returns every registered tool ID, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultRegistry builds a registry with the full built-in tool suite.
func DefaultRegistry(workDir string, store *session.Store) *Registry {
	r := NewRegistry(workDir, store)

	r.Register(NewReadTool(workDir))
	r.Register(NewWriteTool(workDir))
	r.Register(NewEditTool(workDir))
	r.Register(NewBashTool(workDir))
	r.Register(NewGlobTool(workDir))
	r.Register(NewGrepTool(workDir))
	r.Register(NewListTool(workDir))
	r.Register(NewWebFetchTool(workDir))

	r.Register(NewTodoWriteTool(workDir, store))
	r.Register(NewTodoReadTool(workDir, store))

	r.Register(NewBatchTool(workDir, r))

	return r
}

// RegisterQuestionTool adds the interactive question tool bound to a
// session's Control Manager. The tool stays registered regardless of mode;
// the mode filter excludes it from the model's tool list at projection
// time instead, via modes.Config.EnableQuestionTool in the Agent Loop's
// wire-tool builder.
func (r *Registry) RegisterQuestionTool(ctrl *control.Manager) {
	r.Register(NewQuestionTool(ctrl))
}

// RegisterTaskTool wires the task tool to an agent registry. Called
// separately since the agent registry and the tool registry are built in
// opposite dependency directions (agents need tools, task needs agents).
func (r *Registry) RegisterTaskTool(agentReg *agent.Registry) {
	r.Register(NewTaskTool(r.workDir, agentReg))
}

// SetTaskExecutor wires the subagent executor into an already-registered
// task tool.
func (r *Registry) SetTaskExecutor(executor TaskExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tools["task"]; ok {
		if taskTool, ok := t.(*TaskTool); ok {
			taskTool.SetExecutor(executor)
		}
	}
}


// maxBriefLen bounds the one-line briefs so a pasted file or command
// never floods the renderer.
const maxBriefLen = 80

// briefArgKeys are the input fields worth surfacing in a default start
// brief, most descriptive first.
var briefArgKeys = []string{
	"description", "command", "file_path", "pattern", "path", "url",
	"agent", "question",
}

// FormatToolStart renders the brief published with a tool-start event:
// the tool's own ToolRenderer hook when it has one, otherwise the tool
// name plus its most descriptive input field.
func (r *Registry) FormatToolStart(toolName string, input map[string]any) string {
	if impl, ok := r.Get(toolName); ok {
		if renderer, ok := impl.(ToolRenderer); ok {
			if brief := renderer.FormatToolStart(input); brief != "" {
				return truncateBrief(brief)
			}
		}
	}
	for _, key := range briefArgKeys {
		if v, ok := input[key].(string); ok && v != "" {
			return truncateBrief(toolName + ": " + v)
		}
	}
	return toolName
}

// FormatToolComplete renders the brief published with a tool-complete
// event; the default is "name status (duration)".
func (r *Registry) FormatToolComplete(toolName, output, status string, duration time.Duration, metadata map[string]any) string {
	if impl, ok := r.Get(toolName); ok {
		if renderer, ok := impl.(ToolRenderer); ok {
			if brief := renderer.FormatToolComplete(output, status, duration, metadata); brief != "" {
				return truncateBrief(brief)
			}
		}
	}
	return fmt.Sprintf("%s %s (%s)", toolName, status, duration.Round(time.Millisecond))
}

// ShowOutput reports whether renderers should display a tool's full
// output; tools without a ToolRenderer hook default to showing it.
func (r *Registry) ShowOutput(toolName string) bool {
	if impl, ok := r.Get(toolName); ok {
		if renderer, ok := impl.(ToolRenderer); ok {
			return renderer.ShowOutput()
		}
	}
	return true
}

func truncateBrief(s string) string {
	if len(s) <= maxBriefLen {
		return s
	}
	return s[:maxBriefLen-3] + "..."
}

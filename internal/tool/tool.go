// Package tool implements the built-in tool suite and the dispatcher that
// runs them: JSON-schema validated input, permission/path-safety gates,
// metadata capture, and parallel batch execution.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wolo-run/wolo/internal/pathguard"
	"github.com/wolo-run/wolo/pkg/types"
)

// Tool defines the interface every built-in and MCP-wrapped tool implements.
type Tool interface {
	// ID returns the tool identifier, as seen by the model and the registry.
	ID() string

	// Description returns the tool description shown to the model.
	Description() string

	// Parameters returns the JSON Schema for tool input.
	Parameters() json.RawMessage

	// Execute runs the tool against validated input.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// Context carries per-invocation state into a tool's Execute method.
type Context struct {
	SessionID string
	MessageID string
	CallID    string
	Agent     string
	WorkDir   string
	AbortCh   <-chan struct{}
	Extra     map[string]any

	// PathGuard gates file-writing tools. A batch sub-call
	// context carries the same Guard as its parent; the guard is
	// per-session state, not per-call, so there is no "outer" vs "inner"
	// gate to bypass.
	PathGuard *pathguard.Guard

	// CheckPermission, when set, applies the active agent's permission
	// policy to a tool name/input pair. The batch
	// tool calls this once per sub-call so sub-calls are gated exactly
	// like a top-level call would be.
	// Returns denied=true and a human-readable reason when the call
	// should not run. Nil means no agent is bound (every call allowed),
	// matching the top-level dispatcher's own nil-agent behavior.
	CheckPermission func(toolName string, input map[string]any) (denied bool, reason string)

	// OnMetadata streams incremental metadata updates while a tool runs.
	OnMetadata func(title string, meta map[string]any)
}

// resolvePath consults toolCtx's PathGuard, if any, returning the canonical
// path to operate on. A nil guard (or one that doesn't gate the write)
// passes the original path through unchanged.
func resolvePath(toolCtx *Context, path string) (string, error) {
	if toolCtx == nil || toolCtx.PathGuard == nil {
		return path, nil
	}
	canon, decision, err := toolCtx.PathGuard.Resolve(path)
	if err != nil {
		return "", err
	}
	switch decision {
	case pathguard.DecisionAllowed:
		return canon, nil
	default:
		toolCtx.PathGuard.Deny(canon, string(decision))
		reason := pathguard.ReasonOutsideWorkdir
		if decision == pathguard.DecisionNeedsConfirm {
			reason = "needs_confirmation"
		}
		return "", &pathguard.Error{Reason: reason, Path: canon}
	}
}

// SetMetadata updates tool execution metadata, if a sink was supplied.
func (c *Context) SetMetadata(title string, meta map[string]any) {
	if c != nil && c.OnMetadata != nil {
		c.OnMetadata(title, meta)
	}
}

// IsAborted reports whether the calling session has requested interruption.
func (c *Context) IsAborted() bool {
	if c == nil || c.AbortCh == nil {
		return false
	}
	select {
	case <-c.AbortCh:
		return true
	default:
		return false
	}
}

// Result is the output of a successful tool execution. Attachments are
// file parts the dispatcher appends to the owning assistant message (with
// fresh part IDs) after the call completes.
type Result struct {
	Title       string           `json:"title"`
	Output      string           `json:"output"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	Attachments []types.FilePart `json:"attachments,omitempty"`
}

// BaseTool is a minimal Tool implementation for tools expressed as a closure
// plus static metadata (used by simpler built-ins and tests).
type BaseTool struct {
	id          string
	description string
	parameters  json.RawMessage
	execute     func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// NewBaseTool builds a BaseTool from its static description and handler.
func NewBaseTool(id, description string, params json.RawMessage, execute func(context.Context, json.RawMessage, *Context) (*Result, error)) *BaseTool {
	return &BaseTool{id: id, description: description, parameters: params, execute: execute}
}

func (t *BaseTool) ID() string                  { return t.id }
func (t *BaseTool) Description() string         { return t.description }
func (t *BaseTool) Parameters() json.RawMessage { return t.parameters }

func (t *BaseTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	return t.execute(ctx, input, toolCtx)
}

// schemaCache compiles and memoizes a tool's JSON Schema, used by the
// dispatcher to validate input before Execute is ever called.
var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*jsonschema.Schema{}
)

// compiledSchema returns the compiled input schema for a tool, compiling and
// caching it on first use. A tool whose Parameters is empty has no schema
// and validation is skipped.
func compiledSchema(toolID string, raw json.RawMessage) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if s, ok := schemaCache[toolID]; ok {
		return s, nil
	}
	if len(raw) == 0 {
		return nil, nil
	}

	c := jsonschema.NewCompiler()
	resourceName := toolID + ".json"
	if err := c.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", toolID, err)
	}
	s, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", toolID, err)
	}
	schemaCache[toolID] = s
	return s, nil
}

// validateInput checks tool input against its declared JSON Schema.
func validateInput(t Tool, input json.RawMessage) error {
	schema, err := compiledSchema(t.ID(), t.Parameters())
	if err != nil {
		// A malformed schema is a registration bug, not a per-call error;
		// don't block execution on it.
		return nil
	}
	if schema == nil {
		return nil
	}

	var v any
	if len(input) == 0 {
		v = map[string]any{}
	} else if err := json.Unmarshal(input, &v); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("input does not match %s's schema: %w", t.ID(), err)
	}
	return nil
}

package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/wolo-run/wolo/pkg/types"
)

// Dispatcher resolves tool calls by name, validates their input against the
// tool's JSON schema, and executes them: the single entry point the Agent
// Loop uses for every tool call a model requests.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a Dispatcher over registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// UnknownToolError is returned when a model requests a tool name the
// registry doesn't recognize. Suggestion holds the closest registered name
// by edit distance, or "" if nothing is close enough to be useful.
type UnknownToolError struct {
	Requested  string
	Suggestion string
}

func (e *UnknownToolError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown tool %q (did you mean %q?)", e.Requested, e.Suggestion)
	}
	return fmt.Sprintf("unknown tool %q", e.Requested)
}

// maxSuggestionDistance bounds how different a name can be from the request
// and still be offered as a "did you mean" suggestion; beyond this the two
// names are probably unrelated.
const maxSuggestionDistance = 3

// Resolve looks up a tool by name, returning an *UnknownToolError carrying
// the closest match (by Levenshtein distance over registered IDs) when the
// name isn't found.
func (d *Dispatcher) Resolve(name string) (Tool, error) {
	if t, ok := d.registry.Get(name); ok {
		return t, nil
	}
	return nil, &UnknownToolError{Requested: name, Suggestion: d.suggest(name)}
}

func (d *Dispatcher) suggest(name string) string {
	best := ""
	bestDist := maxSuggestionDistance + 1
	for _, id := range d.registry.IDs() {
		dist := levenshtein.ComputeDistance(name, id)
		if dist < bestDist {
			bestDist = dist
			best = id
		}
	}
	if bestDist > maxSuggestionDistance {
		return ""
	}
	return best
}

// Dispatch resolves, validates, and executes a single tool call.
func (d *Dispatcher) Dispatch(ctx context.Context, call types.ToolPart, toolCtx *Context) (*Result, error) {
	t, err := d.Resolve(call.ToolName)
	if err != nil {
		return nil, err
	}

	inputJSON, err := marshalToolInput(call.Input)
	if err != nil {
		return nil, fmt.Errorf("tool %s: marshal input: %w", call.ToolName, err)
	}
	if err := validateInput(t, inputJSON); err != nil {
		return nil, fmt.Errorf("tool %s: invalid input: %w", call.ToolName, err)
	}

	return t.Execute(ctx, inputJSON, toolCtx)
}

// marshalToolInput round-trips a decoded input map back to JSON for a
// Tool.Execute call, which always takes json.RawMessage regardless of
// whether the caller already had a map in hand.
func marshalToolInput(input map[string]any) ([]byte, error) {
	return json.Marshal(input)
}

// SortedNames returns every registered tool ID in alphabetical order, used
// for "available tools" listings in error messages.
func (d *Dispatcher) SortedNames() []string {
	ids := d.registry.IDs()
	sort.Strings(ids)
	return ids
}

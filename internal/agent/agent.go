// Package agent defines agent configurations: which tools an agent may
// use, its permission posture, and the built-in agent set.
package agent

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/wolo-run/wolo/internal/permission"
)

// Agent is one named configuration a session runs under.
type Agent struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Mode        Mode            `json:"mode"`
	BuiltIn     bool            `json:"built_in"`
	Permission  AgentPermission `json:"permission"`
	Tools       map[string]bool `json:"tools"`
	Options     map[string]any  `json:"options,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"top_p,omitempty"`
	Model       *ModelRef       `json:"model,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Color       string          `json:"color,omitempty"`
}

// Mode says where an agent may run: driving a session, as a task-tool
// subagent, or both.
type Mode string

const (
	ModePrimary  Mode = "primary"
	ModeSubagent Mode = "subagent"
	ModeAll      Mode = "all"
)

// ModelRef pins an agent to a specific endpoint/model pair.
type ModelRef struct {
	ProviderID string `json:"provider_id"`
	ModelID    string `json:"model_id"`
}

// AgentPermission is the per-agent permission posture consulted by the
// dispatcher before every tool call.
type AgentPermission struct {
	Edit        permission.PermissionAction            `json:"edit,omitempty"`
	Bash        map[string]permission.PermissionAction `json:"bash,omitempty"`
	WebFetch    permission.PermissionAction            `json:"webfetch,omitempty"`
	ExternalDir permission.PermissionAction            `json:"external_directory,omitempty"`
	DoomLoop    permission.PermissionAction            `json:"doom_loop,omitempty"`
}

// ToolEnabled reports whether the agent may see and call a tool. An exact
// entry wins over wildcard entries, and a more specific wildcard wins over
// a catch-all; an unmentioned tool is enabled.
func (a *Agent) ToolEnabled(toolID string) bool {
	if enabled, ok := a.Tools[toolID]; ok {
		return enabled
	}
	matched, enabled := false, true
	best := -1
	for pattern, on := range a.Tools {
		if !patternMatch(pattern, toolID) {
			continue
		}
		specificity := len(strings.ReplaceAll(pattern, "*", ""))
		if specificity > best {
			best, matched, enabled = specificity, true, on
		}
	}
	if matched {
		return enabled
	}
	return true
}

// CheckBashPermission resolves a shell command against the agent's bash
// pattern table, most specific pattern first, so a catch-all "*" entry
// never shadows an explicit rule. Unmatched commands ask.
func (a *Agent) CheckBashPermission(command string) permission.PermissionAction {
	patterns := make([]string, 0, len(a.Permission.Bash))
	for pattern := range a.Permission.Bash {
		patterns = append(patterns, pattern)
	}
	sort.Slice(patterns, func(i, j int) bool {
		pi, pj := patterns[i], patterns[j]
		li := len(strings.ReplaceAll(pi, "*", ""))
		lj := len(strings.ReplaceAll(pj, "*", ""))
		if li != lj {
			return li > lj // more literal characters = more specific
		}
		return pi < pj
	})

	for _, pattern := range patterns {
		if patternMatch(pattern, command) {
			return a.Permission.Bash[pattern]
		}
	}
	return permission.ActionAsk
}

// GetPermission resolves a non-bash permission type, defaulting to ask when
// the agent left it unset.
func (a *Agent) GetPermission(permType permission.PermissionType) permission.PermissionAction {
	var action permission.PermissionAction
	switch permType {
	case permission.PermEdit:
		action = a.Permission.Edit
	case permission.PermWebFetch:
		action = a.Permission.WebFetch
	case permission.PermExternalDir:
		action = a.Permission.ExternalDir
	case permission.PermDoomLoop:
		action = a.Permission.DoomLoop
	}
	if action == "" {
		return permission.ActionAsk
	}
	return action
}

// IsPrimary reports whether the agent may drive a session.
func (a *Agent) IsPrimary() bool {
	return a.Mode == ModePrimary || a.Mode == ModeAll
}

// IsSubagent reports whether the task tool may delegate to this agent.
func (a *Agent) IsSubagent() bool {
	return a.Mode == ModeSubagent || a.Mode == ModeAll
}

// Clone deep-copies the agent so config overrides never mutate a built-in.
func (a *Agent) Clone() *Agent {
	clone := *a
	clone.Permission.Bash = copyMap(a.Permission.Bash)
	clone.Tools = copyMap(a.Tools)
	clone.Options = copyMap(a.Options)
	if a.Model != nil {
		m := *a.Model
		clone.Model = &m
	}
	return &clone
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	if in == nil {
		return nil
	}
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// patternMatch matches tool IDs and command lines against the wildcard
// patterns agents configure. Simple prefix/suffix stars are matched with
// string ops; anything richer goes through doublestar.
func patternMatch(pattern, s string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.Contains(pattern, "**"):
		ok, _ := doublestar.Match(pattern, s)
		return ok
	case strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*"):
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*") && !strings.HasSuffix(pattern, "*"):
		return strings.HasSuffix(s, strings.TrimPrefix(pattern, "*"))
	case strings.Contains(pattern, "*"):
		ok, _ := doublestar.Match(pattern, s)
		return ok
	default:
		return pattern == s
	}
}

// readOnlyPosture denies every mutating capability; the exploration and
// summarization agents share it.
func readOnlyPosture() AgentPermission {
	return AgentPermission{
		Edit:        permission.ActionDeny,
		Bash:        map[string]permission.PermissionAction{"*": permission.ActionDeny},
		WebFetch:    permission.ActionDeny,
		ExternalDir: permission.ActionDeny,
		DoomLoop:    permission.ActionDeny,
	}
}

// BuiltInAgents returns the four stock agents. general drives sessions by
// default and may also be delegated to; the rest are analysis-oriented.
func BuiltInAgents() map[string]*Agent {
	general := &Agent{
		Name:        "general",
		Description: "Full-capability agent for executing tasks and making changes",
		Mode:        ModeAll,
		BuiltIn:     true,
		Permission: AgentPermission{
			Edit:        permission.ActionAllow,
			Bash:        map[string]permission.PermissionAction{"*": permission.ActionAllow},
			WebFetch:    permission.ActionAllow,
			ExternalDir: permission.ActionAsk,
			DoomLoop:    permission.ActionAsk,
		},
		Tools: map[string]bool{"*": true},
	}

	plan := &Agent{
		Name:        "plan",
		Description: "Analysis and planning without mutating the tree",
		Mode:        ModeAll,
		BuiltIn:     true,
		Permission: AgentPermission{
			Edit: permission.ActionDeny,
			Bash: map[string]permission.PermissionAction{
				"grep*":      permission.ActionAllow,
				"find*":      permission.ActionAllow,
				"ls*":        permission.ActionAllow,
				"cat*":       permission.ActionAllow,
				"git status": permission.ActionAllow,
				"git diff*":  permission.ActionAllow,
				"git log*":   permission.ActionAllow,
				"*":          permission.ActionDeny,
			},
			WebFetch:    permission.ActionAllow,
			ExternalDir: permission.ActionDeny,
			DoomLoop:    permission.ActionDeny,
		},
		Tools: map[string]bool{
			"read": true, "glob": true, "grep": true, "list": true,
			"bash": true, "webfetch": true,
			"edit": false, "write": false,
		},
	}

	explore := &Agent{
		Name:        "explore",
		Description: "Fast read-only codebase exploration",
		Mode:        ModeAll,
		BuiltIn:     true,
		Permission:  readOnlyPosture(),
		Tools: map[string]bool{
			"read": true, "glob": true, "grep": true, "list": true,
			"bash": false, "edit": false, "write": false, "webfetch": false,
		},
	}

	compaction := &Agent{
		Name:        "compaction",
		Description: "Summarization agent the compaction engine uses to condense old turns",
		Mode:        ModeAll,
		BuiltIn:     true,
		Permission:  readOnlyPosture(),
		Tools: map[string]bool{
			"read": true, "glob": true, "grep": true,
		},
	}

	return map[string]*Agent{
		"general":    general,
		"plan":       plan,
		"explore":    explore,
		"compaction": compaction,
	}
}

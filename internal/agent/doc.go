// Package agent defines wolo's agent configurations and their registry.
//
// An [Agent] bundles what a model run is allowed to do: the tools it may
// see, its permission posture for sensitive operations, an optional system
// prompt and model pin. Sessions bind one agent at startup (-a on the CLI)
// and the task tool delegates to others.
//
// Four agents ship built in:
//
//   - general: full tool access, may drive a session or run as a subagent
//   - plan: analysis without mutations; edit/write disabled, bash limited
//     to read-only command patterns
//   - explore: fast read-only exploration, minimal tool set
//   - compaction: the summarizer the compaction engine runs to condense
//     old turns
//
// A Mode limits where an agent runs: ModePrimary (drives sessions),
// ModeSubagent (task-tool delegation only), or ModeAll.
//
// Tool access is a map of tool ID to enabled, with wildcard patterns:
//
//	agent.Tools = map[string]bool{
//	    "*":     true,  // everything on
//	    "bash":  false, // except bash
//	    "mcp_*": true,  // MCP tools explicitly on
//	}
//
// Exact entries win over patterns; see [Agent.ToolEnabled].
//
// [AgentPermission] gates the sensitive operation classes (edit, bash by
// command pattern, webfetch, external-directory access, doom-loop
// repetition) with allow, ask, or deny.
//
// [Registry] is the concurrency-safe name lookup. User configuration
// overlays it via [Registry.LoadFromConfig]; overriding a built-in clones
// it first, so the stock definitions are never mutated:
//
//	registry := agent.NewRegistry()
//	registry.LoadFromConfig(map[string]agent.AgentConfig{
//	    "general": {Temperature: 0.4},
//	    "reviewer": {
//	        Description: "read-only code review",
//	        Mode:        agent.ModeSubagent,
//	        Tools:       map[string]bool{"read": true, "grep": true},
//	    },
//	})
package agent

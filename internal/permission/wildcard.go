package permission

import (
	"strings"
)

// MatchBashPermission resolves a parsed command against a pattern table,
// most specific form first: "git commit *", then "git *", then "git",
// then "*". Unmatched commands ask.
func MatchBashPermission(cmd BashCommand, permissions map[string]PermissionAction) PermissionAction {
	if cmd.Subcommand != "" {
		if action, ok := permissions[cmd.Name+" "+cmd.Subcommand+" *"]; ok {
			return action
		}
	}
	if action, ok := permissions[cmd.Name+" *"]; ok {
		return action
	}
	if action, ok := permissions[cmd.Name]; ok {
		return action
	}
	if action, ok := permissions["*"]; ok {
		return action
	}
	return ActionAsk
}

// MatchPattern reports whether a command matches one space-separated
// pattern: "*" matches anything, a trailing "*" matches any remaining
// arguments, and a pattern without a trailing star requires an exact
// argument-by-argument match.
func MatchPattern(pattern string, cmd BashCommand) bool {
	parts := strings.Split(pattern, " ")
	if len(parts) == 0 {
		return false
	}
	if parts[0] == "*" && len(parts) == 1 {
		return true
	}
	if parts[0] != "*" && parts[0] != cmd.Name {
		return false
	}
	if len(parts) == 1 {
		// Bare command name: only a bare invocation matches.
		return cmd.Name == parts[0] && len(cmd.Args) == 0
	}

	if parts[len(parts)-1] == "*" {
		for i := 1; i < len(parts)-1; i++ {
			argIndex := i - 1
			if argIndex >= len(cmd.Args) {
				return false
			}
			if parts[i] != "*" && parts[i] != cmd.Args[argIndex] {
				return false
			}
		}
		return true
	}

	if len(parts)-1 != len(cmd.Args) {
		return false
	}
	for i := 1; i < len(parts); i++ {
		if parts[i] != cmd.Args[i-1] {
			return false
		}
	}
	return true
}

// BuildPattern derives the approval pattern a command would be remembered
// under: "git commit -m msg" becomes "git commit *", "ls -la" becomes
// "ls *".
func BuildPattern(cmd BashCommand) string {
	if cmd.Subcommand != "" {
		return cmd.Name + " " + cmd.Subcommand + " *"
	}
	return cmd.Name + " *"
}

// BuildPatterns derives deduplicated approval patterns for a command list.
// cd is skipped: directory changes go through the external-dir gate.
func BuildPatterns(commands []BashCommand) []string {
	seen := make(map[string]bool)
	var patterns []string
	for _, cmd := range commands {
		if cmd.Name == "cd" {
			continue
		}
		p := BuildPattern(cmd)
		if !seen[p] {
			seen[p] = true
			patterns = append(patterns, p)
		}
	}
	return patterns
}

package session

import (
	"strings"
	"time"
)

// NewSessionID builds the human-readable session identifier this runtime
// specifies: {SanitizedAgentName}_{YYMMDD}_{HHMMSS}, spaces stripped and a
// 2-digit year. Message, part, and tool-call IDs stay ULIDs (NewID); only
// the session's own top-level ID uses this format, so a directory listing
// of the store's base path is self-describing at a glance.
func NewSessionID(agentName string, now time.Time) string {
	return sanitizeAgentName(agentName) + "_" + now.Format("060102") + "_" + now.Format("150405")
}

// sanitizeAgentName strips whitespace and lowercases the agent name so it is
// safe to use as a filesystem directory component.
func sanitizeAgentName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "")
	if name == "" {
		return "agent"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// Package types provides the core, provider-agnostic data types shared by
// every component of the wolo agent runtime: sessions, messages, parts, and
// the handful of configuration shapes the core reads directly.
package types

// Execution modes.
const (
	ModeSolo = "solo"
	ModeCoop = "coop"
	ModeRepl = "repl"
)

// Session is the top-level persisted conversation record. Its Messages are
// not necessarily populated by the store's lighter-weight metadata calls;
// see internal/session's Store.GetSession vs Store.ListMessages.
type Session struct {
	ID               string             `json:"id"`
	Messages         []*Message         `json:"-"`
	CreatedAt        int64              `json:"created_at"`
	UpdatedAt        int64              `json:"updated_at"`
	ParentSessionID  string             `json:"parent_session_id,omitempty"`
	AgentType        string             `json:"agent_type,omitempty"`
	Title            string             `json:"title"`
	Tags             []string           `json:"tags,omitempty"`
	AgentDisplayName string             `json:"agent_display_name,omitempty"`
	Workdir          string             `json:"workdir"`
	ExecutionMode    string             `json:"execution_mode"`
	PID              *int               `json:"pid,omitempty"`
	PIDUpdatedAt     *int64             `json:"pid_updated_at,omitempty"`
	Compactions      []CompactionRecord `json:"compactions,omitempty"`
}

// CompactionRecord is appended to session metadata each time the Compaction
// Engine rewrites history.
type CompactionRecord struct {
	SessionID        string   `json:"session_id"`
	Policy           string   `json:"policy"`
	BeforeTokens     int      `json:"before_tokens"`
	AfterTokens      int      `json:"after_tokens"`
	MessageIDs       []string `json:"message_ids"`
	TimestampUnixSec int64    `json:"timestamp"`
}

// SessionStatus is the result of a status query: whether a live process of this application owns the
// session's PID lock, never whether the *caller* happens to be that process.
type SessionStatus struct {
	Exists               bool   `json:"exists"`
	PID                  *int   `json:"pid,omitempty"`
	IsRunning            bool   `json:"is_running"`
	WatchServerAvailable bool   `json:"watch_server_available"`
	AgentName            string `json:"agent_name,omitempty"`
	CreatedAt            int64  `json:"created_at,omitempty"`
	MessageCount         int    `json:"message_count"`
}

// SessionListEntry is one row of list_sessions.
type SessionListEntry struct {
	Session
	MessageCount int  `json:"message_count"`
	IsRunning    bool `json:"is_running"`
}

// MessageError is the classified-error shape carried by
// event.SessionErrorData.
type MessageError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

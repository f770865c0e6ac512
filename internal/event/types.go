package event

import "github.com/wolo-run/wolo/pkg/types"

// SessionCreatedData accompanies session.created.
type SessionCreatedData struct {
	Info *types.Session `json:"info"`
}

// SessionUpdatedData accompanies session.updated.
type SessionUpdatedData struct {
	Info *types.Session `json:"info"`
}

// SessionDeletedData accompanies session.deleted.
type SessionDeletedData struct {
	Info *types.Session `json:"info"`
}

// SessionIdleData is the payload for a session-idle notification (the loop
// released the session and is waiting on input); no EventType constant in
// this package names that topic.
type SessionIdleData struct {
	SessionID string `json:"session_id"`
}

// SessionErrorData is the payload for a session-error notification; no
// EventType constant in this package names that topic.
type SessionErrorData struct {
	SessionID string              `json:"session_id,omitempty"`
	Error     *types.MessageError `json:"error,omitempty"`
}

// MessageUpdatedData accompanies message.updated: the store persisted a
// message mutation.
type MessageUpdatedData struct {
	Info *types.Message `json:"info"`
}

// MessageRemovedData accompanies message.removed.
type MessageRemovedData struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
}

// MessagePartRemovedData is the payload for a part-removal notification;
// no EventType constant in this package names that topic.
type MessagePartRemovedData struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	PartID    string `json:"part_id"`
}

// FileEditedData accompanies file.edited, published by the write and edit
// tools after a successful mutation.
type FileEditedData struct {
	File string `json:"file"`
}

// PermissionRequiredData accompanies permission.required: a checker is
// blocked waiting for the user's answer.
type PermissionRequiredData struct {
	ID             string   `json:"id"`
	SessionID      string   `json:"session_id"`
	PermissionType string   `json:"permission_type"`
	Pattern        []string `json:"pattern"`
	Title          string   `json:"title"`
}

// PermissionResolvedData accompanies permission.resolved.
type PermissionResolvedData struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Granted   bool   `json:"granted"`
}

// TextDeltaData accompanies text-delta: one incremental chunk of assistant
// text as it streams off the LLM adapter.
type TextDeltaData struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	PartID    string `json:"part_id"`
	Delta     string `json:"delta"`
}

// ReasoningDeltaData accompanies reasoning-delta.
type ReasoningDeltaData struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	PartID    string `json:"part_id"`
	Delta     string `json:"delta"`
}

// ToolStartData accompanies tool-start, published when the dispatcher
// begins executing a resolved tool call. Brief is the registry-formatted
// one-liner renderers show while the tool runs.
type ToolStartData struct {
	SessionID string         `json:"session_id"`
	MessageID string         `json:"message_id"`
	CallID    string         `json:"call_id"`
	Tool      string         `json:"tool"`
	Brief     string         `json:"brief,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
}

// ToolCompleteData accompanies tool-complete: a tool call reached a
// terminal status. Brief is the registry-formatted outcome line;
// ShowOutput tells renderers whether the full output (in the paired
// tool-result event) is worth displaying.
type ToolCompleteData struct {
	SessionID  string `json:"session_id"`
	MessageID  string `json:"message_id"`
	CallID     string `json:"call_id"`
	Tool       string `json:"tool"`
	Status     string `json:"status"`
	Brief      string `json:"brief,omitempty"`
	ShowOutput bool   `json:"show_output"`
	Error      string `json:"error,omitempty"`
}

// ToolResultData carries the final rendered tool output, split from
// ToolCompleteData so subscribers can skip large payloads.
type ToolResultData struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	CallID    string `json:"call_id"`
	Title     string `json:"title"`
	Output    string `json:"output"`
}

// FinishData accompanies finish: the run ended with a terminal
// finish_reason.
type FinishData struct {
	SessionID    string `json:"session_id"`
	MessageID    string `json:"message_id"`
	FinishReason string `json:"finish_reason"`
	StepCount    int    `json:"step_count"`
}

// LoopErrorData accompanies error events surfaced by the agent loop.
type LoopErrorData struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id,omitempty"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

// TodoUpdatedData accompanies todo.updated, published whenever a session's
// task list changes.
type TodoUpdatedData struct {
	SessionID string           `json:"session_id"`
	Todos     []types.TodoInfo `json:"todos"`
}

// QuestionAskedData accompanies question.asked, published by the question
// tool while it blocks on a user selection.
type QuestionAskedData struct {
	SessionID string   `json:"session_id"`
	MessageID string   `json:"message_id"`
	CallID    string   `json:"call_id"`
	Question  string   `json:"question"`
	Options   []string `json:"options,omitempty"`
}

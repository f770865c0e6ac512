package llm

// EventType discriminates the variants of the adapter's event stream
//.
type EventType string

const (
	EventTextDelta         EventType = "text-delta"
	EventReasoningDelta    EventType = "reasoning-delta"
	EventToolCallStreaming EventType = "tool-call-streaming"
	EventToolCallProgress  EventType = "tool-call-progress"
	EventToolCall          EventType = "tool-call"
	EventFinish            EventType = "finish"
	EventError             EventType = "error"
)

// Event is one item of the adapter's output stream. Only the fields
// relevant to Type are populated; the rest are zero.
type Event struct {
	Type EventType

	// text-delta / reasoning-delta
	Text string

	// tool-call-streaming / tool-call-progress: UI hints only, carry no
	// model state beyond what the eventual tool-call provides.
	ToolID   string
	ToolName string
	ArgsLen  int
	Index    int

	// tool-call: emitted exactly once per call, only once its arguments
	// parse as JSON.
	Input map[string]any

	// finish
	FinishReason string

	// error
	Err error

	// Usage is attached to whichever event carried the final usage chunk
	// (OpenAI-compatible backends send it alongside the last delta or
	// as a trailing usage-only chunk); nil until then.
	Usage *Usage
}

// Usage is the token-usage totals captured "from the
// final chunk into a context-local counter".
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

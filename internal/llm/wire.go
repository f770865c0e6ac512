package llm

import "encoding/json"

// wireMessage is one OpenAI-compatible chat message on the request side.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// wireToolCall is the tool_calls entry of an assistant wireMessage.
type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireToolCallFunc `json:"function"`
}

type wireToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// WireTool is one JSON-schema tool description sent in the request's
// "tools" array.
type WireTool struct {
	Type     string           `json:"type"`
	Function WireToolFunction `json:"function"`
}

// WireToolFunction is the "function" member of a WireTool.
type WireToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// wireRequest is the Chat Completions request body.
type wireRequest struct {
	Model       string         `json:"model"`
	Messages    []wireMessage  `json:"messages"`
	Stream      bool           `json:"stream"`
	Temperature float64        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Tools       []WireTool     `json:"tools,omitempty"`
	Thinking    *wireThinking  `json:"thinking,omitempty"`
}

// wireThinking enables a reasoning-capable backend's extended-thinking mode.
type wireThinking struct {
	Type          string `json:"type"`
	ClearThinking bool   `json:"clear_thinking"`
}

// wireChunk is one parsed "data: {...}" SSE payload.
type wireChunk struct {
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage"`
}

type wireChoice struct {
	Delta        wireDelta `json:"delta"`
	FinishReason string    `json:"finish_reason"`
}

type wireDelta struct {
	Content          string               `json:"content"`
	ReasoningContent string               `json:"reasoning_content"`
	ToolCalls        []wireDeltaToolCall  `json:"tool_calls"`
}

type wireDeltaToolCall struct {
	Index    int                  `json:"index"`
	ID       string               `json:"id"`
	Function wireDeltaToolCallFn  `json:"function"`
}

type wireDeltaToolCallFn struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

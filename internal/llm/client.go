package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"

	"github.com/wolo-run/wolo/internal/errs"
	"github.com/wolo-run/wolo/pkg/types"
)

// clientVersion is embedded in the impersonated User-Agent string.
const clientVersion = "1.0.0"

// Client is a reusable OpenAI-compatible chat-completions streaming client.
// One Client is shared across a process; it pools rate limiters per base
// URL and writes to an optional debug sink.
type Client struct {
	http     *http.Client
	limiters *limiterPool
	debug    *DebugSink
}

// NewClient builds a Client. debug may be nil to disable the side channel.
func NewClient(debug *DebugSink) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 0, // streaming responses have no fixed total deadline
		},
		limiters: newLimiterPool(),
		debug:    debug,
	}
}

// Config is the per-request configuration for one Stream call.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	EnableThink bool

	// Correlation headers. The literal x-opencode-* names keep requests
	// indistinguishable from the upstream compatibility client this
	// adapter impersonates.
	SessionID string
	ProjectID string
}

// Stream opens one HTTP request against cfg.BaseURL and returns a channel of
// Events. The channel is closed when the stream ends (successfully, via an
// error event, or because ctx was canceled). Stream returns a non-nil error
// only for failures before any event could be produced (DNS, dial, and
// non-2xx responses read before any bytes of the body stream).
func (c *Client) Stream(ctx context.Context, cfg Config, messages []wireMessage, tools []WireTool) (<-chan Event, error) {
	limiter := c.limiters.forBaseURL(cfg.BaseURL)
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := wireRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Tools:       tools,
	}
	if cfg.EnableThink {
		req.Thinking = &wireThinking{Type: "enabled", ClearThinking: false}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidRequest, "encode request", err)
	}

	debugFile := c.debug.requestFile(cfg.Model, body)
	c.debug.appendLine(fmt.Sprintf("request model=%s base_url=%s bytes=%d\n", cfg.Model, cfg.BaseURL, len(body)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidRequest, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	httpReq.Header.Set("User-Agent", fmt.Sprintf("opencode/%s (%s %s)", clientVersion, runtime.GOOS, runtime.GOARCH))
	httpReq.Header.Set("x-opencode-project", cfg.ProjectID)
	httpReq.Header.Set("x-opencode-session", cfg.SessionID)
	httpReq.Header.Set("x-opencode-request", "user")
	httpReq.Header.Set("x-opencode-client", "cli")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errs.Wrap(errs.KindRetryable, "request failed", err)
	}
	c.debug.appendLine(fmt.Sprintf("response model=%s status=%d\n", cfg.Model, resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := errs.ClassifyHTTPStatus(resp.StatusCode)
		return nil, errs.Wrap(kind, fmt.Sprintf("llm backend returned %d: %s", resp.StatusCode, respBody), nil).WithStatus(resp.StatusCode)
	}

	events := make(chan Event, 16)
	go c.readSSE(ctx, resp.Body, debugFile, events)
	return events, nil
}

// toolCallBuffer accumulates one tool call's name/id/arguments across SSE
// chunks, keyed by the backend's streaming index.
type toolCallBuffer struct {
	id   string
	name string
	args strings.Builder
}

func (c *Client) readSSE(ctx context.Context, body io.ReadCloser, debugFile string, out chan<- Event) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	buffers := make(map[int]*toolCallBuffer)
	finishSent := false
	lastFinishReason := "unknown"
	var lastUsage *Usage

	emit := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		c.debug.appendRaw(debugFile, []byte(scanner.Text()+"\n"))
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			c.debug.trailer(debugFile, lastFinishReason)
			return
		}

		var chunk wireChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue // tolerate malformed keep-alive/comment lines
		}
		if chunk.Usage != nil {
			lastUsage = &Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.ReasoningContent != "" {
			if !emit(Event{Type: EventReasoningDelta, Text: choice.Delta.ReasoningContent}) {
				return
			}
		}
		if choice.Delta.Content != "" {
			if !emit(Event{Type: EventTextDelta, Text: choice.Delta.Content}) {
				return
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			buf, ok := buffers[tc.Index]
			if !ok {
				buf = &toolCallBuffer{}
				buffers[tc.Index] = buf
			}
			if tc.ID != "" {
				buf.id = tc.ID // some backends send id only on later chunks
			}
			if tc.Function.Name != "" {
				buf.name = tc.Function.Name
				if !emit(Event{Type: EventToolCallStreaming, ToolID: buf.id, ToolName: buf.name}) {
					return
				}
			}
			if tc.Function.Arguments != "" {
				buf.args.WriteString(tc.Function.Arguments)
				if !emit(Event{Type: EventToolCallProgress, Index: tc.Index, ArgsLen: buf.args.Len()}) {
					return
				}
			}

			if buf.name == "" {
				continue
			}
			var input map[string]any
			raw := buf.args.String()
			if raw == "" {
				continue
			}
			if err := json.Unmarshal([]byte(raw), &input); err != nil {
				continue // arguments not complete yet
			}
			if !emit(Event{Type: EventToolCall, ToolID: buf.id, ToolName: buf.name, Input: input}) {
				return
			}
			delete(buffers, tc.Index)
		}

		if choice.FinishReason != "" && !finishSent {
			finishSent = true
			lastFinishReason = choice.FinishReason
			if !emit(Event{Type: EventFinish, FinishReason: choice.FinishReason, Usage: lastUsage}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		emit(Event{Type: EventError, Err: errs.Wrap(errs.KindRetryable, "stream read failed", err)})
		return
	}
	if !finishSent {
		emit(Event{Type: EventFinish, FinishReason: "stop", Usage: lastUsage})
	}
}

// Complete runs a single request and collects the full streamed text
// response, for call sites that need one answer rather than incremental
// adapter events. The Compaction Engine's summarization policy is the only current caller.
func (c *Client) Complete(ctx context.Context, cfg Config, systemPrompt, userPrompt string) (string, error) {
	messages := []wireMessage{
		{Role: types.RoleSystem, Content: systemPrompt},
		{Role: types.RoleUser, Content: userPrompt},
	}
	events, err := c.Stream(ctx, cfg, messages, nil)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for ev := range events {
		switch ev.Type {
		case EventTextDelta:
			text.WriteString(ev.Text)
		case EventError:
			return "", ev.Err
		}
	}
	return text.String(), nil
}

// EndpointToConfig builds a Config from one endpoint entry plus correlation
// IDs, the call shape internal/agentloop uses.
func EndpointToConfig(ep types.EndpointConfig, enableThink bool, sessionID, projectID string) Config {
	return Config{
		BaseURL:     ep.BaseURL,
		APIKey:      ep.APIKey,
		Model:       ep.Model,
		Temperature: ep.Temperature,
		MaxTokens:   ep.MaxTokens,
		EnableThink: enableThink,
		SessionID:   sessionID,
		ProjectID:   projectID,
	}
}

package agentloop

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wolo-run/wolo/internal/errs"
	"github.com/wolo-run/wolo/internal/event"
	"github.com/wolo-run/wolo/internal/llm"
	"github.com/wolo-run/wolo/pkg/types"
)

// runTurn streams exactly one LLM turn, accumulates its text/tool-call
// parts onto a fresh assistant message, then (whenever the turn produced
// tool-call parts, whatever the finish reason) executes every requested
// tool call per the dispatcher contract before
// returning the turn's resolved finish reason.
func (l *Loop) runTurn(ctx context.Context) (string, error) {
	messages, err := l.deps.Store.ListMessages(l.sessionID)
	if err != nil {
		return "", fmt.Errorf("agentloop: list messages: %w", err)
	}

	cfg := llm.EndpointToConfig(l.deps.Endpoint, l.deps.EnableThink, l.sessionID, l.deps.ProjectID)
	tools := l.buildWireTools()

	events, err := l.streamTurn(ctx, cfg, messages, tools)
	if err != nil {
		return "", err
	}

	assistant := &types.Message{
		ID:        l.deps.NewID(),
		Role:      types.RoleAssistant,
		Timestamp: time.Now().UnixMilli(),
	}

	finishReason := FinishStop
	var usage *llm.Usage
	var streamErr error

	for ev := range events {
		interrupted := l.deps.Control != nil && l.deps.Control.ShouldInterrupt()

		switch ev.Type {
		case llm.EventTextDelta:
			if interrupted {
				continue
			}
			tp := assistant.TextPartOrNew(l.deps.NewID)
			tp.Text += ev.Text
			l.touchActivity()
			event.Publish(event.Event{Type: event.TextDelta, Data: event.TextDeltaData{
				SessionID: l.sessionID, MessageID: assistant.ID, PartID: tp.ID, Delta: ev.Text,
			}})
		case llm.EventReasoningDelta:
			if interrupted {
				continue
			}
			rp := assistant.ReasoningPartOrNew(l.deps.NewID)
			rp.Text += ev.Text
			// ReasoningContent mirrors the part so the flattened field stays
			// readable without walking Parts.
			assistant.ReasoningContent = rp.Text
			l.touchActivity()
			event.Publish(event.Event{Type: event.ReasoningDelta, Data: event.ReasoningDeltaData{
				SessionID: l.sessionID, MessageID: assistant.ID, PartID: rp.ID, Delta: ev.Text,
			}})
		case llm.EventToolCall:
			if interrupted {
				continue
			}
			id := ev.ToolID
			if id == "" {
				id = l.deps.NewID()
			}
			assistant.Parts = append(assistant.Parts, &types.ToolPart{
				ID:       id,
				Type:     "tool",
				ToolName: ev.ToolName,
				Input:    ev.Input,
				Status:   types.ToolStatusPending,
			})
		case llm.EventFinish:
			finishReason = mapFinishReason(ev.FinishReason)
			usage = ev.Usage
		case llm.EventError:
			streamErr = ev.Err
		}
	}

	if usage != nil {
		l.deps.Metrics.RecordTokens(l.sessionID, usage.PromptTokens, usage.CompletionTokens)
	}

	if l.deps.Control != nil && l.deps.Control.ShouldInterrupt() {
		if err := l.interruptRemainingTools(assistant, assistant.ToolParts(), 0); err != nil {
			return "", err
		}
		return l.finishAssistant(assistant, FinishInterrupted)
	}

	if streamErr != nil {
		if _, err := l.finishAssistant(assistant, "error"); err != nil {
			return "", err
		}
		event.Publish(event.Event{Type: event.LoopError, Data: event.LoopErrorData{
			SessionID: l.sessionID, MessageID: assistant.ID, Kind: classifyKind(streamErr), Message: streamErr.Error(),
		}})
		return "", streamErr
	}

	toolParts := assistant.ToolParts()
	if len(toolParts) == 0 {
		return l.finishAssistant(assistant, finishReason)
	}

	if err := l.deps.Store.SaveMessage(l.sessionID, assistant); err != nil {
		return "", err
	}

	for i, tp := range toolParts {
		if l.deps.Control != nil {
			if l.deps.Control.ShouldInterrupt() {
				if err := l.interruptRemainingTools(assistant, toolParts, i); err != nil {
					return "", err
				}
				return l.finishAssistant(assistant, FinishInterrupted)
			}
			l.deps.Control.WaitIfPaused()
		}

		terminate, err := l.executeToolCall(ctx, assistant, tp)
		if err != nil {
			return "", err
		}
		if terminate {
			return l.finishAssistant(assistant, FinishPathSafetyCancelled)
		}
	}

	return l.finishAssistant(assistant, FinishToolCalls)
}

// finishAssistant marks an assistant message Finished with reason and
// persists it, the last write of the "persist after every transition"
// requirement each turn makes.
func (l *Loop) finishAssistant(assistant *types.Message, reason string) (string, error) {
	assistant.Finished = true
	assistant.FinishReason = reason
	if err := l.deps.Store.SaveMessage(l.sessionID, assistant); err != nil {
		return "", err
	}
	return reason, nil
}

func mapFinishReason(wire string) string {
	switch wire {
	case "length":
		return FinishLength
	case "tool_calls":
		return FinishToolCalls
	default:
		return FinishStop
	}
}

func classifyKind(err error) string {
	if e, ok := errs.As(err); ok {
		return string(e.Kind)
	}
	return string(errs.KindRetryable)
}

// streamTurn opens one Stream call, retrying on retryable failures with the
// backoff strategy chosen once, by the class of the first failure: the
// longer rate_limit-specific backoff when that failure was a 429, the
// standard backoff otherwise.
func (l *Loop) streamTurn(ctx context.Context, cfg llm.Config, messages []*types.Message, tools []llm.WireTool) (<-chan llm.Event, error) {
	systemPrompt, agentName := l.systemPrompt()
	projected := llm.ProjectMessages(messages, systemPrompt, agentName)

	var bo backoff.BackOff
	for {
		events, err := l.deps.LLM.Stream(ctx, cfg, projected, tools)
		if err == nil {
			return events, nil
		}

		kind := errs.KindRetryable
		if e, ok := errs.As(err); ok {
			kind = e.Kind
		}
		if !kind.Retryable() {
			return nil, err
		}

		if bo == nil {
			if kind == errs.KindRateLimit {
				bo = llm.RateLimitBackoff(ctx)
			} else {
				bo = llm.NewRetryBackoff(ctx)
			}
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return nil, err
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// systemPrompt resolves the active agent's prompt and display name, falling
// back to internal/llm's own default when no agent is bound.
func (l *Loop) systemPrompt() (prompt, agentName string) {
	if l.deps.Agent == nil {
		return "", ""
	}
	return l.deps.Agent.Prompt, l.deps.Agent.Name
}

// buildWireTools projects the tool registry into the model-facing tool
// list, applying the active agent's per-tool enable rules and the run
// mode's question-tool filter.
func (l *Loop) buildWireTools() []llm.WireTool {
	var out []llm.WireTool
	for _, t := range l.deps.ToolRegistry.List() {
		if t.ID() == "question" && !l.deps.Mode.EnableQuestionTool {
			continue
		}
		if l.deps.Agent != nil && !l.deps.Agent.ToolEnabled(t.ID()) {
			continue
		}
		out = append(out, llm.WireTool{
			Type: "function",
			Function: llm.WireToolFunction{
				Name:        t.ID(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

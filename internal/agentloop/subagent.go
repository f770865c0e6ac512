package agentloop

import (
	"context"
	"fmt"
	"time"

	"github.com/wolo-run/wolo/internal/agent"
	"github.com/wolo-run/wolo/internal/session"
	"github.com/wolo-run/wolo/internal/tool"
	"github.com/wolo-run/wolo/pkg/types"
)

// SubagentExecutor implements tool.TaskExecutor by running a nested
// agent loop in a freshly created child session, the "task" tool's
// spawn path. The child's Deps are built from the parent's, with the
// delegated agent configuration swapped in.
type SubagentExecutor struct {
	// Base is copied for every child run; Agent (and Endpoint.Model when
	// the task names a model) is overridden per spawn and the loop runs
	// under the child session ID, everything else (store, registries, LLM
	// client, endpoint, control, mode) is inherited from the parent.
	Base Deps

	AgentRegistry *agent.Registry
}

// ExecuteSubtask creates a child session under parentSessionID, runs the
// named subagent against prompt to completion, and returns its final
// assistant text.
func (s *SubagentExecutor) ExecuteSubtask(ctx context.Context, parentSessionID, agentName, prompt string, opts tool.TaskOptions) (*tool.TaskResult, error) {
	subagent, err := s.AgentRegistry.Get(agentName)
	if err != nil {
		return nil, fmt.Errorf("subagent: unknown agent %q: %w", agentName, err)
	}

	if s.Base.NewID == nil {
		return nil, fmt.Errorf("subagent: no ID generator configured")
	}
	now := time.Now()
	childID := session.NewSessionID(agentName, now)
	nowMilli := now.UnixMilli()
	child := &types.Session{
		ID:              childID,
		CreatedAt:       nowMilli,
		UpdatedAt:       nowMilli,
		ParentSessionID: parentSessionID,
		AgentType:       agentName,
		Title:           opts.Description,
		Workdir:         s.Base.WorkDir,
		ExecutionMode:   types.ModeSolo,
	}
	if err := s.Base.Store.CreateSession(child); err != nil {
		return nil, fmt.Errorf("subagent: create child session: %w", err)
	}

	userMsg := &types.Message{
		ID:        s.Base.NewID(),
		Role:      types.RoleUser,
		Timestamp: nowMilli,
		Finished:  true,
		Parts:     []types.Part{&types.TextPart{ID: s.Base.NewID(), Type: "text", Text: prompt}},
	}
	if err := s.Base.Store.SaveMessage(childID, userMsg); err != nil {
		return nil, fmt.Errorf("subagent: save initial message: %w", err)
	}

	childDeps := s.Base
	childDeps.Agent = subagent
	if opts.Model != "" {
		childDeps.Endpoint.Model = opts.Model
	}

	loop := New(childID, childDeps)
	result, err := loop.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("subagent %s: %w", agentName, err)
	}

	s.Base.Metrics.RecordSubSession(parentSessionID, childID)

	output, err := s.finalText(childID)
	if err != nil {
		return nil, err
	}

	return &tool.TaskResult{
		Output:    output,
		SessionID: childID,
		Metadata: map[string]any{
			"finishReason": result.FinishReason,
			"stepCount":    result.StepCount,
		},
	}, nil
}

// finalText returns the text of the last assistant message in a session,
// the subagent's reported output.
func (s *SubagentExecutor) finalText(sessionID string) (string, error) {
	messages, err := s.Base.Store.ListMessages(sessionID)
	if err != nil {
		return "", fmt.Errorf("subagent: list messages: %w", err)
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != types.RoleAssistant {
			continue
		}
		var text string
		for _, p := range messages[i].Parts {
			if tp, ok := p.(*types.TextPart); ok {
				text += tp.Text
			}
		}
		if text != "" {
			return text, nil
		}
	}
	return "", nil
}

// Package compaction implements the context compaction engine:
// threshold-triggered policies that rewrite a session's message history
// to fit a token budget, run only between turns, never while the
// assistant is streaming.
//
// Two policies run in priority order: tool-output pruning elides the
// text of old completed tool calls while keeping the parts themselves
// (so tool-call/tool-result pairing survives projection), and
// summarization folds a prefix of turns into one synthesized assistant
// message produced by the compaction agent. Every application emits a
// CompactionRecord onto session metadata as an audit trail.
package compaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolo-run/wolo/internal/llm"
	"github.com/wolo-run/wolo/internal/tokenest"
	"github.com/wolo-run/wolo/pkg/types"
)

// Config controls both compaction policies.
type Config struct {
	// ProtectRecentTurns is the number of most recent user turns (and
	// everything after them) the tool-output-pruning policy never touches.
	ProtectRecentTurns int
	// ProtectTokenThreshold is how many tokens of accumulated tool output,
	// scanned newest-to-oldest beyond the protected turns, also stay
	// untouched before pruning begins.
	ProtectTokenThreshold int
	// MinimumPruneTokens is the smallest token savings worth persisting a
	// pruning pass for; below this the policy is a no-op.
	MinimumPruneTokens int

	// EnableSummarization turns on the optional second policy.
	EnableSummarization bool
	// SummaryMaxTokens bounds the auxiliary LLM call's response.
	SummaryMaxTokens int
	// CompactionAgentSystemPrompt is the system prompt used for the
	// summarization call (the "compaction" built-in agent's prompt).
	CompactionAgentSystemPrompt string
}

// DefaultConfig is the stock policy tuning.
var DefaultConfig = Config{
	ProtectRecentTurns:    3,
	ProtectTokenThreshold: 4000,
	MinimumPruneTokens:    256,
	EnableSummarization:   false,
	SummaryMaxTokens:      2000,
}

const prunedPlaceholder = "[output pruned to save context]"

// PruneToolOutputs implements policy 1 (priority 50): it scans messages
// newest-to-oldest, protects the most recent cfg.ProtectRecentTurns user
// turns and the first cfg.ProtectTokenThreshold tokens of tool output
// beyond them, and replaces the Output of every completed, non-protected
// ToolPart with a placeholder. It stops at the first already-pruned part
// it encounters scanning backward. Returns nil if fewer than
// cfg.MinimumPruneTokens would be saved.
func PruneToolOutputs(sessionID string, messages []*types.Message, cfg Config) *types.CompactionRecord {
	protectedFrom := protectedTurnBoundary(messages, cfg.ProtectRecentTurns)

	var (
		accumulatedProtectedTokens int
		candidates                 []*types.ToolPart
		prunedIDs                  []string
		savedTokens                int
	)

scan:
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]

		for _, p := range msg.Parts {
			tp, ok := p.(*types.ToolPart)
			if !ok || tp.Status != types.ToolStatusCompleted {
				continue
			}
			if tp.Metadata != nil {
				if pruned, _ := tp.Metadata["pruned"].(bool); pruned {
					// Already-pruned parts stop the scan.
					break scan
				}
			}

			outputTokens := tokenest.Text(tp.Output)

			if i >= protectedFrom {
				continue // within the protected recent-turns window
			}
			if accumulatedProtectedTokens < cfg.ProtectTokenThreshold {
				accumulatedProtectedTokens += outputTokens
				continue
			}

			candidates = append(candidates, tp)
			prunedIDs = append(prunedIDs, msg.ID)
			savedTokens += outputTokens - tokenest.Text(prunedPlaceholder)
		}
	}

	// Parts are rewritten only once the pass clears the minimum, so a
	// below-minimum pass leaves every message untouched.
	if savedTokens < cfg.MinimumPruneTokens {
		return nil
	}
	for _, tp := range candidates {
		tp.Metadata = mergeMetadata(tp.Metadata, map[string]any{
			"pruned":                 true,
			"pruned_at":              nowUnixMilli(),
			"original_output_tokens": tokenest.Text(tp.Output),
		})
		tp.Output = prunedPlaceholder
	}
	return finalizeRecord(sessionID, "tool_output_pruning", messages, prunedIDs, savedTokens, cfg.MinimumPruneTokens)
}

func finalizeRecord(sessionID, policy string, messages []*types.Message, touchedIDs []string, savedTokens, minimumPruneTokens int) *types.CompactionRecord {
	if savedTokens < minimumPruneTokens {
		return nil
	}
	// messages have already been mutated in place by the scan above, so
	// the current estimate is the after-pruning figure.
	after := tokenest.Messages(messages)
	before := after + savedTokens
	return &types.CompactionRecord{
		SessionID:        sessionID,
		Policy:           policy,
		BeforeTokens:     before,
		AfterTokens:      after,
		MessageIDs:       dedupe(touchedIDs),
		TimestampUnixSec: time.Now().Unix(),
	}
}

// protectedTurnBoundary returns the index of the first message belonging
// to the last protectTurns user turns (a "turn" being one user message
// plus everything that follows up to, but excluding, the next user
// message); messages at or after this index are never pruned.
func protectedTurnBoundary(messages []*types.Message, protectTurns int) int {
	if protectTurns <= 0 {
		return len(messages)
	}

	var userIdx []int
	for i, m := range messages {
		if m.Role == types.RoleUser {
			userIdx = append(userIdx, i)
		}
	}
	if len(userIdx) <= protectTurns {
		return 0
	}
	return userIdx[len(userIdx)-protectTurns]
}

func mergeMetadata(existing map[string]any, add map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(add))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range add {
		out[k] = v
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Summarizer produces the text of a summary given a rendered transcript;
// internal/llm.Client.Complete satisfies this by calling the compaction
// agent's model.
type Summarizer interface {
	Complete(ctx context.Context, cfg llm.Config, systemPrompt, userPrompt string) (string, error)
}

// Summarize implements policy 2 (optional, lower priority): it replaces a
// prefix of messages (everything before the protected recent-turns
// window) with one synthesized assistant message whose text is produced
// by an auxiliary LLM call. The caller is responsible for splicing the
// returned message into session history in place of the summarized
// prefix and for persisting it through the Session Store.
func Summarize(ctx context.Context, sessionID string, messages []*types.Message, cfg Config, llmCfg llm.Config, s Summarizer, newID func() string) (*types.Message, *types.CompactionRecord, error) {
	protectedFrom := protectedTurnBoundary(messages, cfg.ProtectRecentTurns)
	toSummarize := messages[:protectedFrom]
	if len(toSummarize) == 0 {
		return nil, nil, nil
	}

	prompt := buildSummaryPrompt(toSummarize)
	systemPrompt := cfg.CompactionAgentSystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSummarySystemPrompt
	}

	summary, err := s.Complete(ctx, llmCfg, systemPrompt, prompt)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(toSummarize))
	for _, m := range toSummarize {
		ids = append(ids, m.ID)
	}

	before := tokenest.Messages(messages)
	summaryMsg := &types.Message{
		ID:        newID(),
		Role:      types.RoleAssistant,
		Timestamp: nowUnixMilli(),
		Finished:  true,
		Parts: []types.Part{
			&types.TextPart{ID: newID(), Type: "text", Text: summary},
		},
		Metadata: map[string]any{
			"compaction": map[string]any{
				"is_summary":     true,
				"summarized_ids": ids,
			},
		},
	}

	after := tokenest.Message(summaryMsg) + tokenest.Messages(messages[protectedFrom:])

	record := &types.CompactionRecord{
		SessionID:        sessionID,
		Policy:           "summarization",
		BeforeTokens:     before,
		AfterTokens:      after,
		MessageIDs:       ids,
		TimestampUnixSec: time.Now().Unix(),
	}

	return summaryMsg, record, nil
}

const defaultSummarySystemPrompt = `You are a conversation summarizer. Create a concise summary of the conversation that preserves key context for continuing the discussion.

Focus on:
1. What was accomplished
2. Current work in progress
3. Files involved
4. Next steps
5. Any key user requests or constraints

Be concise but detailed enough that work can continue seamlessly.`

func buildSummaryPrompt(messages []*types.Message) string {
	var b strings.Builder
	b.WriteString("Please summarize the following conversation, focusing on:\n")
	b.WriteString("1. Key decisions and outcomes\n")
	b.WriteString("2. Files that were modified\n")
	b.WriteString("3. Important context for continuing the work\n\n---\n\n")

	for _, m := range messages {
		switch m.Role {
		case types.RoleUser:
			b.WriteString("USER:\n")
		case types.RoleAssistant:
			b.WriteString("ASSISTANT:\n")
		default:
			continue
		}

		for _, p := range m.Parts {
			switch part := p.(type) {
			case *types.TextPart:
				b.WriteString(part.Text)
				b.WriteString("\n")
			case *types.ToolPart:
				b.WriteString(fmt.Sprintf("[Tool: %s]\n", part.ToolName))
				output := part.Output
				if len(output) > 500 {
					output = output[:500] + "..."
				}
				if output != "" {
					b.WriteString(output)
					b.WriteString("\n")
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ShouldCompact reports whether estimate_messages(current) exceeds
// thresholdFraction of contextWindow, the trigger condition the engine
// checks between turns.
func ShouldCompact(messages []*types.Message, contextWindow int, thresholdFraction float64) bool {
	if contextWindow <= 0 || thresholdFraction <= 0 {
		return false
	}
	return float64(tokenest.Messages(messages)) > float64(contextWindow)*thresholdFraction
}

func nowUnixMilli() int64 { return time.Now().UnixMilli() }

package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/wolo-run/wolo/pkg/types"
)

// fallbackSystemPrompt is used only when the active agent carries no prompt
// of its own.
const fallbackSystemPrompt = `You are Wolo, an AI coding agent that helps users with software engineering tasks.

You MUST use tool calls for all actions: write files with the write tool,
run commands with the bash tool, read files with the read tool, modify
files with the edit tool. Do not describe what you would do; do it.`

var wordmarkPattern = regexp.MustCompile(`\bWolo\b|\bwolo\b`)

// substituteWordmark replaces the product wordmark in a system prompt with
// the active agent's display name, case-matched
// ("system prompt ... with the literal agent name textually substituted for
// the wordmark").
func substituteWordmark(prompt, agentName string) string {
	if agentName == "" {
		return prompt
	}
	return wordmarkPattern.ReplaceAllStringFunc(prompt, func(m string) string {
		if m == strings.ToLower(m) {
			return strings.ToLower(agentName)
		}
		return agentName
	})
}

// ProjectMessages implements the message-projection core algorithm of
// the wire: walk the in-memory session and build the OpenAI-compatible
// wire message list, pairing each emitted tool_calls entry with its
// corresponding role=tool result message immediately afterward.
func ProjectMessages(messages []*types.Message, systemPrompt, agentName string) []wireMessage {
	var out []wireMessage

	hasSystem := false
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			hasSystem = true
			break
		}
	}
	if !hasSystem {
		prompt := systemPrompt
		if prompt == "" {
			prompt = fallbackSystemPrompt
		}
		out = append(out, wireMessage{Role: types.RoleSystem, Content: substituteWordmark(prompt, agentName)})
	}

	for _, m := range messages {
		switch m.Role {
		case types.RoleUser, types.RoleSystem:
			out = append(out, wireMessage{Role: m.Role, Content: textOf(m)})

		case types.RoleAssistant:
			var text string
			var calls []wireToolCall
			var results []*types.ToolPart
			for _, p := range m.Parts {
				switch part := p.(type) {
				case *types.TextPart:
					text += part.Text
				case *types.ToolPart:
					if part.Status == types.ToolStatusCompleted ||
						part.Status == types.ToolStatusError ||
						part.Status == types.ToolStatusInterrupted {
						calls = append(calls, toWireToolCall(part))
						results = append(results, part)
					}
				}
			}
			if text == "" && len(calls) == 0 {
				continue // skip an assistant message with neither text nor emitted tool calls
			}
			out = append(out, wireMessage{Role: types.RoleAssistant, Content: text, ToolCalls: calls})
			for _, r := range results {
				output := r.Output
				if r.Status == types.ToolStatusInterrupted && output == "" {
					output = "Tool call was interrupted before completion."
				}
				out = append(out, wireMessage{Role: types.RoleTool, Content: output, ToolCallID: r.ID})
			}
		}
	}

	return out
}

func textOf(m *types.Message) string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(*types.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

func toWireToolCall(p *types.ToolPart) wireToolCall {
	args, _ := json.Marshal(p.Input)
	return wireToolCall{
		ID:   p.ID,
		Type: "function",
		Function: wireToolCallFunc{
			Name:      p.ToolName,
			Arguments: string(args),
		},
	}
}

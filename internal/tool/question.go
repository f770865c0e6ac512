package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolo-run/wolo/internal/control"
	"github.com/wolo-run/wolo/internal/event"
)

const questionDescription = `Asks the user a blocking question and waits for their selection.

Usage:
- Use this when you need the user to decide between options before continuing
- Provide a short, specific question and, optionally, a list of choices
- This tool is unavailable in solo (non-interactive) mode`

// QuestionTool is the interactive question tool: it blocks on the
// session's control manager until a user answer arrives over the one-shot
// answer channel.
type QuestionTool struct {
	control *control.Manager
}

// QuestionInput is the input for the question tool.
type QuestionInput struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// NewQuestionTool creates a question tool bound to ctrl, the Control
// Manager of the session it will run within.
func NewQuestionTool(ctrl *control.Manager) *QuestionTool {
	return &QuestionTool{control: ctrl}
}

func (t *QuestionTool) ID() string          { return "question" }
func (t *QuestionTool) Description() string { return questionDescription }

func (t *QuestionTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"question": {
				"type": "string",
				"description": "The question to ask the user"
			},
			"options": {
				"type": "array",
				"description": "Optional list of choices to present",
				"items": {"type": "string"}
			}
		},
		"required": ["question"]
	}`)
}

func (t *QuestionTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params QuestionInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Question == "" {
		return nil, fmt.Errorf("question is required")
	}

	answers, err := t.control.AskQuestion()
	if err != nil {
		return nil, err
	}

	sessionID, messageID, callID := "", "", ""
	if toolCtx != nil {
		sessionID, messageID, callID = toolCtx.SessionID, toolCtx.MessageID, toolCtx.CallID
	}
	event.Publish(event.Event{
		Type: event.QuestionAsked,
		Data: event.QuestionAskedData{
			SessionID: sessionID,
			MessageID: messageID,
			CallID:    callID,
			Question:  params.Question,
			Options:   params.Options,
		},
	})

	select {
	case answer, ok := <-answers:
		if !ok {
			return nil, fmt.Errorf("question canceled before an answer arrived")
		}
		return &Result{
			Title:  strings.TrimSpace(params.Question),
			Output: answer,
			Metadata: map[string]any{
				"question": params.Question,
				"answer":   answer,
			},
		}, nil
	case <-ctx.Done():
		t.control.CancelQuestion()
		return nil, ctx.Err()
	}
}

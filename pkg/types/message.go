package types

import "encoding/json"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is an append-only (at the message level) turn in a session.
// Individual parts mutate in place while a tool is running.
type Message struct {
	ID               string         `json:"id"`
	Role             string         `json:"role"`
	Parts            []Part         `json:"parts"`
	Timestamp        int64          `json:"timestamp"`
	Finished         bool           `json:"finished"`
	FinishReason     string         `json:"finish_reason,omitempty"`
	ReasoningContent string         `json:"reasoning_content,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// messageWire is Message's JSON shape with Parts as raw messages, so the
// polymorphic Part slice can be decoded field by field.
type messageWire struct {
	ID               string            `json:"id"`
	Role             string            `json:"role"`
	Parts            []json.RawMessage `json:"parts"`
	Timestamp        int64             `json:"timestamp"`
	Finished         bool              `json:"finished"`
	FinishReason     string            `json:"finish_reason,omitempty"`
	ReasoningContent string            `json:"reasoning_content,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

// MarshalJSON serializes each Part through its concrete type's tags.
func (m Message) MarshalJSON() ([]byte, error) {
	wire := messageWire{
		ID:               m.ID,
		Role:             m.Role,
		Timestamp:        m.Timestamp,
		Finished:         m.Finished,
		FinishReason:     m.FinishReason,
		ReasoningContent: m.ReasoningContent,
		Metadata:         m.Metadata,
	}
	for _, p := range m.Parts {
		raw, err := MarshalPart(p)
		if err != nil {
			return nil, err
		}
		wire.Parts = append(wire.Parts, raw)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON restores each Part to its concrete type via its discriminator.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire messageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.ID = wire.ID
	m.Role = wire.Role
	m.Timestamp = wire.Timestamp
	m.Finished = wire.Finished
	m.FinishReason = wire.FinishReason
	m.ReasoningContent = wire.ReasoningContent
	m.Metadata = wire.Metadata
	m.Parts = nil
	for _, raw := range wire.Parts {
		part, err := UnmarshalPart(raw)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}

// ToolParts returns the message's parts that are ToolParts, in order.
func (m *Message) ToolParts() []*ToolPart {
	var out []*ToolPart
	for _, p := range m.Parts {
		if tp, ok := p.(*ToolPart); ok {
			out = append(out, tp)
		}
	}
	return out
}

// TextPartOrNew returns the message's last trailing TextPart, creating and
// appending one if none exists yet, used by the agent loop to lazily start
// the assistant's visible text on the first text-delta of a turn.
func (m *Message) TextPartOrNew(newID func() string) *TextPart {
	for i := len(m.Parts) - 1; i >= 0; i-- {
		if tp, ok := m.Parts[i].(*TextPart); ok {
			return tp
		}
		if _, ok := m.Parts[i].(*ToolPart); ok {
			break // a tool call interrupts the run of a single trailing text part
		}
	}
	tp := &TextPart{ID: newID(), Type: "text"}
	m.Parts = append(m.Parts, tp)
	return tp
}

// ReasoningPartOrNew returns the message's ReasoningPart, creating and
// appending one on the first reasoning-delta of a turn. A message holds at
// most one: deltas accumulate onto it.
func (m *Message) ReasoningPartOrNew(newID func() string) *ReasoningPart {
	for _, p := range m.Parts {
		if rp, ok := p.(*ReasoningPart); ok {
			return rp
		}
	}
	rp := &ReasoningPart{ID: newID(), Type: "reasoning"}
	m.Parts = append(m.Parts, rp)
	return rp
}

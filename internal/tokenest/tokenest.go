// Package tokenest implements the deterministic, character-based token
// estimator. It performs no I/O and never calls an LLM: the
// Compaction Engine needs a cheap, stable count to decide when to act, not a
// model-exact tokenization.
package tokenest

import (
	"unicode"

	"github.com/wolo-run/wolo/pkg/types"
)

const (
	// toolOverhead is the fixed per-ToolPart token cost beyond its text.
	toolOverhead = 20
	// messageOverhead is the fixed per-Message token cost beyond its parts.
	messageOverhead = 10
)

// Text estimates the token count of a string: ceil(cjk/1.5 + other/4), with
// a lower bound of 1 for any non-empty input.
func Text(s string) int {
	if s == "" {
		return 0
	}

	var cjk, other int
	for _, r := range s {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}

	// ceil(cjk/1.5 + other/4) computed in integer arithmetic by scaling to
	// a common denominator of 12: ceil((8*cjk + 3*other)/12).
	numerator := 4*cjk*2 + 3*other // = 2*(4cjk) + 3*other, denominator 12
	estimate := (numerator + 11) / 12
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

// isCJK reports whether r falls in a CJK Unicode block (Han, Hiragana,
// Katakana, Hangul) for the purposes of the cheaper per-character rate.
func isCJK(r rune) bool {
	switch {
	case unicode.Is(unicode.Han, r):
		return true
	case unicode.Is(unicode.Hiragana, r):
		return true
	case unicode.Is(unicode.Katakana, r):
		return true
	case unicode.Is(unicode.Hangul, r):
		return true
	default:
		return false
	}
}

// Part estimates one Part's token contribution.
func Part(p types.Part) int {
	switch v := p.(type) {
	case *types.TextPart:
		return Text(v.Text)
	case *types.ReasoningPart:
		return Text(v.Text)
	case *types.FilePart:
		return Text(v.Filename) + Text(v.MediaType)
	case *types.ToolPart:
		return ToolPart(v)
	default:
		return 1
	}
}

// ToolPart estimates a ToolPart's token contribution: a fixed overhead plus
// its input and output text.
func ToolPart(tp *types.ToolPart) int {
	total := toolOverhead
	for k, v := range tp.Input {
		total += Text(k)
		if s, ok := v.(string); ok {
			total += Text(s)
		} else {
			total += 2
		}
	}
	total += Text(tp.Output)
	return total
}

// Message estimates a Message's total token contribution: a fixed overhead
// plus the sum of its parts.
func Message(m *types.Message) int {
	total := messageOverhead
	hasReasoningPart := false
	for _, p := range m.Parts {
		total += Part(p)
		if _, ok := p.(*types.ReasoningPart); ok {
			hasReasoningPart = true
		}
	}
	// ReasoningContent mirrors the ReasoningPart when one exists; only
	// count it for messages that carry the flattened field alone.
	if !hasReasoningPart {
		total += Text(m.ReasoningContent)
	}
	return total
}

// Messages sums Message over a list, the figure the Compaction Engine
// compares against the configured token threshold.
func Messages(msgs []*types.Message) int {
	total := 0
	for _, m := range msgs {
		total += Message(m)
	}
	return total
}

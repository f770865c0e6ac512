package tokenest

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wolo-run/wolo/pkg/types"
)

func TestTokenest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Tokenest Suite")
}

var _ = Describe("Text", func() {
	It("estimates empty input as zero", func() {
		Expect(Text("")).To(Equal(0))
	})

	DescribeTable("never goes below one token for non-empty input",
		func(s string) {
			Expect(Text(s)).To(BeNumerically(">=", 1))
		},
		Entry("single letter", "a"),
		Entry("single punctuation", "."),
		Entry("single digit", "1"),
		Entry("single CJK character", "好"),
	)

	DescribeTable("applies the per-script character rates",
		func(s string, want int) {
			Expect(Text(s)).To(Equal(want))
		},
		// ceil(other/4)
		Entry("8 ASCII characters", "abcdefgh", 2),
		Entry("9 ASCII characters round up", "abcdefghi", 3),
		// ceil(cjk/1.5)
		Entry("3 CJK characters", "你好吗", 2),
		Entry("4 CJK characters round up", "你好吗呢", 3),
		// ceil(2/1.5 + 4/4) = ceil(2.33)
		Entry("mixed CJK and ASCII", "你好abcd", 3),
		// Hiragana/Katakana/Hangul count at the CJK rate too
		Entry("3 hiragana", "ありが", 2),
		Entry("3 hangul", "안녕하", 2),
	)

	It("is deterministic", func() {
		const s = "the same input, twice"
		Expect(Text(s)).To(Equal(Text(s)))
	})
})

var _ = Describe("ToolPart", func() {
	It("charges the fixed overhead for an empty call", func() {
		tp := &types.ToolPart{Input: map[string]any{}, Output: ""}
		Expect(ToolPart(tp)).To(Equal(toolOverhead))
	})

	It("adds input keys, string values, and output text", func() {
		tp := &types.ToolPart{
			Input:  map[string]any{"path": "abcd"}, // "path" -> 1, "abcd" -> 1
			Output: "abcdefgh",                     // -> 2
		}
		Expect(ToolPart(tp)).To(Equal(toolOverhead + 1 + 1 + 2))
	})

	It("charges a flat rate for non-string input values", func() {
		tp := &types.ToolPart{Input: map[string]any{"n": 42}}
		Expect(ToolPart(tp)).To(Equal(toolOverhead + 1 + 2))
	})
})

var _ = Describe("Message", func() {
	It("sums parts on top of the message overhead", func() {
		m := &types.Message{Parts: []types.Part{
			&types.TextPart{Text: "abcd"},
			&types.ToolPart{Input: map[string]any{}, Output: "abcd"},
		}}
		Expect(Message(m)).To(Equal(messageOverhead + 1 + (toolOverhead + 1)))
	})

	It("counts flattened reasoning content", func() {
		m := &types.Message{ReasoningContent: "abcdefgh"}
		Expect(Message(m)).To(Equal(messageOverhead + 2))
	})

	It("does not double count reasoning mirrored from a part", func() {
		m := &types.Message{
			ReasoningContent: "abcdefgh",
			Parts: []types.Part{
				&types.ReasoningPart{Text: "abcdefgh"},
			},
		}
		Expect(Message(m)).To(Equal(messageOverhead + 2))
	})
})

var _ = Describe("Messages", func() {
	It("sums over the list", func() {
		msgs := []*types.Message{
			{Parts: []types.Part{&types.TextPart{Text: "abcd"}}},
			{Parts: []types.Part{&types.TextPart{Text: "efgh"}}},
		}
		Expect(Messages(msgs)).To(Equal(2 * (messageOverhead + 1)))
	})

	It("estimates an empty history as zero", func() {
		Expect(Messages(nil)).To(Equal(0))
	})
})

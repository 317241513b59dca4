package openaicompat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/chatflow/llm"
)

// Reasoning that is replayed into context decodes back to the joined
// thoughts that were encoded, for any turn shape.
func TestEncodeDecode_ReasoningRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		thoughts := rapid.SliceOfN(rapid.StringMatching(`[a-z ]{1,30}`), 1, 3).Draw(t, "thoughts")
		text := rapid.StringMatching(`[a-z ]{1,30}`).Draw(t, "text")

		var blocks []llm.Block
		joined := ""
		for i, thought := range thoughts {
			blocks = append(blocks, llm.ThinkingBlock{Thought: thought, Source: llm.SourceReasoningContent})
			if i > 0 {
				joined += "\n"
			}
			joined += thought
		}
		blocks = append(blocks, llm.TextBlock{Text: text})
		turns := []llm.Turn{{Speaker: llm.SpeakerAi, Blocks: blocks}}

		set := llm.DefaultReasoningSettings()
		set.IncludeInContext = true

		msgs := EncodeTurns(turns, set)
		require.Len(t, msgs, 1)
		assert.Equal(t, joined, msgs[0].ReasoningContent)

		// Replay the encoded message as if it came back from a provider.
		raw, err := json.Marshal(msgs[0].ReasoningContent)
		require.NoError(t, err)
		decoded := decodeAssistantTurn(Message{
			Content:          msgs[0].Content,
			ReasoningContent: raw,
		}, "test", zap.NewNop(), nil)

		require.NotEmpty(t, decoded.Blocks)
		back := decoded.Blocks[0].(llm.ThinkingBlock)
		assert.Equal(t, joined, back.Thought)
		assert.NoError(t, llm.ValidateTurn(decoded))
	})
}

// Whatever the settings, encoding never drops or reorders visible text,
// and the reasoning key appears only when the policy allows it.
func TestEncodeTurns_VisibleContentInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(t, "turns")
		turns := make([]llm.Turn, n)
		for i := range turns {
			var blocks []llm.Block
			if rapid.Bool().Draw(t, "hasThinking") {
				blocks = append(blocks, llm.ThinkingBlock{
					Thought: rapid.StringMatching(`[a-z]{1,20}`).Draw(t, "thought"),
					Source:  llm.SourceReasoningContent,
				})
			}
			blocks = append(blocks, llm.TextBlock{
				Text: rapid.StringMatching(`[a-z]{1,20}`).Draw(t, "text"),
			})
			turns[i] = llm.Turn{Speaker: llm.SpeakerAi, Blocks: blocks}
		}

		set := llm.DefaultReasoningSettings()
		set.IncludeInContext = rapid.Bool().Draw(t, "include")
		set.StripFromContext = rapid.SampledFrom([]llm.StripPolicy{
			llm.StripNone, llm.StripAll, llm.StripAllButLast,
		}).Draw(t, "policy")

		msgs := EncodeTurns(turns, set)
		require.Len(t, msgs, n)
		for i, msg := range msgs {
			wantText := ""
			for _, b := range turns[i].Blocks {
				if tb, ok := b.(llm.TextBlock); ok {
					wantText = tb.Text
				}
			}
			assert.Equal(t, wantText, msg.Content, "turn %d", i)
			if !set.IncludeInContext {
				assert.Empty(t, msg.ReasoningContent, "turn %d", i)
			}
		}
	})
}

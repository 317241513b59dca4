package openaicompat

import (
	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/reasoning"
)

// EncodeTurns translates canonical turns into outgoing wire messages under
// the given reasoning settings:
//
//  1. The strip policy is applied first via reasoning.FilterForContext.
//  2. Ordinary content (text, tool calls, tool results) is encoded
//     unconditionally.
//  3. Reasoning is attached as `reasoning_content` only on Ai messages,
//     only when IncludeInContext is set and the turn still has thinking
//     after filtering. Whether a message carries tool calls has no bearing
//     on whether it carries reasoning.
//
// The input is never mutated.
func EncodeTurns(turns []llm.Turn, set llm.ReasoningSettings) []ChatMessage {
	filtered := reasoning.FilterForContext(turns, set.StripFromContext)

	out := make([]ChatMessage, 0, len(filtered))
	for _, turn := range filtered {
		switch turn.Speaker {
		case llm.SpeakerHuman:
			out = append(out, ChatMessage{
				Role:    "user",
				Content: joinText(turn),
			})
		case llm.SpeakerTool:
			// One wire message per tool result.
			for _, b := range turn.Blocks {
				if tr, ok := b.(llm.ToolResponseBlock); ok {
					out = append(out, ChatMessage{
						Role:       "tool",
						Content:    tr.Result,
						Name:       tr.ToolName,
						ToolCallID: tr.CallID,
					})
				}
			}
		case llm.SpeakerAi:
			msg := ChatMessage{
				Role:      "assistant",
				Content:   joinText(turn),
				ToolCalls: encodeToolCalls(turn),
			}
			if set.IncludeInContext {
				if joined, ok := reasoning.JoinThinking(reasoning.ExtractThinking(turn)); ok {
					msg.ReasoningContent = joined
				}
			}
			out = append(out, msg)
		}
	}
	return out
}

// joinText concatenates the turn's text blocks in order, newline-joined.
func joinText(turn llm.Turn) string {
	text := ""
	for _, b := range turn.Blocks {
		tb, ok := b.(llm.TextBlock)
		if !ok {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += tb.Text
	}
	return text
}

func encodeToolCalls(turn llm.Turn) []ToolCall {
	var calls []ToolCall
	for _, b := range turn.Blocks {
		tc, ok := b.(llm.ToolCallBlock)
		if !ok {
			continue
		}
		calls = append(calls, ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Parameters,
			},
		})
	}
	return calls
}

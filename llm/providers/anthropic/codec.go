package anthropic

import (
	"go.uber.org/zap"

	"github.com/BaSui01/chatflow/internal/metrics"
	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/providers"
	"github.com/BaSui01/chatflow/llm/reasoning"
)

// EncodeTurns translates canonical turns into Messages API messages under
// the given reasoning settings. The strip policy runs first; surviving
// thinking blocks are replayed as native thinking content blocks, with
// their signatures, only when IncludeInContext is set. Redacted thinking
// is replayed verbatim as redacted_thinking. The input is never mutated.
func EncodeTurns(turns []llm.Turn, set llm.ReasoningSettings) []message {
	filtered := reasoning.FilterForContext(turns, set.StripFromContext)

	out := make([]message, 0, len(filtered))
	for _, turn := range filtered {
		var msg message
		switch turn.Speaker {
		case llm.SpeakerHuman:
			msg.Role = "user"
			for _, b := range turn.Blocks {
				if tb, ok := b.(llm.TextBlock); ok {
					msg.Content = append(msg.Content, contentBlock{Type: "text", Text: tb.Text})
				}
			}
		case llm.SpeakerTool:
			// Tool results ride in a user message.
			msg.Role = "user"
			for _, b := range turn.Blocks {
				if tr, ok := b.(llm.ToolResponseBlock); ok {
					msg.Content = append(msg.Content, contentBlock{
						Type:      "tool_result",
						ToolUseID: tr.CallID,
						Content:   tr.Result,
					})
				}
			}
		case llm.SpeakerAi:
			msg.Role = "assistant"
			for _, b := range turn.Blocks {
				switch blk := b.(type) {
				case llm.ThinkingBlock:
					if !set.IncludeInContext {
						continue
					}
					if blk.Hidden {
						msg.Content = append(msg.Content, contentBlock{
							Type: "redacted_thinking",
							Data: blk.Thought,
						})
						continue
					}
					msg.Content = append(msg.Content, contentBlock{
						Type:      "thinking",
						Thinking:  blk.Thought,
						Signature: blk.Signature,
					})
				case llm.TextBlock:
					msg.Content = append(msg.Content, contentBlock{Type: "text", Text: blk.Text})
				case llm.ToolCallBlock:
					msg.Content = append(msg.Content, contentBlock{
						Type:  "tool_use",
						ID:    blk.ID,
						Name:  blk.Name,
						Input: blk.Parameters,
					})
				}
			}
		}
		if len(msg.Content) > 0 {
			out = append(out, msg)
		}
	}
	return out
}

// decodeBlock converts one wire content block. Redacted thinking is kept
// byte-exact: the API expects it replayed verbatim, so it is exempt from
// the thought length clamp.
func decodeBlock(cb contentBlock, provider string, logger *zap.Logger, collector *metrics.Collector) (llm.Block, bool) {
	switch cb.Type {
	case "text":
		if cb.Text == "" {
			return nil, false
		}
		return llm.TextBlock{Text: cb.Text}, true
	case "thinking":
		if cb.Thinking == "" {
			return nil, false
		}
		return llm.ThinkingBlock{
			Thought:   providers.ClampThought(cb.Thinking, provider, logger, collector),
			Source:    llm.SourceThinking,
			Signature: cb.Signature,
		}, true
	case "redacted_thinking":
		if cb.Data == "" {
			return nil, false
		}
		return llm.ThinkingBlock{
			Thought: cb.Data,
			Source:  llm.SourceThinking,
			Hidden:  true,
		}, true
	case "tool_use":
		return llm.ToolCallBlock{
			ID:         cb.ID,
			Name:       cb.Name,
			Parameters: cb.Input,
		}, true
	default:
		logger.Warn("unknown content block type, skipping",
			zap.String("provider", provider),
			zap.String("block_type", cb.Type))
		collector.RecordReasoningMalformed(provider)
		return nil, false
	}
}

// decodeAssistantTurn assembles the canonical turn for a complete
// response. The API already orders thinking before text and tool use, so
// wire order is preserved as-is.
func decodeAssistantTurn(content []contentBlock, provider string, logger *zap.Logger, collector *metrics.Collector) llm.Turn {
	var blocks []llm.Block
	for _, cb := range content {
		block, ok := decodeBlock(cb, provider, logger, collector)
		if !ok {
			continue
		}
		if _, isThinking := block.(llm.ThinkingBlock); isThinking {
			collector.RecordReasoningDecoded(provider, "complete")
		}
		blocks = append(blocks, block)
	}
	return llm.Turn{Speaker: llm.SpeakerAi, Blocks: blocks}
}

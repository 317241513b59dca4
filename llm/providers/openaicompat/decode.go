package openaicompat

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/BaSui01/chatflow/internal/metrics"
	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/providers"
)

// parseReasoningField applies the field-absence/malformation policy:
//
//	absent or null        -> none, silent
//	empty string          -> none (empty thinking blocks are never built)
//	non-string JSON value -> none, diagnostic warning
//	oversized string      -> truncated with marker, diagnostic warning
func parseReasoningField(raw json.RawMessage, provider string, logger *zap.Logger, collector *metrics.Collector) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}

	var thought string
	if err := json.Unmarshal(raw, &thought); err != nil {
		logger.Warn("reasoning field carries a non-string value, skipping",
			zap.String("provider", provider),
			zap.String("field", "reasoning_content"))
		collector.RecordReasoningMalformed(provider)
		return "", false
	}
	if thought == "" {
		return "", false
	}
	return providers.ClampThought(thought, provider, logger, collector), true
}

// DecodeReasoningDelta decodes one streaming delta into a turn holding
// exactly one thinking block, when the delta carries non-empty reasoning.
// Ordinary text and tool-call content of the delta is decoded separately;
// the stream loop emits any reasoning turn before content derived from
// later bytes of the same event.
func DecodeReasoningDelta(delta Message, provider string, logger *zap.Logger, collector *metrics.Collector) (llm.Turn, bool) {
	block, ok := DecodeReasoningMessage(delta, provider, logger, collector)
	if !ok {
		return llm.Turn{}, false
	}
	collector.RecordReasoningDecoded(provider, "stream")
	return llm.NewTurn(llm.SpeakerAi, block), true
}

// DecodeReasoningMessage decodes the reasoning field of a complete
// response message into a thinking block. The caller places the block
// before the message's other blocks when assembling the turn.
func DecodeReasoningMessage(msg Message, provider string, logger *zap.Logger, collector *metrics.Collector) (llm.ThinkingBlock, bool) {
	thought, ok := parseReasoningField(msg.ReasoningContent, provider, logger, collector)
	if !ok {
		return llm.ThinkingBlock{}, false
	}
	return llm.ThinkingBlock{
		Thought: thought,
		Source:  llm.SourceReasoningContent,
	}, true
}

// decodeContentBlocks converts a message's ordinary content into blocks:
// text first, then tool calls, preserving wire order.
func decodeContentBlocks(msg Message) []llm.Block {
	var blocks []llm.Block
	if msg.Content != "" {
		blocks = append(blocks, llm.TextBlock{Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		blocks = append(blocks, llm.ToolCallBlock{
			ID:         tc.ID,
			Name:       tc.Function.Name,
			Parameters: tc.Function.Arguments,
		})
	}
	return blocks
}

// decodeAssistantTurn assembles the canonical turn for a complete
// response message: thinking first (thought precedes action), then text
// and tool calls.
func decodeAssistantTurn(msg Message, provider string, logger *zap.Logger, collector *metrics.Collector) llm.Turn {
	var blocks []llm.Block
	if thinking, ok := DecodeReasoningMessage(msg, provider, logger, collector); ok {
		collector.RecordReasoningDecoded(provider, "complete")
		blocks = append(blocks, thinking)
	}
	blocks = append(blocks, decodeContentBlocks(msg)...)
	return llm.Turn{Speaker: llm.SpeakerAi, Blocks: blocks}
}

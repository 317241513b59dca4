package gemini

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/chatflow/internal/metrics"
	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/providers"
	"github.com/BaSui01/chatflow/llm/reasoning"
)

// EncodeTurns translates canonical turns into Gemini contents under the
// given reasoning settings. The strip policy runs first; surviving
// thinking blocks are re-emitted as thought-flagged parts, with their
// signatures, only when IncludeInContext is set. The input is never
// mutated.
func EncodeTurns(turns []llm.Turn, set llm.ReasoningSettings, logger *zap.Logger) []content {
	if logger == nil {
		logger = zap.NewNop()
	}
	filtered := reasoning.FilterForContext(turns, set.StripFromContext)

	out := make([]content, 0, len(filtered))
	for _, turn := range filtered {
		var c content
		switch turn.Speaker {
		case llm.SpeakerHuman:
			c.Role = "user"
			for _, b := range turn.Blocks {
				if tb, ok := b.(llm.TextBlock); ok {
					c.Parts = append(c.Parts, part{Text: tb.Text})
				}
			}
		case llm.SpeakerTool:
			c.Role = "user"
			for _, b := range turn.Blocks {
				tr, ok := b.(llm.ToolResponseBlock)
				if !ok {
					continue
				}
				var response map[string]any
				if err := json.Unmarshal([]byte(tr.Result), &response); err != nil {
					// Non-JSON results ride wrapped.
					response = map[string]any{"result": tr.Result}
				}
				c.Parts = append(c.Parts, part{
					FunctionResponse: &functionResponse{
						Name:     tr.ToolName,
						Response: response,
					},
				})
			}
		case llm.SpeakerAi:
			c.Role = "model"
			for _, b := range turn.Blocks {
				switch blk := b.(type) {
				case llm.ThinkingBlock:
					if !set.IncludeInContext {
						continue
					}
					c.Parts = append(c.Parts, part{
						Text:             blk.Thought,
						Thought:          true,
						ThoughtSignature: blk.Signature,
					})
				case llm.TextBlock:
					c.Parts = append(c.Parts, part{Text: blk.Text})
				case llm.ToolCallBlock:
					args := map[string]any{}
					if len(blk.Parameters) > 0 {
						if err := json.Unmarshal(blk.Parameters, &args); err != nil {
							logger.Warn("unmarshalable tool call parameters, skipping",
								zap.String("provider", "gemini"),
								zap.String("function", blk.Name))
							continue
						}
						if args == nil { // Parameters held JSON null
							args = map[string]any{}
						}
					}
					c.Parts = append(c.Parts, part{
						FunctionCall: &functionCall{Name: blk.Name, Args: args},
					})
				}
			}
		}
		if len(c.Parts) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// decodeParts converts a candidate's parts into canonical blocks,
// preserving wire order. Tool call IDs are synthesized because the API
// carries none; responseID keeps them unique across responses.
func decodeParts(parts []part, responseID, provider, mode string, logger *zap.Logger, collector *metrics.Collector) []llm.Block {
	var blocks []llm.Block
	callIndex := 0
	for _, pt := range parts {
		switch {
		case pt.Thought:
			if pt.Text == "" {
				continue
			}
			collector.RecordReasoningDecoded(provider, mode)
			blocks = append(blocks, llm.ThinkingBlock{
				Thought:   providers.ClampThought(pt.Text, provider, logger, collector),
				Source:    llm.SourceThought,
				Signature: pt.ThoughtSignature,
			})
		case pt.Text != "":
			blocks = append(blocks, llm.TextBlock{Text: pt.Text})
		case pt.FunctionCall != nil:
			args, err := json.Marshal(pt.FunctionCall.Args)
			if err != nil {
				logger.Warn("unmarshalable function call args, skipping",
					zap.String("provider", provider),
					zap.String("function", pt.FunctionCall.Name))
				continue
			}
			callID := fmt.Sprintf("call_%s_%d", pt.FunctionCall.Name, callIndex)
			if responseID != "" {
				callID = fmt.Sprintf("call_%s_%s_%d", responseID, pt.FunctionCall.Name, callIndex)
			}
			blocks = append(blocks, llm.ToolCallBlock{
				ID:         callID,
				Name:       pt.FunctionCall.Name,
				Parameters: args,
			})
			callIndex++
		}
	}
	return blocks
}

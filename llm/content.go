package llm

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerHuman Speaker = "human"
	SpeakerAi    Speaker = "ai"
	SpeakerTool  Speaker = "tool"
)

// BlockKind tags the concrete type of a content block.
type BlockKind string

const (
	KindText         BlockKind = "text"
	KindThinking     BlockKind = "thinking"
	KindToolCall     BlockKind = "tool_call"
	KindToolResponse BlockKind = "tool_response"
)

// SourceField records which provider wire field a thinking block was read
// from. Re-encoding must write the block back into the same field, so the
// origin travels with the block.
type SourceField string

const (
	SourceReasoningContent SourceField = "reasoning_content" // OpenAI-compatible
	SourceThinking         SourceField = "thinking"          // Anthropic-style
	SourceThought          SourceField = "thought"           // Gemini-style
)

// Block is one unit of a turn's content. The set of implementations is
// closed: TextBlock, ThinkingBlock, ToolCallBlock and ToolResponseBlock.
// Consumers switch exhaustively on the concrete type (or Kind) so that a
// new block kind is a compile-visible change at every consumption site.
type Block interface {
	Kind() BlockKind

	// sealed prevents implementations outside this package.
	sealed()
}

// TextBlock is ordinary visible model output.
type TextBlock struct {
	Text string `json:"text"`
}

// ThinkingBlock is reasoning ("chain of thought") content emitted by the
// model alongside its visible output.
type ThinkingBlock struct {
	Thought   string      `json:"thought"`
	Source    SourceField `json:"source,omitempty"`
	Signature string      `json:"signature,omitempty"`
	Hidden    bool        `json:"hidden,omitempty"`
}

// ToolCallBlock is a tool invocation request from the model.
type ToolCallBlock struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ToolResponseBlock is the result of a tool invocation.
type ToolResponseBlock struct {
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
	Result   string `json:"result"`
}

func (TextBlock) Kind() BlockKind         { return KindText }
func (ThinkingBlock) Kind() BlockKind     { return KindThinking }
func (ToolCallBlock) Kind() BlockKind     { return KindToolCall }
func (ToolResponseBlock) Kind() BlockKind { return KindToolResponse }

func (TextBlock) sealed()         {}
func (ThinkingBlock) sealed()     {}
func (ToolCallBlock) sealed()     {}
func (ToolResponseBlock) sealed() {}

// Turn is one speaker's contribution to a conversation, as an ordered
// sequence of content blocks. Block order is significant and must be
// preserved by every transformation. No function in chatflow mutates a
// Turn in place; transformations return new values so callers can retain
// the original for audit and round-trip checks.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Blocks  []Block `json:"blocks"`
}

// NewTurn creates a turn with the given speaker and blocks.
func NewTurn(speaker Speaker, blocks ...Block) Turn {
	return Turn{Speaker: speaker, Blocks: blocks}
}

// Clone returns a deep copy of the turn. Raw JSON parameters are copied so
// the clone shares no memory with the original.
func (t Turn) Clone() Turn {
	if t.Blocks == nil {
		return Turn{Speaker: t.Speaker}
	}
	blocks := make([]Block, len(t.Blocks))
	for i, b := range t.Blocks {
		if tc, ok := b.(ToolCallBlock); ok && tc.Parameters != nil {
			params := make(json.RawMessage, len(tc.Parameters))
			copy(params, tc.Parameters)
			tc.Parameters = params
			blocks[i] = tc
			continue
		}
		blocks[i] = b
	}
	return Turn{Speaker: t.Speaker, Blocks: blocks}
}

// CloneTurns deep-copies a slice of turns.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = t.Clone()
	}
	return out
}

var (
	// ErrEmptyThought reports a thinking block with an empty thought.
	// Decoders never construct these; reaching validation with one means a
	// caller built the turn by hand.
	ErrEmptyThought = errors.New("thinking block has empty thought")

	// ErrThinkingAfterContent reports a thinking block that appears after a
	// text or tool-call block within the same turn.
	ErrThinkingAfterContent = errors.New("thinking block after text or tool-call block")
)

// ValidateTurn checks the turn's structural invariants: thought precedes
// action (thinking blocks come before text and tool-call blocks) and no
// thinking block carries an empty thought.
func ValidateTurn(t Turn) error {
	contentSeen := false
	for i, b := range t.Blocks {
		switch blk := b.(type) {
		case ThinkingBlock:
			if blk.Thought == "" {
				return fmt.Errorf("block %d: %w", i, ErrEmptyThought)
			}
			if contentSeen {
				return fmt.Errorf("block %d: %w", i, ErrThinkingAfterContent)
			}
		case TextBlock, ToolCallBlock:
			contentSeen = true
		case ToolResponseBlock:
			// Tool responses carry no ordering constraint against thinking.
		}
	}
	return nil
}

// blockJSON is the flat tagged-union wire form used when persisting turns.
type blockJSON struct {
	Kind       BlockKind       `json:"kind"`
	Text       string          `json:"text,omitempty"`
	Thought    string          `json:"thought,omitempty"`
	Source     SourceField     `json:"source,omitempty"`
	Signature  string          `json:"signature,omitempty"`
	Hidden     bool            `json:"hidden,omitempty"`
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	CallID     string          `json:"call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	Result     string          `json:"result,omitempty"`
}

// MarshalJSON encodes the turn with kind-tagged blocks so history stores
// can round-trip the discriminated union.
func (t Turn) MarshalJSON() ([]byte, error) {
	blocks := make([]blockJSON, 0, len(t.Blocks))
	for _, b := range t.Blocks {
		switch blk := b.(type) {
		case TextBlock:
			blocks = append(blocks, blockJSON{Kind: KindText, Text: blk.Text})
		case ThinkingBlock:
			blocks = append(blocks, blockJSON{
				Kind: KindThinking, Thought: blk.Thought,
				Source: blk.Source, Signature: blk.Signature, Hidden: blk.Hidden,
			})
		case ToolCallBlock:
			blocks = append(blocks, blockJSON{
				Kind: KindToolCall, ID: blk.ID, Name: blk.Name, Parameters: blk.Parameters,
			})
		case ToolResponseBlock:
			blocks = append(blocks, blockJSON{
				Kind: KindToolResponse, CallID: blk.CallID, ToolName: blk.ToolName, Result: blk.Result,
			})
		}
	}
	return json.Marshal(struct {
		Speaker Speaker     `json:"speaker"`
		Blocks  []blockJSON `json:"blocks"`
	}{Speaker: t.Speaker, Blocks: blocks})
}

// UnmarshalJSON decodes the kind-tagged form produced by MarshalJSON.
// Unknown block kinds are rejected: a store holding kinds this version does
// not know about must not silently drop content.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Speaker Speaker     `json:"speaker"`
		Blocks  []blockJSON `json:"blocks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	blocks := make([]Block, 0, len(raw.Blocks))
	for i, b := range raw.Blocks {
		switch b.Kind {
		case KindText:
			blocks = append(blocks, TextBlock{Text: b.Text})
		case KindThinking:
			blocks = append(blocks, ThinkingBlock{
				Thought: b.Thought, Source: b.Source, Signature: b.Signature, Hidden: b.Hidden,
			})
		case KindToolCall:
			blocks = append(blocks, ToolCallBlock{ID: b.ID, Name: b.Name, Parameters: b.Parameters})
		case KindToolResponse:
			blocks = append(blocks, ToolResponseBlock{CallID: b.CallID, ToolName: b.ToolName, Result: b.Result})
		default:
			return fmt.Errorf("block %d: unknown block kind %q", i, b.Kind)
		}
	}
	t.Speaker = raw.Speaker
	t.Blocks = blocks
	return nil
}

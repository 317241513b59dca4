package openaicompat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/chatflow/llm"
)

func reasoningTurn(thought, text string) llm.Turn {
	return llm.NewTurn(llm.SpeakerAi,
		llm.ThinkingBlock{Thought: thought, Source: llm.SourceReasoningContent},
		llm.TextBlock{Text: text},
	)
}

func TestEncodeTurns_IncludeInContext(t *testing.T) {
	turns := []llm.Turn{
		llm.NewTurn(llm.SpeakerHuman, llm.TextBlock{Text: "why is the sky blue?"}),
		reasoningTurn("rayleigh scattering", "because of scattering"),
	}

	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = true

	msgs := EncodeTurns(turns, set)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "why is the sky blue?", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "because of scattering", msgs[1].Content)
	assert.Equal(t, "rayleigh scattering", msgs[1].ReasoningContent)
}

func TestEncodeTurns_ExcludedFromContext_OmitsKey(t *testing.T) {
	turns := []llm.Turn{reasoningTurn("hidden", "visible")}

	set := llm.DefaultReasoningSettings() // IncludeInContext false

	msgs := EncodeTurns(turns, set)
	require.Len(t, msgs, 1)
	assert.Empty(t, msgs[0].ReasoningContent)

	// The wire key must be absent, not null or empty.
	data, err := json.Marshal(msgs[0])
	require.NoError(t, err)
	assert.NotContains(t, string(data), "reasoning_content")
}

func TestEncodeTurns_StripAll(t *testing.T) {
	turns := []llm.Turn{
		reasoningTurn("think 1", "a1"),
		reasoningTurn("think 2", "a2"),
	}

	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = true
	set.StripFromContext = llm.StripAll

	msgs := EncodeTurns(turns, set)
	require.Len(t, msgs, 2)
	for i, msg := range msgs {
		assert.Empty(t, msg.ReasoningContent, "message %d", i)
	}
	assert.Equal(t, "a1", msgs[0].Content)
	assert.Equal(t, "a2", msgs[1].Content)
}

func TestEncodeTurns_StripAllButLast(t *testing.T) {
	turns := []llm.Turn{
		reasoningTurn("think 1", "a1"),
		llm.NewTurn(llm.SpeakerHuman, llm.TextBlock{Text: "more"}),
		reasoningTurn("think 2", "a2"),
	}

	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = true
	set.StripFromContext = llm.StripAllButLast

	msgs := EncodeTurns(turns, set)
	require.Len(t, msgs, 3)
	assert.Empty(t, msgs[0].ReasoningContent)
	assert.Equal(t, "think 2", msgs[2].ReasoningContent)
}

func TestEncodeTurns_MultipleThoughtsJoined(t *testing.T) {
	turns := []llm.Turn{
		llm.NewTurn(llm.SpeakerAi,
			llm.ThinkingBlock{Thought: "first", Source: llm.SourceReasoningContent},
			llm.ThinkingBlock{Thought: "second", Source: llm.SourceReasoningContent},
			llm.TextBlock{Text: "answer"},
		),
	}

	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = true

	msgs := EncodeTurns(turns, set)
	require.Len(t, msgs, 1)
	assert.Equal(t, "first\nsecond", msgs[0].ReasoningContent)
}

func TestEncodeTurns_ToolCallsIndependentOfReasoning(t *testing.T) {
	turns := []llm.Turn{
		llm.NewTurn(llm.SpeakerAi,
			llm.ThinkingBlock{Thought: "need the weather", Source: llm.SourceReasoningContent},
			llm.ToolCallBlock{ID: "call_1", Name: "get_weather", Parameters: json.RawMessage(`{"city":"SF"}`)},
		),
		llm.NewTurn(llm.SpeakerTool,
			llm.ToolResponseBlock{CallID: "call_1", ToolName: "get_weather", Result: "72F"},
		),
	}

	// Reasoning excluded: tool plumbing must be unaffected.
	msgs := EncodeTurns(turns, llm.DefaultReasoningSettings())
	require.Len(t, msgs, 2)

	assert.Equal(t, "assistant", msgs[0].Role)
	assert.Empty(t, msgs[0].ReasoningContent)
	require.Len(t, msgs[0].ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[0].ToolCalls[0].ID)
	assert.Equal(t, "get_weather", msgs[0].ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"city":"SF"}`, string(msgs[0].ToolCalls[0].Function.Arguments))

	assert.Equal(t, "tool", msgs[1].Role)
	assert.Equal(t, "call_1", msgs[1].ToolCallID)
	assert.Equal(t, "get_weather", msgs[1].Name)
	assert.Equal(t, "72F", msgs[1].Content)

	// Reasoning included: tool calls identical, reasoning attached.
	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = true
	withReasoning := EncodeTurns(turns, set)
	require.Len(t, withReasoning, 2)
	assert.Equal(t, msgs[0].ToolCalls, withReasoning[0].ToolCalls)
	assert.Equal(t, "need the weather", withReasoning[0].ReasoningContent)
}

func TestEncodeTurns_ToolResponsesSplitPerBlock(t *testing.T) {
	turns := []llm.Turn{
		llm.NewTurn(llm.SpeakerTool,
			llm.ToolResponseBlock{CallID: "call_1", ToolName: "a", Result: "r1"},
			llm.ToolResponseBlock{CallID: "call_2", ToolName: "b", Result: "r2"},
		),
	}
	msgs := EncodeTurns(turns, llm.DefaultReasoningSettings())
	require.Len(t, msgs, 2)
	assert.Equal(t, "call_1", msgs[0].ToolCallID)
	assert.Equal(t, "call_2", msgs[1].ToolCallID)
}

func TestEncodeTurns_DoesNotMutateInput(t *testing.T) {
	turns := []llm.Turn{reasoningTurn("thought", "text")}
	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = true
	set.StripFromContext = llm.StripAll

	EncodeTurns(turns, set)

	require.Len(t, turns[0].Blocks, 2)
	assert.IsType(t, llm.ThinkingBlock{}, turns[0].Blocks[0])
}

package gemini

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/chatflow/llm"
)

func TestEncodeTurns_ThoughtFlaggedParts(t *testing.T) {
	turns := []llm.Turn{
		llm.NewTurn(llm.SpeakerHuman, llm.TextBlock{Text: "question"}),
		llm.NewTurn(llm.SpeakerAi,
			llm.ThinkingBlock{Thought: "summarized reasoning", Source: llm.SourceThought, Signature: "ts-1"},
			llm.TextBlock{Text: "answer"},
		),
	}

	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = true

	contents := EncodeTurns(turns, set, zap.NewNop())
	require.Len(t, contents, 2)

	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.True(t, contents[1].Parts[0].Thought)
	assert.Equal(t, "summarized reasoning", contents[1].Parts[0].Text)
	assert.Equal(t, "ts-1", contents[1].Parts[0].ThoughtSignature)
	assert.False(t, contents[1].Parts[1].Thought)
	assert.Equal(t, "answer", contents[1].Parts[1].Text)
}

func TestEncodeTurns_ThoughtsDroppedWhenExcluded(t *testing.T) {
	turns := []llm.Turn{
		llm.NewTurn(llm.SpeakerAi,
			llm.ThinkingBlock{Thought: "secret", Source: llm.SourceThought},
			llm.TextBlock{Text: "answer"},
		),
	}

	contents := EncodeTurns(turns, llm.DefaultReasoningSettings(), zap.NewNop())
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 1)
	assert.False(t, contents[0].Parts[0].Thought)
}

func TestEncodeTurns_ToolResults(t *testing.T) {
	turns := []llm.Turn{
		llm.NewTurn(llm.SpeakerTool,
			llm.ToolResponseBlock{CallID: "call_1", ToolName: "get_weather", Result: `{"temp":72}`},
			llm.ToolResponseBlock{CallID: "call_2", ToolName: "get_time", Result: "noon"},
		),
	}

	contents := EncodeTurns(turns, llm.DefaultReasoningSettings(), zap.NewNop())
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 2)

	jsonResult := contents[0].Parts[0].FunctionResponse
	require.NotNil(t, jsonResult)
	assert.Equal(t, "get_weather", jsonResult.Name)
	assert.Equal(t, float64(72), jsonResult.Response["temp"])

	plainResult := contents[0].Parts[1].FunctionResponse
	require.NotNil(t, plainResult)
	assert.Equal(t, "noon", plainResult.Response["result"], "non-JSON results are wrapped")
}

func TestEncodeTurns_ToolCallWithoutParameters(t *testing.T) {
	// A parameterless call still reaches the wire, with empty args.
	turns := []llm.Turn{
		llm.NewTurn(llm.SpeakerAi,
			llm.ToolCallBlock{ID: "call_1", Name: "get_time"},
		),
	}

	contents := EncodeTurns(turns, llm.DefaultReasoningSettings(), zap.NewNop())
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 1)

	call := contents[0].Parts[0].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, "get_time", call.Name)
	assert.Empty(t, call.Args)
}

func TestEncodeTurns_MalformedToolCallParametersSkipped(t *testing.T) {
	turns := []llm.Turn{
		llm.NewTurn(llm.SpeakerAi,
			llm.TextBlock{Text: "calling"},
			llm.ToolCallBlock{ID: "call_1", Name: "lookup", Parameters: json.RawMessage(`not json`)},
		),
	}

	// The broken call is dropped; the turn's other content survives.
	contents := EncodeTurns(turns, llm.DefaultReasoningSettings(), zap.NewNop())
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 1)
	assert.Equal(t, "calling", contents[0].Parts[0].Text)
}

func TestDecodeParts(t *testing.T) {
	parts := []part{
		{Text: "internal summary", Thought: true, ThoughtSignature: "ts-9"},
		{Text: "visible answer"},
		{FunctionCall: &functionCall{Name: "lookup", Args: map[string]any{"q": "go"}}},
	}

	blocks := decodeParts(parts, "resp-1", "gemini", "complete", zap.NewNop(), nil)
	require.Len(t, blocks, 3)

	thinking := blocks[0].(llm.ThinkingBlock)
	assert.Equal(t, "internal summary", thinking.Thought)
	assert.Equal(t, llm.SourceThought, thinking.Source)
	assert.Equal(t, "ts-9", thinking.Signature)

	assert.Equal(t, llm.TextBlock{Text: "visible answer"}, blocks[1])

	call := blocks[2].(llm.ToolCallBlock)
	assert.Equal(t, "call_resp-1_lookup_0", call.ID)
	assert.JSONEq(t, `{"q":"go"}`, string(call.Parameters))

	turn := llm.Turn{Speaker: llm.SpeakerAi, Blocks: blocks}
	assert.NoError(t, llm.ValidateTurn(turn))
}

func TestDecodeParts_EmptyThoughtSkipped(t *testing.T) {
	blocks := decodeParts([]part{{Thought: true}}, "", "gemini", "complete", zap.NewNop(), nil)
	assert.Empty(t, blocks)
}

func TestEncodeDecode_SignatureRoundTrip(t *testing.T) {
	original := llm.NewTurn(llm.SpeakerAi,
		llm.ThinkingBlock{Thought: "keep me", Source: llm.SourceThought, Signature: "sig-round"},
		llm.TextBlock{Text: "out"},
	)

	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = true

	encoded := EncodeTurns([]llm.Turn{original}, set, zap.NewNop())
	require.Len(t, encoded, 1)

	// Feed the encoded parts back through decode.
	data, err := json.Marshal(encoded[0].Parts)
	require.NoError(t, err)
	var parts []part
	require.NoError(t, json.Unmarshal(data, &parts))

	blocks := decodeParts(parts, "", "gemini", "complete", zap.NewNop(), nil)
	require.Len(t, blocks, 2)
	assert.Equal(t, "sig-round", blocks[0].(llm.ThinkingBlock).Signature)
}

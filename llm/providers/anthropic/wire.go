package anthropic

import "encoding/json"

// contentBlock is the wire form of a message content block, both
// directions. The Type field discriminates; unused fields stay zero and
// are omitted on encode.
type contentBlock struct {
	Type string `json:"type"`

	// type == "text"
	Text string `json:"text,omitempty"`

	// type == "thinking"
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// type == "redacted_thinking"
	Data string `json:"data,omitempty"`

	// type == "tool_use"
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// type == "tool_result"
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type message struct {
	Role    string         `json:"role"` // user, assistant
	Content []contentBlock `json:"content"`
}

// thinkingParam enables extended thinking on the request.
type thinkingParam struct {
	Type         string `json:"type"` // enabled
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

type messagesRequest struct {
	Model         string         `json:"model"`
	MaxTokens     int            `json:"max_tokens"`
	Messages      []message      `json:"messages"`
	System        string         `json:"system,omitempty"`
	Thinking      *thinkingParam `json:"thinking,omitempty"`
	Temperature   float32        `json:"temperature,omitempty"`
	TopP          float32        `json:"top_p,omitempty"`
	StopSequences []string       `json:"stop_sequences,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      *usage         `json:"usage,omitempty"`
}

// streamEvent covers every SSE event type the Messages API emits. Fields
// irrelevant to a given event type stay zero.
type streamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index,omitempty"`

	Message      *messagesResponse `json:"message,omitempty"`       // message_start
	ContentBlock *contentBlock     `json:"content_block,omitempty"` // content_block_start
	Delta        *streamDelta      `json:"delta,omitempty"`         // content_block_delta, message_delta
	Usage        *usage            `json:"usage,omitempty"`         // message_delta
}

type streamDelta struct {
	Type string `json:"type"` // text_delta, thinking_delta, signature_delta, input_json_delta

	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	Signature   string `json:"signature,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`

	StopReason string `json:"stop_reason,omitempty"` // message_delta
}

package llm

import (
	"context"
	"time"
)

// ChatRequest is the provider-agnostic request: the conversation history as
// canonical turns, plus the reasoning settings snapshot that governs what
// of that history is replayed.
type ChatRequest struct {
	Model       string            `json:"model"`
	Turns       []Turn            `json:"turns"`
	Settings    ReasoningSettings `json:"-"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	TopP        float32           `json:"top_p,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
}

// ChatUsage reports token consumption for one completion.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse is a full non-streaming completion. Turn holds the decoded
// assistant content with thinking blocks placed before text and tool calls.
type ChatResponse struct {
	ID           string    `json:"id,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model"`
	Turn         Turn      `json:"turn"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Usage        ChatUsage `json:"usage,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// StreamChunk is one decoded increment of a streaming completion. A chunk
// either carries a turn (possibly empty for keep-alive frames) or a
// terminal error; reasoning turns for a response are always delivered
// before text or tool-call turns decoded from later bytes of the stream.
type StreamChunk struct {
	ID           string     `json:"id,omitempty"`
	Provider     string     `json:"provider,omitempty"`
	Model        string     `json:"model,omitempty"`
	Turn         Turn       `json:"turn"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *ChatUsage `json:"usage,omitempty"`
	Err          *Error     `json:"error,omitempty"`
}

// HealthStatus reports the result of a provider health probe.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider is the unified adapter interface. Implementations translate
// between their wire format and the canonical turn model, applying the
// request's reasoning settings on the way out.
type Provider interface {
	// Completion performs a synchronous chat completion.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream performs a streaming chat completion. The channel is closed
	// when the stream ends; cancellation is the caller's responsibility via
	// ctx. No partially decoded turns are ever observable on the channel.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// HealthCheck probes the provider for liveness.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider's unique identifier.
	Name() string
}

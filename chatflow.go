// Package chatflow provides a top-level convenience entry point for running
// reasoning-aware conversations with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/chatflow"
//
//	conv, err := chatflow.NewConversation(
//		chatflow.WithProvider(myProvider),
//		chatflow.WithSettings(llm.DefaultReasoningSettings()),
//	)
//	resp, err := conv.Send(ctx, "why is the sky blue?")
//
// A Conversation owns one append-only history log and one reasoning
// settings snapshot. Every request replays the log through the settings'
// strip policy, and every response lands back in the log with its
// reasoning intact, whatever the display settings say: the policy decides
// what is shown and what is transmitted, never what is remembered.
package chatflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/chatflow/internal/metrics"
	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/budget"
	"github.com/BaSui01/chatflow/llm/history"
)

// DefaultCompressionThreshold is the effective-token threshold at which
// ShouldCompress fires when none is configured.
const DefaultCompressionThreshold = 100000

// Option configures the conversation created by [NewConversation].
type Option func(*options)

type options struct {
	provider  llm.Provider
	store     history.Store
	settings  llm.ReasoningSettings
	logger    *zap.Logger
	collector *metrics.Collector
	model     string
	threshold int
}

// WithProvider sets the LLM provider. Required.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithStore sets the history store. Defaults to an in-memory store.
func WithStore(s history.Store) Option {
	return func(o *options) { o.store = s }
}

// WithSettings sets the reasoning settings snapshot. Defaults to
// [llm.DefaultReasoningSettings].
func WithSettings(set llm.ReasoningSettings) Option {
	return func(o *options) { o.settings = set }
}

// WithModel sets the model name passed on every request.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCollector attaches a metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithCompressionThreshold sets the effective-token threshold for
// [Conversation.ShouldCompress].
func WithCompressionThreshold(n int) Option {
	return func(o *options) { o.threshold = n }
}

// Conversation glues a provider, a history store and a budget manager
// behind one settings snapshot.
type Conversation struct {
	provider  llm.Provider
	store     history.Store
	budget    *budget.Manager
	settings  llm.ReasoningSettings
	logger    *zap.Logger
	model     string
	threshold int
}

// NewConversation creates a conversation with minimal configuration.
func NewConversation(opts ...Option) (*Conversation, error) {
	o := &options{
		settings:  llm.DefaultReasoningSettings(),
		threshold: DefaultCompressionThreshold,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.provider == nil {
		return nil, fmt.Errorf("provider is required: use WithProvider")
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.store == nil {
		o.store = history.NewMemoryStore(nil, o.logger).WithCollector(o.collector)
	}

	return &Conversation{
		provider:  o.provider,
		store:     o.store,
		budget:    budget.NewManager(o.store, o.logger).WithCollector(o.collector),
		settings:  o.settings,
		logger:    o.logger,
		model:     o.model,
		threshold: o.threshold,
	}, nil
}

// Settings returns the conversation's settings snapshot.
func (c *Conversation) Settings() llm.ReasoningSettings { return c.settings }

// History returns every stored turn in append order.
func (c *Conversation) History(ctx context.Context) ([]llm.Turn, error) {
	return c.store.All(ctx)
}

// ShouldCompress reports whether the conversation plus a pending request
// estimate would reach the configured compression threshold.
func (c *Conversation) ShouldCompress(ctx context.Context, pendingEstimate int) (bool, error) {
	turns, err := c.store.All(ctx)
	if err != nil {
		return false, err
	}
	return c.budget.ShouldCompress(ctx, turns, c.settings, pendingEstimate, c.threshold)
}

// Send appends a human text turn, runs a completion over the full history
// and appends the response turn. The stored response always keeps its
// reasoning; the returned one has it removed when IncludeInResponse is
// off.
func (c *Conversation) Send(ctx context.Context, text string) (*llm.ChatResponse, error) {
	return c.SendTurn(ctx, llm.NewTurn(llm.SpeakerHuman, llm.TextBlock{Text: text}))
}

// SendTurn is Send for a caller-built turn, e.g. a tool-result turn.
func (c *Conversation) SendTurn(ctx context.Context, turn llm.Turn) (*llm.ChatResponse, error) {
	if err := llm.ValidateTurn(turn); err != nil {
		return nil, err
	}
	if err := c.store.Append(ctx, turn); err != nil {
		return nil, err
	}
	turns, err := c.store.All(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := c.store.EstimateTokens(ctx, []llm.Turn{turn})
	if err != nil {
		return nil, err
	}
	compress, err := c.budget.ShouldCompress(ctx, turns, c.settings, pending, c.threshold)
	if err != nil {
		return nil, err
	}
	if compress {
		c.logger.Warn("conversation over compression threshold",
			zap.Int("threshold", c.threshold))
	}

	resp, err := c.provider.Completion(ctx, &llm.ChatRequest{
		Model:    c.model,
		Turns:    turns,
		Settings: c.settings,
	})
	if err != nil {
		return nil, err
	}

	if err := c.store.Append(ctx, resp.Turn); err != nil {
		return nil, err
	}
	if !c.settings.IncludeInResponse {
		resp.Turn = stripThinking(resp.Turn)
	}
	return resp, nil
}

// Stream is Send over the provider's streaming surface. Chunks are
// forwarded as they arrive (thinking chunks withheld when
// IncludeInResponse is off) and the assembled response turn is appended
// to history when the stream ends.
func (c *Conversation) Stream(ctx context.Context, text string) (<-chan llm.StreamChunk, error) {
	turn := llm.NewTurn(llm.SpeakerHuman, llm.TextBlock{Text: text})
	if err := c.store.Append(ctx, turn); err != nil {
		return nil, err
	}
	turns, err := c.store.All(ctx)
	if err != nil {
		return nil, err
	}

	upstream, err := c.provider.Stream(ctx, &llm.ChatRequest{
		Model:    c.model,
		Turns:    turns,
		Settings: c.settings,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		var asm assembler
		for chunk := range upstream {
			asm.add(chunk.Turn)
			if !c.settings.IncludeInResponse {
				chunk.Turn = stripThinking(chunk.Turn)
				if len(chunk.Turn.Blocks) == 0 && chunk.Err == nil &&
					chunk.FinishReason == "" && chunk.Usage == nil {
					continue
				}
			}
			select {
			case <-ctx.Done():
				return
			case out <- chunk:
			}
		}
		if final, ok := asm.turn(); ok {
			if err := c.store.Append(context.WithoutCancel(ctx), final); err != nil {
				c.logger.Error("failed to append streamed response", zap.Error(err))
			}
		}
	}()
	return out, nil
}

// assembler folds stream chunks back into one canonical turn: contiguous
// thinking deltas merge into one block, text deltas into one, tool calls
// stay separate. Thinking is placed first, matching the causal order the
// stream delivered it in.
type assembler struct {
	thought   string
	source    llm.SourceField
	signature string
	text      string
	calls     []llm.ToolCallBlock
}

func (a *assembler) add(turn llm.Turn) {
	for _, b := range turn.Blocks {
		switch blk := b.(type) {
		case llm.ThinkingBlock:
			a.thought += blk.Thought
			if a.source == "" {
				a.source = blk.Source
			}
			if blk.Signature != "" {
				a.signature = blk.Signature
			}
		case llm.TextBlock:
			a.text += blk.Text
		case llm.ToolCallBlock:
			a.calls = append(a.calls, blk)
		}
	}
}

func (a *assembler) turn() (llm.Turn, bool) {
	var blocks []llm.Block
	if a.thought != "" {
		blocks = append(blocks, llm.ThinkingBlock{
			Thought:   a.thought,
			Source:    a.source,
			Signature: a.signature,
		})
	}
	if a.text != "" {
		blocks = append(blocks, llm.TextBlock{Text: a.text})
	}
	for _, call := range a.calls {
		blocks = append(blocks, call)
	}
	if len(blocks) == 0 {
		return llm.Turn{}, false
	}
	return llm.Turn{Speaker: llm.SpeakerAi, Blocks: blocks}, true
}

// stripThinking removes thinking blocks from a turn for display surfaces.
func stripThinking(turn llm.Turn) llm.Turn {
	out := llm.Turn{Speaker: turn.Speaker}
	for _, b := range turn.Blocks {
		if _, ok := b.(llm.ThinkingBlock); ok {
			continue
		}
		out.Blocks = append(out.Blocks, b)
	}
	return out
}

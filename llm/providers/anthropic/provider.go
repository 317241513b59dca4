package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/chatflow/internal/metrics"
	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/providers"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultVersion   = "2023-06-01"
	defaultMaxTokens = 4096
)

// Config holds the configuration for the Anthropic provider.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string

	// Version is the anthropic-version header value.
	Version string

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration
}

// Provider implements llm.Provider against the Anthropic Messages API.
type Provider struct {
	cfg       Config
	client    *http.Client
	logger    *zap.Logger
	collector *metrics.Collector
}

// New creates an Anthropic provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// WithCollector attaches a metrics collector.
func (p *Provider) WithCollector(c *metrics.Collector) *Provider {
	p.collector = c
	return p
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", p.cfg.Version)
	req.Header.Set("Content-Type", "application/json")
}

func (p *Provider) endpoint(path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(p.cfg.BaseURL, "/"), path)
}

// thinkingBudget maps the effort hint onto a token budget. An explicit
// MaxTokens setting wins over the hint.
func thinkingBudget(set llm.ReasoningSettings) int {
	if set.MaxTokens > 0 {
		return set.MaxTokens
	}
	switch set.Effort {
	case llm.EffortLow:
		return 1024
	case llm.EffortHigh:
		return 16384
	default:
		return 4096
	}
}

func (p *Provider) buildBody(req *llm.ChatRequest, stream bool) messagesRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	body := messagesRequest{
		Model:         providers.ChooseModel(req, p.cfg.DefaultModel, "claude-sonnet-4-5"),
		MaxTokens:     maxTokens,
		Messages:      EncodeTurns(req.Turns, req.Settings),
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		Stream:        stream,
	}
	if req.Settings.Enabled {
		body.Thinking = &thinkingParam{
			Type:         "enabled",
			BudgetTokens: thinkingBudget(req.Settings),
		}
	}
	return body
}

func (p *Provider) post(ctx context.Context, body messagesRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/v1/messages"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	return resp, nil
}

// HealthCheck verifies the provider is reachable.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/v1/models"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("anthropic health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Completion performs a non-streaming message request.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := p.post(ctx, p.buildBody(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}

	result := &llm.ChatResponse{
		ID:           msgResp.ID,
		Provider:     p.Name(),
		Model:        msgResp.Model,
		Turn:         decodeAssistantTurn(msgResp.Content, p.Name(), p.logger, p.collector),
		FinishReason: msgResp.StopReason,
	}
	if msgResp.Usage != nil {
		result.Usage = llm.ChatUsage{
			PromptTokens:     msgResp.Usage.InputTokens,
			CompletionTokens: msgResp.Usage.OutputTokens,
			TotalTokens:      msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
		}
	}
	return result, nil
}

// Stream performs a streaming message request via SSE.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.post(ctx, p.buildBody(req, true))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}
	return p.streamSSE(ctx, resp.Body), nil
}

// streamSSE parses Messages API events. Thinking and text deltas are
// emitted as they arrive. The thinking signature trails its thought in a
// separate signature_delta; it is emitted as a signature-only thinking
// chunk so consumers accumulating the thought can attach it, keeping the
// assembled block replayable. Tool use input is accumulated per block
// index and emitted whole at content_block_stop, since partial JSON is
// unusable downstream.
func (p *Provider) streamSSE(ctx context.Context, body io.ReadCloser) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk)
	go func() {
		defer body.Close()
		defer close(ch)

		emit := func(chunk llm.StreamChunk) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- chunk:
				return true
			}
		}

		var (
			respID   string
			model    string
			pending  = map[int]*contentBlock{} // open tool_use blocks by index
			scanning = bufio.NewReader(body)
		)
		base := func() llm.StreamChunk {
			return llm.StreamChunk{ID: respID, Provider: p.Name(), Model: model}
		}

		for {
			line, err := scanning.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					emit(llm.StreamChunk{Err: &llm.Error{
						Code: llm.ErrUpstreamError, Message: err.Error(),
						HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
					}})
				}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			var event streamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				emit(llm.StreamChunk{Err: &llm.Error{
					Code: llm.ErrUpstreamError, Message: err.Error(),
					HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
				}})
				return
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					respID = event.Message.ID
					model = event.Message.Model
				}

			case "content_block_start":
				if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
					cb := *event.ContentBlock
					// Input arrives via input_json_delta; the start
					// event's placeholder "{}" is discarded.
					cb.Input = nil
					pending[event.Index] = &cb
				}

			case "content_block_delta":
				if event.Delta == nil {
					continue
				}
				switch event.Delta.Type {
				case "thinking_delta":
					if event.Delta.Thinking == "" {
						continue
					}
					p.collector.RecordReasoningDecoded(p.Name(), "stream")
					chunk := base()
					chunk.Turn = llm.NewTurn(llm.SpeakerAi, llm.ThinkingBlock{
						Thought: event.Delta.Thinking,
						Source:  llm.SourceThinking,
					})
					if !emit(chunk) {
						return
					}
				case "text_delta":
					if event.Delta.Text == "" {
						continue
					}
					chunk := base()
					chunk.Turn = llm.NewTurn(llm.SpeakerAi, llm.TextBlock{Text: event.Delta.Text})
					if !emit(chunk) {
						return
					}
				case "signature_delta":
					if event.Delta.Signature == "" {
						continue
					}
					chunk := base()
					chunk.Turn = llm.NewTurn(llm.SpeakerAi, llm.ThinkingBlock{
						Source:    llm.SourceThinking,
						Signature: event.Delta.Signature,
					})
					if !emit(chunk) {
						return
					}
				case "input_json_delta":
					if cb := pending[event.Index]; cb != nil {
						cb.Input = append(cb.Input, event.Delta.PartialJSON...)
					}
				}

			case "content_block_stop":
				cb := pending[event.Index]
				if cb == nil {
					continue
				}
				delete(pending, event.Index)
				chunk := base()
				chunk.Turn = llm.NewTurn(llm.SpeakerAi, llm.ToolCallBlock{
					ID:         cb.ID,
					Name:       cb.Name,
					Parameters: cb.Input,
				})
				if !emit(chunk) {
					return
				}

			case "message_delta":
				chunk := base()
				if event.Delta != nil {
					chunk.FinishReason = event.Delta.StopReason
				}
				if event.Usage != nil {
					chunk.Usage = &llm.ChatUsage{
						PromptTokens:     event.Usage.InputTokens,
						CompletionTokens: event.Usage.OutputTokens,
						TotalTokens:      event.Usage.InputTokens + event.Usage.OutputTokens,
					}
				}
				if !emit(chunk) {
					return
				}

			case "message_stop":
				return
			}
		}
	}()
	return ch
}

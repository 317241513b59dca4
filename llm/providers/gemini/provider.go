package gemini

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

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Config holds the configuration for the Gemini provider.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration
}

// Provider implements llm.Provider against the Gemini generateContent API.
type Provider struct {
	cfg       Config
	client    *http.Client
	logger    *zap.Logger
	collector *metrics.Collector
}

// New creates a Gemini provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
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

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

func (p *Provider) model(req *llm.ChatRequest) string {
	return providers.ChooseModel(req, p.cfg.DefaultModel, "gemini-2.5-pro")
}

func (p *Provider) buildBody(req *llm.ChatRequest) generateRequest {
	body := generateRequest{
		Contents: EncodeTurns(req.Turns, req.Settings, p.logger),
	}
	if req.Temperature > 0 || req.TopP > 0 || req.MaxTokens > 0 || len(req.Stop) > 0 || req.Settings.Enabled {
		body.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.Stop,
		}
		if req.Settings.Enabled {
			body.GenerationConfig.ThinkingConfig = &thinkingConfig{
				IncludeThoughts: true,
				ThinkingBudget:  req.Settings.MaxTokens,
			}
		}
	}
	return body
}

func (p *Provider) post(ctx context.Context, method string, req *llm.ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(p.buildBody(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:%s",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.model(req), method)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
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
	endpoint := fmt.Sprintf("%s/v1beta/models", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
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
			fmt.Errorf("gemini health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Completion performs a non-streaming generateContent request.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := p.post(ctx, "generateContent", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	if len(genResp.Candidates) == 0 {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: "response has no candidates",
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}

	first := genResp.Candidates[0]
	result := &llm.ChatResponse{
		ID:       genResp.ResponseID,
		Provider: p.Name(),
		Model:    p.model(req),
		Turn: llm.Turn{
			Speaker: llm.SpeakerAi,
			Blocks:  decodeParts(first.Content.Parts, genResp.ResponseID, p.Name(), "complete", p.logger, p.collector),
		},
		FinishReason: first.FinishReason,
	}
	if genResp.UsageMetadata != nil {
		result.Usage = llm.ChatUsage{
			PromptTokens:     genResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: genResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      genResp.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}

// Stream performs a streaming generateContent request. The stream is one
// JSON object per line; unparseable lines are skipped, matching the API's
// array framing.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.post(ctx, "streamGenerateContent", req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	model := p.model(req)
	ch := make(chan llm.StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(ch)

		emit := func(chunk llm.StreamChunk) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- chunk:
				return true
			}
		}

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					emit(llm.StreamChunk{Err: &llm.Error{
						Code: llm.ErrUpstreamError, Message: err.Error(),
						HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
					}})
				}
				return
			}
			line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "data:"))
			if line == "" {
				continue
			}

			var event generateResponse
			if err := json.Unmarshal([]byte(line), &event); err != nil {
				continue
			}

			for _, cand := range event.Candidates {
				blocks := decodeParts(cand.Content.Parts, event.ResponseID, p.Name(), "stream", p.logger, p.collector)
				if len(blocks) == 0 && cand.FinishReason == "" {
					continue
				}
				chunk := llm.StreamChunk{
					ID:           event.ResponseID,
					Provider:     p.Name(),
					Model:        model,
					FinishReason: cand.FinishReason,
				}
				if len(blocks) > 0 {
					chunk.Turn = llm.Turn{Speaker: llm.SpeakerAi, Blocks: blocks}
				}
				if !emit(chunk) {
					return
				}
			}

			if event.UsageMetadata != nil {
				chunk := llm.StreamChunk{Provider: p.Name(), Model: model}
				chunk.Usage = &llm.ChatUsage{
					PromptTokens:     event.UsageMetadata.PromptTokenCount,
					CompletionTokens: event.UsageMetadata.CandidatesTokenCount,
					TotalTokens:      event.UsageMetadata.TotalTokenCount,
				}
				if !emit(chunk) {
					return
				}
			}
		}
	}()
	return ch, nil
}

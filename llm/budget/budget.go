package budget

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/chatflow/internal/metrics"
	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/history"
	"github.com/BaSui01/chatflow/llm/reasoning"
)

// Manager decides how much of the context window a conversation occupies
// once the reasoning settings are applied, and whether compression must
// run before the next request.
type Manager struct {
	store     history.Store
	logger    *zap.Logger
	collector *metrics.Collector
}

// NewManager creates a budget manager over the given history store.
func NewManager(store history.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}
}

// WithCollector attaches a metrics collector.
func (m *Manager) WithCollector(c *metrics.Collector) *Manager {
	m.collector = c
	return m
}

// countingPolicy maps the settings onto the strip policy used for token
// accounting. When reasoning is not replayed into context at all, nothing
// of it will be transmitted, so everything is discounted regardless of the
// nominal strip policy.
func countingPolicy(set llm.ReasoningSettings) llm.StripPolicy {
	if !set.IncludeInContext {
		return llm.StripAll
	}
	return set.StripFromContext
}

// EffectiveTokenCount returns the token count that will actually be
// transmitted for turns under the given settings. When everything stored
// will be sent, it is the store's raw total; otherwise the estimate of the
// thinking that the counting policy removes is subtracted, floored at 0.
//
// A history store failure is fatal and propagated: no meaningful budget
// decision exists without the raw total.
func (m *Manager) EffectiveTokenCount(ctx context.Context, turns []llm.Turn, set llm.ReasoningSettings) (int, error) {
	raw, err := m.store.RawTokenCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("raw token count unavailable: %w", err)
	}

	if set.IncludeInContext && set.StripFromContext == llm.StripNone {
		return raw, nil
	}

	policy := countingPolicy(set)
	filtered := reasoning.FilterForContext(turns, policy)

	reduction := 0
	for i := range turns {
		kept := reasoning.ExtractThinking(filtered[i])
		if len(kept) > 0 {
			continue
		}
		removed := reasoning.ExtractThinking(turns[i])
		reduction += reasoning.EstimateThinkingTokens(removed)
	}

	effective := raw - reduction
	if effective < 0 {
		effective = 0
	}

	m.logger.Debug("effective token count",
		zap.Int("raw", raw),
		zap.Int("reduction", reduction),
		zap.Int("effective", effective),
		zap.String("counting_policy", string(policy)))
	return effective, nil
}

// ShouldCompress reports whether the conversation plus a pending request
// estimate would reach the compression threshold.
func (m *Manager) ShouldCompress(ctx context.Context, turns []llm.Turn, set llm.ReasoningSettings, pendingEstimate, threshold int) (bool, error) {
	effective, err := m.EffectiveTokenCount(ctx, turns, set)
	if err != nil {
		return false, err
	}

	compress := effective+pendingEstimate >= threshold
	if compress {
		m.collector.RecordCompressionCheck("compress")
		m.logger.Info("compression threshold reached",
			zap.Int("effective", effective),
			zap.Int("pending", pendingEstimate),
			zap.Int("threshold", threshold))
	} else {
		m.collector.RecordCompressionCheck("skip")
	}
	return compress, nil
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates the pipeline's prometheus metrics. The reasoning
// side-channel degrades silently from the user's point of view, so the
// counters here are the only place truncations and malformed fields stay
// visible after the zap warning scrolls away.
type Collector struct {
	reasoningDecoded   *prometheus.CounterVec
	reasoningTruncated *prometheus.CounterVec
	reasoningMalformed *prometheus.CounterVec
	turnsAppended      *prometheus.CounterVec
	compressionChecks  *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector. Metrics are registered on the
// default registry under the given namespace; use distinct namespaces for
// distinct collectors.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.reasoningDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_blocks_decoded_total",
			Help:      "Total number of thinking blocks decoded from provider responses",
		},
		[]string{"provider", "mode"},
	)

	c.reasoningTruncated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_truncated_total",
			Help:      "Total number of oversized reasoning fields truncated during decode",
		},
		[]string{"provider"},
	)

	c.reasoningMalformed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_malformed_total",
			Help:      "Total number of reasoning fields skipped for carrying a non-string value",
		},
		[]string{"provider"},
	)

	c.turnsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_turns_appended_total",
			Help:      "Total number of turns appended to conversation history",
		},
		[]string{"store"},
	)

	c.compressionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_compression_checks_total",
			Help:      "Total number of compression decisions, by outcome",
		},
		[]string{"outcome"},
	)

	return c
}

// RecordReasoningDecoded counts one decoded thinking block.
// mode is "stream" or "complete".
func (c *Collector) RecordReasoningDecoded(provider, mode string) {
	if c == nil {
		return
	}
	c.reasoningDecoded.WithLabelValues(provider, mode).Inc()
}

// RecordReasoningTruncated counts one truncated oversized reasoning field.
func (c *Collector) RecordReasoningTruncated(provider string) {
	if c == nil {
		return
	}
	c.reasoningTruncated.WithLabelValues(provider).Inc()
}

// RecordReasoningMalformed counts one skipped wrong-type reasoning field.
func (c *Collector) RecordReasoningMalformed(provider string) {
	if c == nil {
		return
	}
	c.reasoningMalformed.WithLabelValues(provider).Inc()
}

// RecordTurnAppended counts one turn appended to a history store.
func (c *Collector) RecordTurnAppended(store string) {
	if c == nil {
		return
	}
	c.turnsAppended.WithLabelValues(store).Inc()
}

// RecordCompressionCheck counts one compression decision.
// outcome is "compress" or "skip".
func (c *Collector) RecordCompressionCheck(outcome string) {
	if c == nil {
		return
	}
	c.compressionChecks.WithLabelValues(outcome).Inc()
}

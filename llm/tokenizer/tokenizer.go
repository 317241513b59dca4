package tokenizer

import (
	"fmt"
	"sync"

	"github.com/BaSui01/chatflow/llm"
)

// Tokenizer is the unified token counting interface.
type Tokenizer interface {
	// CountTokens returns the token count of a text string.
	CountTokens(text string) (int, error)

	// CountTurn returns the token count of a single turn, including
	// per-message overhead (role markers, separators).
	CountTurn(turn llm.Turn) (int, error)

	// CountTurns returns the total token count of a turn slice.
	CountTurns(turns []llm.Turn) (int, error)

	// Name returns the tokenizer's name.
	Name() string
}

// Global tokenizer registry, keyed by model name.
var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// Register registers a tokenizer for the given model name.
func Register(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// Get returns the tokenizer registered for the given model. It also tries
// prefix matching (e.g. "gpt-4o" matches "gpt-4o-mini").
func Get(model string) (Tokenizer, error) {
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t, nil
	}
	for prefix, t := range modelTokenizers {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
}

// GetOrEstimator returns the registered tokenizer for the model, falling
// back to the generic estimator when none is registered.
func GetOrEstimator(model string) Tokenizer {
	t, err := Get(model)
	if err != nil {
		return NewEstimator(model)
	}
	return t
}

// countTurnWith totals a turn's block contents through count, adding the
// fixed per-message overhead the chat wire formats impose.
func countTurnWith(turn llm.Turn, count func(string) (int, error)) (int, error) {
	total := 4 // role markers and separators
	for _, b := range turn.Blocks {
		var text string
		switch blk := b.(type) {
		case llm.TextBlock:
			text = blk.Text
		case llm.ThinkingBlock:
			text = blk.Thought
		case llm.ToolCallBlock:
			text = blk.Name + string(blk.Parameters)
		case llm.ToolResponseBlock:
			text = blk.ToolName + blk.Result
		}
		n, err := count(text)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

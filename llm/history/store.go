package history

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/chatflow/internal/metrics"
	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/tokenizer"
)

// Store is the append-only conversation log. One session has a single
// logical writer; reads are safe from any goroutine. A store failure is
// fatal to the caller: no encode or compression decision can be made
// without history.
type Store interface {
	// Append adds a turn to the end of the log.
	Append(ctx context.Context, turn llm.Turn) error

	// All returns every stored turn in append order. The result is the
	// caller's to keep; later appends never alias into it.
	All(ctx context.Context) ([]llm.Turn, error)

	// RawTokenCount returns the total token count of everything stored,
	// before any reasoning policy is applied.
	RawTokenCount(ctx context.Context) (int, error)

	// EstimateTokens estimates the token count of an arbitrary turn slice
	// using the store's tokenizer.
	EstimateTokens(ctx context.Context, turns []llm.Turn) (int, error)
}

// MemoryStore keeps the session log in process memory.
type MemoryStore struct {
	sessionID string
	tok       tokenizer.Tokenizer
	logger    *zap.Logger
	collector *metrics.Collector

	mu        sync.RWMutex
	turns     []llm.Turn
	rawTokens int
}

// NewMemoryStore creates an in-memory history store. A nil tokenizer falls
// back to the character estimator.
func NewMemoryStore(tok tokenizer.Tokenizer, logger *zap.Logger) *MemoryStore {
	if tok == nil {
		tok = tokenizer.NewEstimator("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		sessionID: uuid.NewString(),
		tok:       tok,
		logger:    logger,
	}
}

// WithCollector attaches a metrics collector.
func (s *MemoryStore) WithCollector(c *metrics.Collector) *MemoryStore {
	s.collector = c
	return s
}

// SessionID returns the store's session identifier.
func (s *MemoryStore) SessionID() string { return s.sessionID }

func (s *MemoryStore) Append(_ context.Context, turn llm.Turn) error {
	tokens, err := s.tok.CountTurn(turn)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.turns = append(s.turns, turn.Clone())
	s.rawTokens += tokens
	total := s.rawTokens
	count := len(s.turns)
	s.mu.Unlock()

	s.collector.RecordTurnAppended("memory")
	s.logger.Debug("turn appended",
		zap.String("session_id", s.sessionID),
		zap.String("speaker", string(turn.Speaker)),
		zap.Int("turns", count),
		zap.Int("raw_tokens", total))
	return nil
}

func (s *MemoryStore) All(_ context.Context) ([]llm.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return llm.CloneTurns(s.turns), nil
}

func (s *MemoryStore) RawTokenCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawTokens, nil
}

func (s *MemoryStore) EstimateTokens(_ context.Context, turns []llm.Turn) (int, error) {
	return s.tok.CountTurns(turns)
}

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/chatflow/internal/metrics"
	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/tokenizer"
)

// RedisStore keeps the session log in Redis: turns on a list key, the raw
// token total on a counter key. Appends are atomic per turn via pipeline.
type RedisStore struct {
	rdb       *redis.Client
	sessionID string
	keyPrefix string
	ttl       time.Duration
	tok       tokenizer.Tokenizer
	logger    *zap.Logger
	collector *metrics.Collector
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithSessionID pins the store to an existing session.
func WithSessionID(id string) RedisStoreOption {
	return func(s *RedisStore) { s.sessionID = id }
}

// WithTTL sets the session expiry. Zero means no expiry.
func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithRedisCollector attaches a metrics collector.
func WithRedisCollector(c *metrics.Collector) RedisStoreOption {
	return func(s *RedisStore) { s.collector = c }
}

// NewRedisStore creates a Redis-backed history store.
func NewRedisStore(rdb *redis.Client, tok tokenizer.Tokenizer, logger *zap.Logger, opts ...RedisStoreOption) *RedisStore {
	if tok == nil {
		tok = tokenizer.NewEstimator("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RedisStore{
		rdb:       rdb,
		sessionID: uuid.NewString(),
		keyPrefix: "chatflow:history:",
		ttl:       24 * time.Hour,
		tok:       tok,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionID returns the store's session identifier.
func (s *RedisStore) SessionID() string { return s.sessionID }

func (s *RedisStore) turnsKey() string  { return s.keyPrefix + s.sessionID + ":turns" }
func (s *RedisStore) tokensKey() string { return s.keyPrefix + s.sessionID + ":tokens" }

func (s *RedisStore) Append(ctx context.Context, turn llm.Turn) error {
	tokens, err := s.tok.CountTurn(turn)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, s.turnsKey(), payload)
	pipe.IncrBy(ctx, s.tokensKey(), int64(tokens))
	if s.ttl > 0 {
		pipe.Expire(ctx, s.turnsKey(), s.ttl)
		pipe.Expire(ctx, s.tokensKey(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return &llm.Error{
			Code:    llm.ErrHistoryUnavailable,
			Message: fmt.Sprintf("redis append failed: %v", err),
		}
	}

	s.collector.RecordTurnAppended("redis")
	s.logger.Debug("turn appended",
		zap.String("session_id", s.sessionID),
		zap.String("speaker", string(turn.Speaker)),
		zap.Int("tokens", tokens))
	return nil
}

func (s *RedisStore) All(ctx context.Context) ([]llm.Turn, error) {
	raw, err := s.rdb.LRange(ctx, s.turnsKey(), 0, -1).Result()
	if err != nil {
		return nil, &llm.Error{
			Code:    llm.ErrHistoryUnavailable,
			Message: fmt.Sprintf("redis read failed: %v", err),
		}
	}
	turns := make([]llm.Turn, 0, len(raw))
	for i, item := range raw {
		var t llm.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn %d: %w", i, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) RawTokenCount(ctx context.Context) (int, error) {
	n, err := s.rdb.Get(ctx, s.tokensKey()).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, &llm.Error{
			Code:    llm.ErrHistoryUnavailable,
			Message: fmt.Sprintf("redis read failed: %v", err),
		}
	}
	return n, nil
}

func (s *RedisStore) EstimateTokens(_ context.Context, turns []llm.Turn) (int, error) {
	return s.tok.CountTurns(turns)
}

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/chatflow/internal/metrics"
	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/tokenizer"
)

// turnRecord is the persisted row shape. Blocks round-trip through the
// tagged-union JSON form of llm.Turn.
type turnRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	SessionID string    `gorm:"index:idx_session_seq,priority:1;size:36"`
	Seq       int       `gorm:"index:idx_session_seq,priority:2"`
	Speaker   string    `gorm:"size:16"`
	Blocks    []byte    `gorm:"type:blob"`
	Tokens    int       ``
	CreatedAt time.Time ``
}

func (turnRecord) TableName() string { return "turns" }

// SQLiteStore persists the session log to a SQLite database so a CLI
// session can be resumed across invocations.
type SQLiteStore struct {
	db        *gorm.DB
	sessionID string
	tok       tokenizer.Tokenizer
	logger    *zap.Logger
	collector *metrics.Collector
}

// SQLiteStoreOption configures a SQLiteStore.
type SQLiteStoreOption func(*SQLiteStore)

// WithSQLiteSessionID resumes an existing session instead of starting a
// fresh one.
func WithSQLiteSessionID(id string) SQLiteStoreOption {
	return func(s *SQLiteStore) { s.sessionID = id }
}

// WithSQLiteCollector attaches a metrics collector.
func WithSQLiteCollector(c *metrics.Collector) SQLiteStoreOption {
	return func(s *SQLiteStore) { s.collector = c }
}

// OpenSQLiteStore opens (creating if needed) the history database at path
// and migrates the schema. Use ":memory:" for tests.
func OpenSQLiteStore(path string, tok tokenizer.Tokenizer, logger *zap.Logger, opts ...SQLiteStoreOption) (*SQLiteStore, error) {
	if tok == nil {
		tok = tokenizer.NewEstimator("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.AutoMigrate(&turnRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	s := &SQLiteStore{
		db:        db,
		sessionID: uuid.NewString(),
		tok:       tok,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SessionID returns the store's session identifier.
func (s *SQLiteStore) SessionID() string { return s.sessionID }

func (s *SQLiteStore) Append(ctx context.Context, turn llm.Turn) error {
	tokens, err := s.tok.CountTurn(turn)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq int64
		if err := tx.Model(&turnRecord{}).
			Where("session_id = ?", s.sessionID).
			Count(&seq).Error; err != nil {
			return err
		}
		return tx.Create(&turnRecord{
			ID:        uuid.NewString(),
			SessionID: s.sessionID,
			Seq:       int(seq),
			Speaker:   string(turn.Speaker),
			Blocks:    payload,
			Tokens:    tokens,
			CreatedAt: time.Now(),
		}).Error
	})
	if err != nil {
		return &llm.Error{
			Code:    llm.ErrHistoryUnavailable,
			Message: fmt.Sprintf("sqlite append failed: %v", err),
		}
	}

	s.collector.RecordTurnAppended("sqlite")
	s.logger.Debug("turn appended",
		zap.String("session_id", s.sessionID),
		zap.String("speaker", string(turn.Speaker)),
		zap.Int("tokens", tokens))
	return nil
}

func (s *SQLiteStore) All(ctx context.Context) ([]llm.Turn, error) {
	var records []turnRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", s.sessionID).
		Order("seq asc").
		Find(&records).Error
	if err != nil {
		return nil, &llm.Error{
			Code:    llm.ErrHistoryUnavailable,
			Message: fmt.Sprintf("sqlite read failed: %v", err),
		}
	}

	turns := make([]llm.Turn, 0, len(records))
	for _, rec := range records {
		var t llm.Turn
		if err := json.Unmarshal(rec.Blocks, &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn %s: %w", rec.ID, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *SQLiteStore) RawTokenCount(ctx context.Context) (int, error) {
	var total *int64
	err := s.db.WithContext(ctx).Model(&turnRecord{}).
		Where("session_id = ?", s.sessionID).
		Select("sum(tokens)").
		Scan(&total).Error
	if err != nil {
		return 0, &llm.Error{
			Code:    llm.ErrHistoryUnavailable,
			Message: fmt.Sprintf("sqlite read failed: %v", err),
		}
	}
	if total == nil {
		return 0, nil
	}
	return int(*total), nil
}

func (s *SQLiteStore) EstimateTokens(_ context.Context, turns []llm.Turn) (int, error) {
	return s.tok.CountTurns(turns)
}

package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/chatflow/llm"
)

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:", nil, nil)
	require.NoError(t, err)
	storeContract(t, store)
}

func TestSQLiteStore_OrderPreservedAcrossAppends(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteStore(":memory:", nil, nil)
	require.NoError(t, err)

	texts := []string{"first", "second", "third", "fourth"}
	for _, text := range texts {
		require.NoError(t, store.Append(ctx, llm.NewTurn(llm.SpeakerHuman, llm.TextBlock{Text: text})))
	}

	got, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(texts))
	for i, text := range texts {
		assert.Equal(t, llm.TextBlock{Text: text}, got[i].Blocks[0], "turn %d", i)
	}
}

func TestSQLiteStore_SessionResume(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := OpenSQLiteStore(path, nil, nil)
	require.NoError(t, err)
	for _, turn := range sampleTurns() {
		require.NoError(t, first.Append(ctx, turn))
	}
	session := first.SessionID()

	// Reopen the same file pinned to the previous session.
	resumed, err := OpenSQLiteStore(path, nil, nil, WithSQLiteSessionID(session))
	require.NoError(t, err)

	got, err := resumed.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	thinking := got[1].Blocks[0].(llm.ThinkingBlock)
	assert.Equal(t, "easy geography question", thinking.Thought)

	raw, err := resumed.RawTokenCount(ctx)
	require.NoError(t, err)
	assert.Positive(t, raw)
}

func TestSQLiteStore_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	a, err := OpenSQLiteStore(path, nil, nil)
	require.NoError(t, err)
	require.NoError(t, a.Append(ctx, sampleTurns()[0]))

	b, err := OpenSQLiteStore(path, nil, nil)
	require.NoError(t, err)

	got, err := b.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	raw, err := b.RawTokenCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, raw)
}

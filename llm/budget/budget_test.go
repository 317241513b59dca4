package budget

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/history"
)

func seedStore(t *testing.T, turns []llm.Turn) *history.MemoryStore {
	t.Helper()
	store := history.NewMemoryStore(nil, nil)
	for _, turn := range turns {
		require.NoError(t, store.Append(context.Background(), turn))
	}
	return store
}

func reasoningTurn(thought, text string) llm.Turn {
	return llm.NewTurn(llm.SpeakerAi,
		llm.ThinkingBlock{Thought: thought, Source: llm.SourceReasoningContent},
		llm.TextBlock{Text: text},
	)
}

func TestEffectiveTokenCount_RawWhenEverythingSent(t *testing.T) {
	turns := []llm.Turn{
		llm.NewTurn(llm.SpeakerHuman, llm.TextBlock{Text: "question about things"}),
		reasoningTurn("some stored reasoning to weigh", "the answer"),
	}
	store := seedStore(t, turns)
	m := NewManager(store, nil)

	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = true
	set.StripFromContext = llm.StripNone

	raw, err := store.RawTokenCount(context.Background())
	require.NoError(t, err)

	effective, err := m.EffectiveTokenCount(context.Background(), turns, set)
	require.NoError(t, err)
	assert.Equal(t, raw, effective)
}

func TestEffectiveTokenCount_DiscountsStrippedThinking(t *testing.T) {
	turns := []llm.Turn{
		reasoningTurn("a long internal deliberation about the problem at hand", "short"),
		reasoningTurn("another long internal deliberation about the follow-up", "short"),
	}
	store := seedStore(t, turns)
	m := NewManager(store, nil)
	ctx := context.Background()

	raw, err := store.RawTokenCount(ctx)
	require.NoError(t, err)

	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = true
	set.StripFromContext = llm.StripAll

	stripped, err := m.EffectiveTokenCount(ctx, turns, set)
	require.NoError(t, err)
	assert.Less(t, stripped, raw, "stripping reasoning lowers the effective count")
	assert.GreaterOrEqual(t, stripped, 0)

	set.StripFromContext = llm.StripAllButLast
	butLast, err := m.EffectiveTokenCount(ctx, turns, set)
	require.NoError(t, err)
	assert.Greater(t, butLast, stripped, "keeping the last turn's reasoning costs more than stripping all")
	assert.Less(t, butLast, raw)
}

func TestEffectiveTokenCount_ExcludedFromContextCountsAsStripAll(t *testing.T) {
	turns := []llm.Turn{reasoningTurn("stored reasoning never transmitted", "answer")}
	store := seedStore(t, turns)
	m := NewManager(store, nil)
	ctx := context.Background()

	// Nominal policy none, but nothing is replayed when IncludeInContext
	// is off, so the count discounts everything.
	excluded := llm.DefaultReasoningSettings()
	excluded.IncludeInContext = false
	excluded.StripFromContext = llm.StripNone

	allStripped := llm.DefaultReasoningSettings()
	allStripped.IncludeInContext = true
	allStripped.StripFromContext = llm.StripAll

	a, err := m.EffectiveTokenCount(ctx, turns, excluded)
	require.NoError(t, err)
	b, err := m.EffectiveTokenCount(ctx, turns, allStripped)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestEffectiveTokenCount_NeverNegative(t *testing.T) {
	// A store whose raw total is smaller than the thinking estimate.
	turns := []llm.Turn{reasoningTurn("reasoning", "")}
	store := seedStore(t, turns)
	m := NewManager(store, nil)

	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = false

	effective, err := m.EffectiveTokenCount(context.Background(), turns, set)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, effective, 0)
}

type failingStore struct{ history.Store }

func (failingStore) RawTokenCount(context.Context) (int, error) {
	return 0, errors.New("backend down")
}

func TestEffectiveTokenCount_StoreFailureIsFatal(t *testing.T) {
	m := NewManager(failingStore{}, nil)
	_, err := m.EffectiveTokenCount(context.Background(), nil, llm.DefaultReasoningSettings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw token count unavailable")
}

func TestShouldCompress(t *testing.T) {
	turns := []llm.Turn{reasoningTurn("reasoning", "answer")}
	store := seedStore(t, turns)
	m := NewManager(store, nil)
	ctx := context.Background()

	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = true

	effective, err := m.EffectiveTokenCount(ctx, turns, set)
	require.NoError(t, err)

	compress, err := m.ShouldCompress(ctx, turns, set, 0, effective+1)
	require.NoError(t, err)
	assert.False(t, compress)

	compress, err = m.ShouldCompress(ctx, turns, set, 1, effective+1)
	require.NoError(t, err)
	assert.True(t, compress, "pending estimate counts toward the threshold")

	compress, err = m.ShouldCompress(ctx, turns, set, 0, effective)
	require.NoError(t, err)
	assert.True(t, compress, "threshold is inclusive")
}

func TestShouldCompress_SameCountAsDisplay(t *testing.T) {
	// The compression decision must be built on EffectiveTokenCount, not a
	// parallel computation: equal inputs give an exactly consistent verdict.
	turns := []llm.Turn{
		reasoningTurn("deliberation one", "a"),
		reasoningTurn("deliberation two", "b"),
	}
	store := seedStore(t, turns)
	m := NewManager(store, nil)
	ctx := context.Background()

	set := llm.DefaultReasoningSettings()
	set.IncludeInContext = true
	set.StripFromContext = llm.StripAllButLast

	effective, err := m.EffectiveTokenCount(ctx, turns, set)
	require.NoError(t, err)

	atThreshold, err := m.ShouldCompress(ctx, turns, set, 0, effective)
	require.NoError(t, err)
	belowThreshold, err := m.ShouldCompress(ctx, turns, set, 0, effective+1)
	require.NoError(t, err)
	assert.True(t, atThreshold)
	assert.False(t, belowThreshold)
}

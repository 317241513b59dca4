package reasoning

import (
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/chatflow/llm"
)

// ExtractThinking returns the turn's thinking blocks in their original
// order. A turn without thinking yields an empty result, never an error.
func ExtractThinking(turn llm.Turn) []llm.ThinkingBlock {
	var out []llm.ThinkingBlock
	for _, b := range turn.Blocks {
		if tb, ok := b.(llm.ThinkingBlock); ok {
			out = append(out, tb)
		}
	}
	return out
}

// FilterForContext applies the strip policy to a conversation before it is
// replayed to a provider:
//
//   - StripNone keeps every block.
//   - StripAll removes thinking blocks from every turn.
//   - StripAllButLast keeps thinking only on the last turn that has any;
//     when no turn has thinking the input is returned as-is (there is no
//     "last" to preserve, so nothing is stripped).
//
// The result is always a deep copy; the input and its turns are never
// mutated. The function is idempotent for every policy.
func FilterForContext(turns []llm.Turn, policy llm.StripPolicy) []llm.Turn {
	switch policy {
	case llm.StripAll:
		out := make([]llm.Turn, len(turns))
		for i, t := range turns {
			out[i] = stripThinking(t)
		}
		return out
	case llm.StripAllButLast:
		keep := lastThinkingIndex(turns)
		if keep < 0 {
			return llm.CloneTurns(turns)
		}
		out := make([]llm.Turn, len(turns))
		for i, t := range turns {
			if i == keep {
				out[i] = t.Clone()
			} else {
				out[i] = stripThinking(t)
			}
		}
		return out
	default:
		return llm.CloneTurns(turns)
	}
}

// JoinThinking collapses the blocks' thoughts into one newline-joined
// string, in original order, for replay through a single provider-side
// field. The second return is false for empty input, which callers map to
// omitting the field entirely.
func JoinThinking(blocks []llm.ThinkingBlock) (string, bool) {
	if len(blocks) == 0 {
		return "", false
	}
	thoughts := make([]string, len(blocks))
	for i, b := range blocks {
		thoughts[i] = b.Thought
	}
	return strings.Join(thoughts, "\n"), true
}

// EstimateThinkingTokens estimates the token weight of the blocks' thoughts.
// The estimate is zero for empty input and grows monotonically with total
// thought length (roughly one token per four characters). The budget
// manager relies on this monotonicity, not on the exact constant.
func EstimateThinkingTokens(blocks []llm.ThinkingBlock) int {
	chars := 0
	for _, b := range blocks {
		chars += utf8.RuneCountInString(b.Thought)
	}
	if chars == 0 {
		return 0
	}
	return (chars + 3) / 4
}

// stripThinking returns a copy of the turn with thinking blocks removed and
// all other blocks preserved in order.
func stripThinking(t llm.Turn) llm.Turn {
	clone := t.Clone()
	blocks := make([]llm.Block, 0, len(clone.Blocks))
	for _, b := range clone.Blocks {
		if _, ok := b.(llm.ThinkingBlock); ok {
			continue
		}
		blocks = append(blocks, b)
	}
	clone.Blocks = blocks
	return clone
}

// lastThinkingIndex finds the last turn containing at least one thinking
// block, or -1 when none does.
func lastThinkingIndex(turns []llm.Turn) int {
	for i := len(turns) - 1; i >= 0; i-- {
		for _, b := range turns[i].Blocks {
			if _, ok := b.(llm.ThinkingBlock); ok {
				return i
			}
		}
	}
	return -1
}

package memory

import (
	"sort"

	"github.com/fyrsmithlabs/advisord/internal/session"
)

// CompressionResult reports what a strategy kept and what it saved.
type CompressionResult struct {
	// Turns is the kept subset in chronological order.
	Turns []session.Turn

	// OriginalTokens and CompressedTokens measure the reduction.
	OriginalTokens   int
	CompressedTokens int
}

// TokensSaved returns the token reduction achieved.
func (r CompressionResult) TokensSaved() int {
	return r.OriginalTokens - r.CompressedTokens
}

// Compressor trims a turn window to fit a token budget before it is
// rendered into an LLM prompt. Compression never feeds long-term
// promotion; it only shapes the prompt context.
type Compressor interface {
	Compress(turns []session.Turn, budget int) CompressionResult
}

// TruncationStrategy keeps the most recent turns that fit the budget,
// scanning from newest backward and stopping at the first turn that
// would exceed it.
type TruncationStrategy struct {
	Counter TokenCounter
}

func (s TruncationStrategy) Compress(turns []session.Turn, budget int) CompressionResult {
	result := CompressionResult{}
	for _, t := range turns {
		result.OriginalTokens += s.Counter.Count(t.Content)
	}

	used := 0
	cut := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := s.Counter.Count(turns[i].Content)
		if used+cost > budget {
			break
		}
		used += cost
		cut = i
	}

	result.Turns = append(result.Turns, turns[cut:]...)
	result.CompressedTokens = used
	return result
}

// PriorityStrategy scores every turn, admits the highest scorers that
// fit the budget, then restores chronological order so the kept window
// still reads as a conversation.
type PriorityStrategy struct {
	Counter TokenCounter
	Scorer  *Scorer
}

func (s PriorityStrategy) Compress(turns []session.Turn, budget int) CompressionResult {
	result := CompressionResult{}
	for _, t := range turns {
		result.OriginalTokens += s.Counter.Count(t.Content)
	}

	type scored struct {
		index int
		score float64
		cost  int
	}
	candidates := make([]scored, len(turns))
	for i, t := range turns {
		candidates[i] = scored{
			index: i,
			score: s.Scorer.Score(t, i, len(turns)),
			cost:  s.Counter.Count(t.Content),
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	used := 0
	var admitted []int
	for _, c := range candidates {
		if used+c.cost > budget {
			continue
		}
		used += c.cost
		admitted = append(admitted, c.index)
	}

	sort.Ints(admitted)
	for _, idx := range admitted {
		result.Turns = append(result.Turns, turns[idx])
	}
	result.CompressedTokens = used
	return result
}

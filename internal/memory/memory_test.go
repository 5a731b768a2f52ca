package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/advisord/internal/config"
	"github.com/fyrsmithlabs/advisord/internal/session"
)

// staticCounter is a deterministic counter: whitespace-split word
// count, so budget arithmetic in tests is exact.
type staticCounter struct{}

func (staticCounter) Count(text string) int {
	n := 0
	inWord := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case ' ', '\t', '\n':
			inWord = false
		default:
			if !inWord {
				n++
				inWord = true
			}
		}
	}
	return n
}

func makeTurns(contents ...string) []session.Turn {
	turns := make([]session.Turn, len(contents))
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, c := range contents {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		turns[i] = session.Turn{Role: role, Content: c, Timestamp: base.Add(time.Duration(i) * time.Minute)}
	}
	return turns
}

func TestScorer_RoleAndKeywords(t *testing.T) {
	scorer := NewScorer(nil)

	user := session.Turn{Role: session.RoleUser, Content: "I am interested in databases"}
	asst := session.Turn{Role: session.RoleAssistant, Content: "I am interested in databases"}

	// Same content and position: the user turn must outrank the
	// assistant turn.
	assert.Greater(t, scorer.Score(user, 0, 2), scorer.Score(asst, 0, 2))

	plain := session.Turn{Role: session.RoleUser, Content: "tell me more about it"}
	keyworded := session.Turn{Role: session.RoleUser, Content: "what is the prerequisite for it"}
	assert.Greater(t, scorer.Score(keyworded, 0, 2), scorer.Score(plain, 0, 2))
}

func TestScorer_RecencyMonotonic(t *testing.T) {
	scorer := NewScorer(nil)
	turn := session.Turn{Role: session.RoleUser, Content: "same text every time"}

	early := scorer.Score(turn, 0, 10)
	late := scorer.Score(turn, 9, 10)
	assert.Greater(t, late, early)
}

func TestScorer_Bounds(t *testing.T) {
	scorer := NewScorer(nil)
	turn := session.Turn{
		Role:    session.RoleUser,
		Content: strings.Repeat("prerequisite goal major semester deadline ", 50),
	}
	score := scorer.Score(turn, 9, 10)
	assert.LessOrEqual(t, score, 1.0)
	assert.Greater(t, score, 0.9)
}

func TestCountTrigger(t *testing.T) {
	trigger := CountTrigger{Threshold: 5}
	state := &session.State{}

	for i := 0; i < 4; i++ {
		state.AppendTurn(session.RoleUser, "msg")
	}
	assert.False(t, trigger.ShouldExtract(state))

	state.AppendTurn(session.RoleUser, "msg")
	assert.True(t, trigger.ShouldExtract(state))
}

func TestTokenBudgetTrigger(t *testing.T) {
	trigger := TokenBudgetTrigger{Budget: 5, Counter: staticCounter{}}
	state := &session.State{}

	state.AppendTurn(session.RoleUser, "three word turn")
	assert.False(t, trigger.ShouldExtract(state))

	state.AppendTurn(session.RoleAssistant, "another three word turn here")
	assert.True(t, trigger.ShouldExtract(state))
}

func TestTruncation_KeepsNewestWithinBudget(t *testing.T) {
	strategy := TruncationStrategy{Counter: staticCounter{}}
	turns := makeTurns(
		"one two three four", // 4 tokens
		"five six seven",     // 3 tokens
		"eight nine",         // 2 tokens
		"ten",                // 1 token
	)

	result := strategy.Compress(turns, 4)
	require.Len(t, result.Turns, 2)
	assert.Equal(t, "eight nine", result.Turns[0].Content)
	assert.Equal(t, "ten", result.Turns[1].Content)
	assert.Equal(t, 10, result.OriginalTokens)
	assert.Equal(t, 3, result.CompressedTokens)
}

func TestTruncation_StopsAtFirstOverflow(t *testing.T) {
	strategy := TruncationStrategy{Counter: staticCounter{}}
	turns := makeTurns(
		"tiny",
		"a very long turn with many many tokens inside it", // 10 tokens
		"last",
	)

	// Budget fits "last" but not the long middle turn; the scan stops
	// there even though "tiny" alone would fit.
	result := strategy.Compress(turns, 3)
	require.Len(t, result.Turns, 1)
	assert.Equal(t, "last", result.Turns[0].Content)
}

func TestPriority_KeepsHighScorersChronological(t *testing.T) {
	strategy := PriorityStrategy{Counter: staticCounter{}, Scorer: NewScorer(nil)}
	turns := makeTurns(
		"I am interested in the prerequisite chain for my major", // user, keywords
		"ok",
		"filler chit chat with no substance at all whatsoever",
		"what assignment deadline applies this semester", // user, keywords
	)

	result := strategy.Compress(turns, 16)
	require.NotEmpty(t, result.Turns)

	// Admitted turns must come back in original chronological order.
	for i := 1; i < len(result.Turns); i++ {
		assert.True(t, result.Turns[i-1].Timestamp.Before(result.Turns[i].Timestamp))
	}
	assert.Equal(t, "I am interested in the prerequisite chain for my major", result.Turns[0].Content)
}

func TestCompression_IdempotentUnderSufficientBudget(t *testing.T) {
	turns := makeTurns(
		"I want to plan my semester",
		"sure, what are you interested in",
		"databases and operating systems",
	)
	total := 0
	for _, turn := range turns {
		total += staticCounter{}.Count(turn.Content)
	}

	strategies := map[string]Compressor{
		"truncation": TruncationStrategy{Counter: staticCounter{}},
		"priority":   PriorityStrategy{Counter: staticCounter{}, Scorer: NewScorer(nil)},
	}

	for name, strategy := range strategies {
		t.Run(name, func(t *testing.T) {
			result := strategy.Compress(turns, total)
			require.Len(t, result.Turns, len(turns))
			for i := range turns {
				assert.Equal(t, turns[i].Content, result.Turns[i].Content)
			}
			assert.Zero(t, result.TokensSaved())
		})
	}
}

func TestManager_ExtractPromotesAndShrinksWindow(t *testing.T) {
	mgr := NewManager(config.MemoryConfig{
		ExtractionThreshold: 5,
		MinImportance:       0.6,
	}, nil)

	state := &session.State{ID: "s1", UserID: "alice"}
	conversation := []string{
		"hi",
		"hello, how can I help you plan your courses?",
		"I am majoring in computer science",
		"noted",
		"what are the prerequisites for the databases course?",
		"the databases course requires data structures first",
		"ok",
		"anything else?",
		"my goal is to graduate next year, I prefer morning classes",
		"got it, I will remember your preference for morning classes",
	}
	for i, msg := range conversation {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		mgr.AddTurn(state, role, msg)
	}

	require.True(t, mgr.ShouldExtract(state))

	promoted := mgr.Extract(context.Background(), state)
	require.NotEmpty(t, promoted)
	for _, p := range promoted {
		assert.GreaterOrEqual(t, p.Importance, 0.6)
	}

	// Promoted turns leave the window; re-querying shows the reduced set.
	assert.Len(t, state.Turns, len(conversation)-len(promoted))
	assert.Zero(t, state.TurnsSinceExtraction)

	// The goal/preference turn must be among the promoted ones.
	var sawGoal bool
	for _, p := range promoted {
		if strings.Contains(p.Content, "graduate next year") {
			sawGoal = true
			assert.Contains(t, []Kind{KindGoal, KindPreference}, p.Kind)
		}
	}
	assert.True(t, sawGoal, "high-importance goal turn should be promoted")
}

func TestManager_ContextWindowHonorsBudget(t *testing.T) {
	mgr := NewManager(config.MemoryConfig{
		ExtractionThreshold: 100,
		MinImportance:       0.6,
		ContextTokenBudget:  2000,
		CompressionStrategy: "truncation",
	}, nil)

	state := &session.State{ID: "s1", UserID: "alice"}
	for i := 0; i < 3; i++ {
		mgr.AddTurn(state, session.RoleUser, "a short message")
	}

	window := mgr.ContextWindow(state)
	assert.Len(t, window, 3)
}

func TestClassifyKind(t *testing.T) {
	tests := []struct {
		content string
		role    session.Role
		want    Kind
	}{
		{"I prefer evening lectures", session.RoleUser, KindPreference},
		{"my goal is a research career", session.RoleUser, KindGoal},
		{"the course covers B+ trees", session.RoleAssistant, KindEpisodic},
		{"I took calculus last year", session.RoleUser, KindSemantic},
	}
	for _, tt := range tests {
		got := classifyKind(session.Turn{Role: tt.role, Content: tt.content})
		assert.Equal(t, tt.want, got, tt.content)
	}
}

package memory

import (
	"time"

	"github.com/fyrsmithlabs/advisord/internal/session"
)

// Trigger decides when working memory is ready for extraction.
//
// Triggers are strategy objects: the manager evaluates whichever policy
// it was built with, so alternative policies slot in without touching
// the manager.
type Trigger interface {
	ShouldExtract(state *session.State) bool
}

// CountTrigger fires once a threshold of turns has accumulated since
// the last extraction.
type CountTrigger struct {
	Threshold int
}

func (t CountTrigger) ShouldExtract(state *session.State) bool {
	return state.TurnsSinceExtraction >= t.Threshold
}

// TokenBudgetTrigger fires once the un-extracted turns exceed a token
// budget.
type TokenBudgetTrigger struct {
	Budget  int
	Counter TokenCounter
}

func (t TokenBudgetTrigger) ShouldExtract(state *session.State) bool {
	start := len(state.Turns) - state.TurnsSinceExtraction
	if start < 0 {
		start = 0
	}
	total := 0
	for _, turn := range state.Turns[start:] {
		total += t.Counter.Count(turn.Content)
		if total > t.Budget {
			return true
		}
	}
	return false
}

// AgeTrigger fires when the oldest un-extracted turn is older than
// MaxAge.
type AgeTrigger struct {
	MaxAge time.Duration
}

func (t AgeTrigger) ShouldExtract(state *session.State) bool {
	if state.TurnsSinceExtraction == 0 {
		return false
	}
	start := len(state.Turns) - state.TurnsSinceExtraction
	if start < 0 {
		start = 0
	}
	return timeNow().Sub(state.Turns[start].Timestamp) >= t.MaxAge
}

// timeNow is overridable for tests.
var timeNow = time.Now

package memory

import (
	"strings"

	"github.com/fyrsmithlabs/advisord/internal/session"
)

// Scoring weights. Recency, length and role sum to at most 0.9; keyword
// hits can push a turn over the promotion threshold.
const (
	recencyWeight = 0.35
	lengthWeight  = 0.25
	lengthCeiling = 240 // characters at which the length term saturates

	userRoleScore      = 0.30
	assistantRoleScore = 0.10

	keywordIncrement = 0.10
	keywordCap       = 0.30
)

// defaultKeywords are domain terms whose presence marks a turn as worth
// remembering. Overridable via configuration.
var defaultKeywords = []string{
	"prerequisite", "prefer", "interested", "goal", "major",
	"graduate", "semester", "syllabus", "assignment", "deadline",
}

// Scorer computes importance scores (0-1) for conversation turns.
//
// A score is a weighted sum of recency (later turns score higher),
// length (capped), role (user turns over assistant turns) and matches
// against a fixed keyword list.
type Scorer struct {
	keywords []string
}

// NewScorer builds a scorer. Empty keywords selects the defaults.
func NewScorer(keywords []string) *Scorer {
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return &Scorer{keywords: lowered}
}

// Score computes the importance of the turn at position index within a
// window of total turns.
func (s *Scorer) Score(turn session.Turn, index, total int) float64 {
	score := 0.0

	// Recency: linear in position, the last turn gets full weight.
	if total > 1 {
		score += recencyWeight * float64(index) / float64(total-1)
	} else {
		score += recencyWeight
	}

	// Length: longer turns carry more information, up to a ceiling.
	length := len(turn.Content)
	if length > lengthCeiling {
		length = lengthCeiling
	}
	score += lengthWeight * float64(length) / float64(lengthCeiling)

	// Role: user turns encode stated intent.
	if turn.Role == session.RoleUser {
		score += userRoleScore
	} else {
		score += assistantRoleScore
	}

	// Keywords: fixed increment per matched term, capped.
	lower := strings.ToLower(turn.Content)
	bonus := 0.0
	for _, kw := range s.keywords {
		if strings.Contains(lower, kw) {
			bonus += keywordIncrement
			if bonus >= keywordCap {
				bonus = keywordCap
				break
			}
		}
	}
	score += bonus

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Tags returns the keywords present in the turn, used as topic tags on
// promoted memories.
func (s *Scorer) Tags(turn session.Turn) []string {
	lower := strings.ToLower(turn.Content)
	var tags []string
	for _, kw := range s.keywords {
		if strings.Contains(lower, kw) {
			tags = append(tags, kw)
		}
	}
	return tags
}

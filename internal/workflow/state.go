package workflow

import (
	"github.com/fyrsmithlabs/advisord/internal/longterm"
	"github.com/fyrsmithlabs/advisord/internal/react"
)

// Intent is the coarse classification routing a query through the
// workflow.
type Intent string

const (
	IntentGeneral            Intent = "GENERAL"
	IntentPrerequisites      Intent = "PREREQUISITES"
	IntentSyllabusObjectives Intent = "SYLLABUS_OBJECTIVES"
	IntentAssignments        Intent = "ASSIGNMENTS"
	IntentGreeting           Intent = "GREETING"
)

// ParseIntent maps a label to an Intent, defaulting to GENERAL for
// anything unrecognized.
func ParseIntent(label string) Intent {
	switch Intent(label) {
	case IntentPrerequisites, IntentSyllabusObjectives, IntentAssignments, IntentGreeting, IntentGeneral:
		return Intent(label)
	default:
		return IntentGeneral
	}
}

// Evidence is one retrieved record supporting an answer.
type Evidence struct {
	// Content is the retrieved text.
	Content string

	// Source names where the evidence came from (catalog, cache,
	// reasoning, memory).
	Source string

	// Score is the retrieval relevance (0-1).
	Score float32
}

// Verdict is the quality gate's judgment of accumulated evidence.
type Verdict struct {
	Sufficient bool   `json:"sufficient"`
	Rationale  string `json:"rationale"`
}

// State is the single mutable record threaded through one workflow
// run. The orchestrator owns it and mutates it strictly sequentially;
// it is never shared across runs, so it carries no locks.
type State struct {
	// Inputs.
	Query     string
	SessionID string
	UserID    string

	// Path records node names in execution order, append-only.
	Path []string

	// Derived along the run.
	Intent     Intent
	Entities   map[string]string
	SubQueries []string
	Evidence   []Evidence
	Verdict    Verdict
	Answer     string

	// CacheHit marks that the answer came from the semantic cache.
	CacheHit bool

	// ResearchRounds counts research node visits, checked against the
	// cap before each quality-gated re-entry.
	ResearchRounds int

	// Memories are the user's long-term records loaded at start.
	Memories []longterm.Record

	// Steps is the reasoning trace when the loop ran.
	Steps []react.Step

	// Metrics holds per-node elapsed milliseconds plus counters.
	Metrics map[string]float64
}

// newState initializes a run's state.
func newState(query, sessionID, userID string) *State {
	return &State{
		Query:     query,
		SessionID: sessionID,
		UserID:    userID,
		Metrics:   make(map[string]float64),
	}
}

// visit appends a node to the execution path.
func (s *State) visit(node string) {
	s.Path = append(s.Path, node)
}

// Visited counts how many times node appears in the path.
func (s *State) Visited(node string) int {
	n := 0
	for _, p := range s.Path {
		if p == node {
			n++
		}
	}
	return n
}

// Outcome is what a workflow run hands back to the caller. There is
// always an Answer, whatever happened inside the run.
type Outcome struct {
	Answer   string
	Intent   Intent
	Path     []string
	CacheHit bool
	Steps    []react.Step
	Metrics  map[string]float64

	// Failed marks a run that degraded to the error answer.
	Failed bool
}

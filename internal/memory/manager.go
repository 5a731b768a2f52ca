// Package memory implements the working-memory layer: turn
// accumulation, importance-scored extraction of long-term candidates,
// and token-budget compression of prompt context.
package memory

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/config"
	"github.com/fyrsmithlabs/advisord/internal/session"
)

var tracer = otel.Tracer("advisord.memory")

// Kind classifies what a promoted memory represents.
type Kind string

const (
	KindSemantic   Kind = "semantic"
	KindEpisodic   Kind = "episodic"
	KindPreference Kind = "preference"
	KindGoal       Kind = "goal"
)

// Extracted is a working-memory turn promoted for long-term storage.
type Extracted struct {
	Content    string
	Role       session.Role
	Kind       Kind
	Tags       []string
	Importance float64
	Timestamp  time.Time
}

// Manager owns one session's working memory policy: when to extract,
// what scores high enough to keep, and how to trim context for prompts.
//
// The manager holds no session state itself; all state lives in the
// session.State passed to each call, so one manager serves every
// concurrent session.
type Manager struct {
	trigger       Trigger
	scorer        *Scorer
	counter       TokenCounter
	compressor    Compressor
	minImportance float64
	contextBudget int
	logger        *zap.Logger
}

// NewManager builds a manager from configuration.
func NewManager(cfg config.MemoryConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	counter := NewTokenCounter(logger)
	scorer := NewScorer(cfg.Keywords)

	var compressor Compressor
	switch cfg.CompressionStrategy {
	case "truncation":
		compressor = TruncationStrategy{Counter: counter}
	default:
		compressor = PriorityStrategy{Counter: counter, Scorer: scorer}
	}

	return &Manager{
		trigger:       CountTrigger{Threshold: cfg.ExtractionThreshold},
		scorer:        scorer,
		counter:       counter,
		compressor:    compressor,
		minImportance: cfg.MinImportance,
		contextBudget: cfg.ContextTokenBudget,
		logger:        logger,
	}
}

// WithTrigger replaces the extraction trigger policy.
func (m *Manager) WithTrigger(t Trigger) *Manager {
	m.trigger = t
	return m
}

// AddTurn appends a turn to the session's working memory.
func (m *Manager) AddTurn(state *session.State, role session.Role, content string) {
	state.AppendTurn(role, content)
}

// ShouldExtract reports whether the configured trigger has fired.
func (m *Manager) ShouldExtract(state *session.State) bool {
	return m.trigger.ShouldExtract(state)
}

// Extract scores every turn in the working window and promotes those
// at or above the minimum importance. Promoted turns are removed from
// the window; turns below the threshold stay but are not re-promoted
// later. Extraction is single-shot per trigger firing.
func (m *Manager) Extract(ctx context.Context, state *session.State) []Extracted {
	_, span := tracer.Start(ctx, "Manager.Extract")
	defer span.End()

	total := len(state.Turns)
	span.SetAttributes(
		attribute.Int("window_size", total),
		attribute.Float64("min_importance", m.minImportance),
	)

	var promoted []Extracted
	var remaining []session.Turn

	for i, turn := range state.Turns {
		score := m.scorer.Score(turn, i, total)
		if score < m.minImportance {
			remaining = append(remaining, turn)
			continue
		}
		promoted = append(promoted, Extracted{
			Content:    turn.Content,
			Role:       turn.Role,
			Kind:       classifyKind(turn),
			Tags:       m.scorer.Tags(turn),
			Importance: score,
			Timestamp:  turn.Timestamp,
		})
	}

	state.Turns = remaining
	state.TurnsSinceExtraction = 0

	span.SetAttributes(attribute.Int("promoted", len(promoted)))
	m.logger.Debug("extracted working memory",
		zap.String("session_id", state.ID),
		zap.Int("window_size", total),
		zap.Int("promoted", len(promoted)),
	)
	return promoted
}

// ContextWindow returns the session's turns compressed to the
// configured token budget, chronologically ordered.
func (m *Manager) ContextWindow(state *session.State) []session.Turn {
	if m.contextBudget <= 0 {
		return state.Turns
	}
	result := m.compressor.Compress(state.Turns, m.contextBudget)
	if result.TokensSaved() > 0 {
		m.logger.Debug("compressed context window",
			zap.String("session_id", state.ID),
			zap.Int("original_tokens", result.OriginalTokens),
			zap.Int("compressed_tokens", result.CompressedTokens),
		)
	}
	return result.Turns
}

// classifyKind maps a turn onto a memory kind by surface cues. Stated
// preferences and goals outrank the generic kinds.
func classifyKind(turn session.Turn) Kind {
	lower := strings.ToLower(turn.Content)
	switch {
	case strings.Contains(lower, "prefer") || strings.Contains(lower, "favorite") ||
		strings.Contains(lower, "like to") || strings.Contains(lower, "interested in"):
		return KindPreference
	case strings.Contains(lower, "goal") || strings.Contains(lower, "plan to") ||
		strings.Contains(lower, "want to") || strings.Contains(lower, "graduate"):
		return KindGoal
	case turn.Role == session.RoleAssistant:
		return KindEpisodic
	default:
		return KindSemantic
	}
}

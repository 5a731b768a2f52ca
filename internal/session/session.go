// Package session manages per-conversation state.
//
// A session is the working context of one conversation: the identifier,
// the owning user, and the ordered turn log. Session stores are
// key-value backends keyed by session ID; the in-process store suits a
// single advisor instance, Redis suits shared deployments.
package session

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for session operations.
var (
	// ErrSessionNotFound is returned when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSession indicates a session with missing required fields.
	ErrInvalidSession = errors.New("invalid session")
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the mutable working state of one conversation.
//
// Turns are ordered oldest first. TurnsSinceExtraction counts turns
// appended since the last long-term memory extraction; the memory
// manager resets it after each extraction.
type State struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TurnsSinceExtraction int `json:"turns_since_extraction"`
}

// AppendTurn adds a turn to the log and updates the counters.
func (s *State) AppendTurn(role Role, content string) {
	now := timeNow()
	s.Turns = append(s.Turns, Turn{Role: role, Content: content, Timestamp: now})
	s.UpdatedAt = now
	s.TurnsSinceExtraction++
}

// Validate checks required fields.
func (s *State) Validate() error {
	if s.ID == "" {
		return errors.New("session ID is required")
	}
	if s.UserID == "" {
		return errors.New("user ID is required")
	}
	return nil
}

// timeNow is overridable for tests.
var timeNow = time.Now

// Store persists conversation state between requests.
//
// Implementations:
//   - MemoryStore: in-process (default)
//   - RedisStore: shared Redis backend
type Store interface {
	// GetOrCreate returns the session for sessionID, creating an empty
	// one bound to userID if none exists. Loading an existing session
	// is idempotent: repeated calls return the same state.
	GetOrCreate(ctx context.Context, sessionID, userID string) (*State, error)

	// Get returns an existing session or ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*State, error)

	// Put saves the session, replacing any previous state and
	// refreshing its TTL.
	Put(ctx context.Context, state *State) error

	// Delete removes a session. Deleting a missing session is a no-op.
	Delete(ctx context.Context, sessionID string) error

	// Close releases backend resources.
	Close() error
}

// newState builds an empty session.
func newState(sessionID, userID string) *State {
	now := timeNow()
	return &State{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

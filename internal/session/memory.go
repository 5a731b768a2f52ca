package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// MemoryStore is an in-process session store with TTL eviction.
//
// State is stored serialized so callers get an independent copy on
// every Get, the same as a networked backend would give them.
type MemoryStore struct {
	cache  *gocache.Cache
	logger *zap.Logger

	// mu serializes GetOrCreate so two concurrent callers cannot both
	// create the same session.
	mu sync.Mutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-process store. Sessions idle past ttl
// are evicted; ttl <= 0 disables eviction.
func NewMemoryStore(ttl time.Duration, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryStore{
		cache:  gocache.New(ttl, 10*time.Minute),
		logger: logger,
	}
}

// GetOrCreate returns the session for sessionID, creating it if needed.
func (s *MemoryStore) GetOrCreate(ctx context.Context, sessionID, userID string) (*State, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session ID is required", ErrInvalidSession)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrInvalidSession)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.get(sessionID)
	if err == nil {
		return state, nil
	}

	state = newState(sessionID, userID)
	if err := s.put(state); err != nil {
		return nil, err
	}

	s.logger.Debug("created session",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
	)
	return state, nil
}

// Get returns an existing session or ErrSessionNotFound.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(sessionID)
}

// Put saves the session and refreshes its TTL.
func (s *MemoryStore) Put(ctx context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidSession)
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(state)
}

// Delete removes a session. Missing sessions are a no-op.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(sessionID)
	return nil
}

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) get(sessionID string) (*State, error) {
	raw, ok := s.cache.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	data, ok := raw.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected cache entry type", ErrInvalidSession)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", sessionID, err)
	}
	return &state, nil
}

func (s *MemoryStore) put(state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", state.ID, err)
	}
	s.cache.Set(state.ID, data, gocache.DefaultExpiration)
	return nil
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore persists sessions in Redis so multiple advisor instances
// can share conversations. Keys are "session:{id}" with JSON values and
// a TTL refreshed on every write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ Store = (*RedisStore)(nil)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection with a
// ping before returning.
func NewRedisStore(opts RedisOptions, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}

	logger.Info("redis session store initialized",
		zap.String("addr", opts.Addr),
		zap.Duration("ttl", ttl),
	)

	return &RedisStore{client: client, ttl: ttl, logger: logger}, nil
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

// GetOrCreate returns the session for sessionID, creating it if needed.
//
// Creation uses SETNX so two instances racing on the same new session
// ID agree on a single initial state.
func (s *RedisStore) GetOrCreate(ctx context.Context, sessionID, userID string) (*State, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session ID is required", ErrInvalidSession)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrInvalidSession)
	}

	state, err := s.Get(ctx, sessionID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	state = newState(sessionID, userID)
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding session %s: %w", sessionID, err)
	}

	created, err := s.client.SetNX(ctx, sessionKey(sessionID), data, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("creating session %s: %w", sessionID, err)
	}
	if !created {
		// Lost the race; read the winner's state.
		return s.Get(ctx, sessionID)
	}

	s.logger.Debug("created session",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
	)
	return state, nil
}

// Get returns an existing session or ErrSessionNotFound.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*State, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("reading session %s: %w", sessionID, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", sessionID, err)
	}
	return &state, nil
}

// Put saves the session and refreshes its TTL.
func (s *RedisStore) Put(ctx context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidSession)
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", state.ID, err)
	}
	if err := s.client.Set(ctx, sessionKey(state.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing session %s: %w", state.ID, err)
	}
	return nil
}

// Delete removes a session. Missing sessions are a no-op.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

package session

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/config"
)

// New constructs a Store for the configured provider.
func New(cfg config.SessionConfig, logger *zap.Logger) (Store, error) {
	ttl := time.Duration(cfg.TTL)
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryStore(ttl, logger), nil
	case "redis":
		return NewRedisStore(RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password.Value(),
			DB:       cfg.Redis.DB,
		}, ttl, logger)
	default:
		return nil, fmt.Errorf("unknown session provider %q", cfg.Provider)
	}
}

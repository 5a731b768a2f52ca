// Package logging provides structured logging for advisord.
//
// It builds a zap logger from config and carries correlation data
// (session id, user id, request id, trace context) through
// context.Context so every component logs consistent fields.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/advisord/internal/config"
)

// New creates a zap logger from the logging config.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	case "json", "":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("unknown log format: %q", cfg.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(stderr())), level)
	return zap.New(core), nil
}

// NewNop returns a logger that discards everything. Useful in tests
// and as the fallback when constructors receive a nil logger.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

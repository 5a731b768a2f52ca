package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/advisord/internal/config"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()

	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithUserID(ctx, "user-9")
	ctx = WithRequestID(ctx, "req-42")

	assert.Equal(t, "sess-1", SessionIDFromContext(ctx))
	assert.Equal(t, "user-9", UserIDFromContext(ctx))
	assert.Equal(t, "req-42", RequestIDFromContext(ctx))
}

func TestContextFields(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess-1")
	fields := ContextFields(ctx)

	require.Len(t, fields, 1)
	assert.Equal(t, "session.id", fields[0].Key)
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{"json info", config.LoggingConfig{Level: "info", Format: "json"}, false},
		{"console debug", config.LoggingConfig{Level: "debug", Format: "console"}, false},
		{"bad level", config.LoggingConfig{Level: "verbose", Format: "json"}, true},
		{"bad format", config.LoggingConfig{Level: "info", Format: "logfmt"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

package longterm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/embeddings"
	"github.com/fyrsmithlabs/advisord/internal/memory"
	"github.com/fyrsmithlabs/advisord/internal/vectorstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		InMemory:   true,
		VectorSize: 32,
	}, &embeddings.StubEmbedder{Dim: 32}, zap.NewNop())
	require.NoError(t, err)

	svc, err := NewService(store, "advisord", zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestService_SaveAndSearch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	records := []Record{
		{UserID: "alice", Content: "prefers morning classes", Kind: memory.KindPreference, Importance: 0.8},
		{UserID: "alice", Content: "wants to graduate next spring", Kind: memory.KindGoal, Importance: 0.9},
		{UserID: "bob", Content: "prefers morning classes", Kind: memory.KindPreference, Importance: 0.7},
	}
	require.NoError(t, svc.Save(ctx, records))

	// IDs are assigned on save.
	for _, r := range records {
		assert.NotEmpty(t, r.ID)
	}

	results, err := svc.Search(ctx, "alice", "morning classes preference", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Only alice's memories come back.
	for _, r := range results {
		assert.Equal(t, "alice", r.UserID)
	}
	assert.Equal(t, "prefers morning classes", results[0].Content)
	assert.Equal(t, memory.KindPreference, results[0].Kind)
	assert.InDelta(t, 0.8, results[0].Importance, 0.001)
}

func TestService_SearchEmptyStore(t *testing.T) {
	svc := newTestService(t)

	results, err := svc.Search(context.Background(), "alice", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.Save(ctx, []Record{{UserID: "", Content: "x"}})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	err = svc.Save(ctx, []Record{{UserID: "alice", Content: "   "}})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = svc.Search(ctx, "", "query", 5)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	// Saving nothing is a no-op.
	assert.NoError(t, svc.Save(ctx, nil))
}

func TestService_Clear(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, []Record{
		{UserID: "alice", Content: "fact one about alice"},
		{UserID: "alice", Content: "fact two about alice"},
		{UserID: "bob", Content: "fact about bob"},
	}))

	require.NoError(t, svc.Clear(ctx, "alice"))

	results, err := svc.Search(ctx, "alice", "fact", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Bob's memories survive.
	results, err = svc.Search(ctx, "bob", "fact", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestFromExtracted(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	extracted := []memory.Extracted{
		{Content: "prefers small seminars", Kind: memory.KindPreference, Tags: []string{"prefer"}, Importance: 0.75, Timestamp: ts},
	}

	records := FromExtracted("alice", extracted)
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].UserID)
	assert.Equal(t, memory.KindPreference, records[0].Kind)
	assert.Equal(t, ts, records[0].CreatedAt)
}

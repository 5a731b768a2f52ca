package semcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/embeddings"
	"github.com/fyrsmithlabs/advisord/internal/vectorstore"
)

func newTestCache(t *testing.T, threshold float64) *Cache {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		InMemory:   true,
		VectorSize: 64,
	}, &embeddings.StubEmbedder{Dim: 64}, zap.NewNop())
	require.NoError(t, err)

	cache, err := New(store, "advisord", threshold, zap.NewNop())
	require.NoError(t, err)
	return cache
}

func TestCache_RoundTrip(t *testing.T) {
	cache := newTestCache(t, 0)
	ctx := context.Background()

	_, hit, err := cache.Lookup(ctx, "what are the prerequisites for databases")
	require.NoError(t, err)
	assert.False(t, hit, "empty cache must miss")

	require.NoError(t, cache.Store(ctx, "what are the prerequisites for databases",
		"Databases requires Data Structures and Discrete Mathematics."))

	entry, hit, err := cache.Lookup(ctx, "what are the prerequisites for databases")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "Databases requires Data Structures and Discrete Mathematics.", entry.Answer)
	assert.GreaterOrEqual(t, entry.Similarity, float32(DefaultThreshold))
}

func TestCache_NearDuplicateHit(t *testing.T) {
	cache := newTestCache(t, 0)
	ctx := context.Background()

	stored := "which courses do I need to take before I can enroll in the database " +
		"systems class and how heavy is the assignment workload in that class"
	require.NoError(t, cache.Store(ctx, stored, "Take CS002 and CS003 first; expect weekly assignments."))

	// A rephrasing that is not textually identical must still hit: the
	// trailing word shifts cosine to ~0.97, above the 0.9 threshold.
	entry, hit, err := cache.Lookup(ctx, stored+" please")
	require.NoError(t, err)
	require.True(t, hit, "near-duplicate query must hit the cache")
	assert.Equal(t, "Take CS002 and CS003 first; expect weekly assignments.", entry.Answer)
	assert.Equal(t, stored, entry.Query, "hit returns the originally stored query")
	assert.GreaterOrEqual(t, entry.Similarity, float32(DefaultThreshold))
	assert.Less(t, entry.Similarity, float32(1.0), "lookup text differs from stored text")
}

func TestCache_MissBelowThreshold(t *testing.T) {
	cache := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "what are the prerequisites for databases", "answer"))

	_, hit, err := cache.Lookup(ctx, "completely unrelated gardening question")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_HitCountIncrements(t *testing.T) {
	cache := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "syllabus for operating systems", "covers scheduling and memory"))

	entry, hit, err := cache.Lookup(ctx, "syllabus for operating systems")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 1, entry.Hits)

	entry, hit, err = cache.Lookup(ctx, "syllabus for operating systems")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 2, entry.Hits)
}

func TestCache_Validation(t *testing.T) {
	cache := newTestCache(t, 0)
	ctx := context.Background()

	_, _, err := cache.Lookup(ctx, "   ")
	assert.Error(t, err)

	assert.Error(t, cache.Store(ctx, "", "answer"))
	assert.Error(t, cache.Store(ctx, "query", ""))
}

func TestNew_ThresholdValidation(t *testing.T) {
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		InMemory:   true,
		VectorSize: 8,
	}, &embeddings.StubEmbedder{}, zap.NewNop())
	require.NoError(t, err)

	_, err = New(store, "advisord", 1.5, zap.NewNop())
	assert.Error(t, err)

	cache, err := New(store, "", 0, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, float32(DefaultThreshold), cache.threshold)
}

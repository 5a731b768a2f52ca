package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/embeddings"
	"github.com/fyrsmithlabs/advisord/internal/vectorstore"
)

func newTestCatalog(t *testing.T, threshold float64) *Service {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		InMemory:   true,
		VectorSize: 64,
	}, &embeddings.StubEmbedder{Dim: 64}, zap.NewNop())
	require.NoError(t, err)

	svc, err := NewService(store, "advisord", threshold, zap.NewNop())
	require.NoError(t, err)

	courses, err := SeedCourses()
	require.NoError(t, err)
	require.NoError(t, svc.Seed(context.Background(), courses))
	return svc
}

func TestSeedCourses(t *testing.T) {
	courses, err := SeedCourses()
	require.NoError(t, err)
	require.NotEmpty(t, courses)

	byCode := map[string]Course{}
	for _, c := range courses {
		byCode[c.Code] = c
	}

	la, ok := byCode["CS004"]
	require.True(t, ok, "bundled catalog must contain CS004")
	assert.Equal(t, "Linear Algebra", la.Title)
	assert.Equal(t, []string{"CS003"}, la.Prerequisites)
	assert.NotEmpty(t, la.Objectives)
	assert.NotEmpty(t, la.Assignments)
}

func TestIsCourseCode(t *testing.T) {
	assert.True(t, IsCourseCode("CS004"))
	assert.True(t, IsCourseCode("cs004"))
	assert.True(t, IsCourseCode(" MATH101 "))
	assert.False(t, IsCourseCode("linear algebra"))
	assert.False(t, IsCourseCode("CS4"))
	assert.False(t, IsCourseCode("prerequisites for CS004"))
}

func TestExtractCourseCode(t *testing.T) {
	assert.Equal(t, "CS004", ExtractCourseCode("what are the prerequisites for cs004?"))
	assert.Equal(t, "MATH101", ExtractCourseCode("is MATH101 hard"))
	assert.Equal(t, "", ExtractCourseCode("anything about linear algebra"))
}

func TestService_Lookup_ExactBypassesThreshold(t *testing.T) {
	// Threshold so high similarity search returns nothing.
	svc := newTestCatalog(t, 0.99)
	ctx := context.Background()

	// A code query returns the single record regardless of threshold.
	results, err := svc.Search(ctx, "CS004", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "CS004", results[0].Code)
	assert.Contains(t, results[0].Content, "Linear Algebra")

	// A concept query under the same strict threshold may legitimately
	// return nothing.
	results, err = svc.Search(ctx, "qualitative narrative journaling", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_Search_Semantic(t *testing.T) {
	svc := newTestCatalog(t, 0.1)
	ctx := context.Background()

	results, err := svc.Search(ctx, "eigenvalues eigenvectors linear transformations matrices", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "CS004", results[0].Code)
}

func TestService_Lookup_NotFound(t *testing.T) {
	svc := newTestCatalog(t, 0)

	_, err := svc.Lookup(context.Background(), "CS999")
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestService_Seed_Idempotent(t *testing.T) {
	svc := newTestCatalog(t, 0)
	ctx := context.Background()

	courses, err := SeedCourses()
	require.NoError(t, err)
	require.NoError(t, svc.Seed(ctx, courses))

	// Re-seeding overwrites rather than duplicating.
	result, err := svc.Lookup(ctx, "CS004")
	require.NoError(t, err)
	assert.Equal(t, "CS004", result.Code)

	results, err := svc.Search(ctx, "CS004", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

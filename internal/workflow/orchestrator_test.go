package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/catalog"
	"github.com/fyrsmithlabs/advisord/internal/config"
	"github.com/fyrsmithlabs/advisord/internal/embeddings"
	"github.com/fyrsmithlabs/advisord/internal/llm"
	"github.com/fyrsmithlabs/advisord/internal/longterm"
	"github.com/fyrsmithlabs/advisord/internal/memory"
	"github.com/fyrsmithlabs/advisord/internal/react"
	"github.com/fyrsmithlabs/advisord/internal/semcache"
	"github.com/fyrsmithlabs/advisord/internal/session"
	"github.com/fyrsmithlabs/advisord/internal/vectorstore"
)

type fixture struct {
	orch     *Orchestrator
	client   *llm.FakeClient
	sessions session.Store
}

func newFixture(t *testing.T, client *llm.FakeClient, mutate func(*config.WorkflowConfig)) *fixture {
	t.Helper()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		InMemory:   true,
		VectorSize: 64,
	}, &embeddings.StubEmbedder{Dim: 64}, zap.NewNop())
	require.NoError(t, err)

	cat, err := catalog.NewService(store, "advisord", 0.1, zap.NewNop())
	require.NoError(t, err)
	courses, err := catalog.SeedCourses()
	require.NoError(t, err)
	require.NoError(t, cat.Seed(context.Background(), courses))

	memories, err := longterm.NewService(store, "advisord", zap.NewNop())
	require.NoError(t, err)

	cache, err := semcache.New(store, "advisord", 0.9, zap.NewNop())
	require.NoError(t, err)

	sessions := session.NewMemoryStore(time.Hour, zap.NewNop())
	manager := memory.NewManager(config.MemoryConfig{
		ExtractionThreshold: 100,
		MinImportance:       0.6,
	}, zap.NewNop())

	cfg := config.WorkflowConfig{
		MaxResearchRounds:    2,
		MaxReactIterations:   5,
		ClassifyTemperature:  0.0,
		SynthesisTemperature: 0.7,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	var engine *react.Engine
	if cfg.EnableReact {
		registry := react.NewRegistry(
			&react.CourseLookupTool{Catalog: cat},
			&react.SemanticSearchTool{Catalog: cat},
		)
		engine = react.NewEngine(client, registry, cfg.MaxReactIterations, zap.NewNop())
	}

	orch, err := New(cfg, config.CacheConfig{Enabled: true, Threshold: 0.9}, Deps{
		Client:   client,
		Sessions: sessions,
		Manager:  manager,
		Memories: memories,
		Cache:    cache,
		Catalog:  cat,
		Engine:   engine,
	}, zap.NewNop())
	require.NoError(t, err)

	return &fixture{orch: orch, client: client, sessions: sessions}
}

func TestRun_GreetingSkipsResearch(t *testing.T) {
	client := &llm.FakeClient{Responses: []string{
		`{"intent": "GREETING"}`,
	}}
	f := newFixture(t, client, nil)

	outcome := f.orch.Run(context.Background(), "hello there!", "s1", "alice")
	require.False(t, outcome.Failed)
	assert.Equal(t, IntentGreeting, outcome.Intent)
	assert.NotEmpty(t, outcome.Answer)

	// The path reaches save_memory without visiting research.
	assert.Contains(t, outcome.Path, "save_memory")
	assert.NotContains(t, outcome.Path, "research")
	assert.NotContains(t, outcome.Path, "synthesize")

	// Only the classification call hit the model.
	assert.Equal(t, 1, client.CallCount())

	// The greeting turn was still persisted.
	sess, err := f.sessions.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, sess.Turns, 2)
}

func TestRun_FullPipelineAndCacheWrite(t *testing.T) {
	client := &llm.FakeClient{Responses: []string{
		`{"intent": "PREREQUISITES"}`,
		`{"entities": {"course_code": "CS004"}}`,
		`{"sub_queries": ["what are the prerequisites for CS004"]}`,
		`{"sufficient": true, "rationale": "the catalog entry covers it"}`,
		`CS004 Linear Algebra requires CS003 Discrete Mathematics.`,
	}}
	f := newFixture(t, client, nil)

	outcome := f.orch.Run(context.Background(), "what are the prerequisites for CS004?", "s1", "alice")
	require.False(t, outcome.Failed)
	assert.Equal(t, IntentPrerequisites, outcome.Intent)
	assert.Equal(t, "CS004 Linear Algebra requires CS003 Discrete Mathematics.", outcome.Answer)
	assert.False(t, outcome.CacheHit)
	assert.Equal(t, []string{
		"load_memory", "classify_intent", "extract_entities", "decompose_query",
		"check_cache", "research", "evaluate_quality", "synthesize", "save_memory",
	}, outcome.Path)

	// Second run with the same query: the cache answers, synthesis is
	// not re-invoked.
	client2 := &llm.FakeClient{Responses: []string{
		`{"intent": "PREREQUISITES"}`,
		`{"entities": {"course_code": "CS004"}}`,
		`{"sub_queries": ["what are the prerequisites for CS004"]}`,
	}}
	f.orch.client = client2

	outcome = f.orch.Run(context.Background(), "what are the prerequisites for CS004?", "s1", "alice")
	require.False(t, outcome.Failed)
	assert.True(t, outcome.CacheHit)
	assert.Equal(t, "CS004 Linear Algebra requires CS003 Discrete Mathematics.", outcome.Answer)
	assert.NotContains(t, outcome.Path, "research")
	assert.NotContains(t, outcome.Path, "synthesize")
	assert.Equal(t, 3, client2.CallCount(), "no evaluate or synthesize calls on a cache hit")
}

func TestRun_ResearchRoundsBounded(t *testing.T) {
	// The judge never approves; the cycle still stops at the cap.
	client := &llm.FakeClient{Responses: []string{
		`{"intent": "GENERAL"}`,
		`{"entities": {}}`,
		`{"sub_queries": ["an obscure question"]}`,
		`{"sufficient": false, "rationale": "need more"}`,
		`{"sufficient": false, "rationale": "still need more"}`,
		`best-effort answer`,
	}}
	f := newFixture(t, client, nil)

	outcome := f.orch.Run(context.Background(), "an obscure question", "s1", "alice")
	require.False(t, outcome.Failed)
	assert.Equal(t, "best-effort answer", outcome.Answer)

	visits := 0
	for _, node := range outcome.Path {
		if node == "research" {
			visits++
		}
	}
	assert.Equal(t, 2, visits, "research visits must not exceed the cap")

	// Forced advancement past a failing gate must not write the cache.
	client2 := &llm.FakeClient{Responses: []string{
		`{"intent": "GENERAL"}`,
		`{"entities": {}}`,
		`{"sub_queries": ["an obscure question"]}`,
		`{"sufficient": true, "rationale": "fine"}`,
		`fresh answer`,
	}}
	f.orch.client = client2
	outcome = f.orch.Run(context.Background(), "an obscure question", "s2", "alice")
	require.False(t, outcome.Failed)
	assert.False(t, outcome.CacheHit, "unapproved synthesis must not have been cached")
}

func TestRun_ReactResearch(t *testing.T) {
	client := &llm.FakeClient{Responses: []string{
		`{"intent": "SYLLABUS_OBJECTIVES"}`,
		`{"entities": {"course_code": "CS004"}}`,
		`{"sub_queries": ["what does CS004 cover"]}`,
		`{"thought": "look up the course", "action": "course_lookup", "input": "CS004"}`,
		`{"thought": "I have the syllabus", "action": "finish", "input": "CS004 covers vectors, matrices and eigenvalues."}`,
		`{"sufficient": true, "rationale": "reasoned answer is grounded"}`,
		`CS004 covers linear algebra: vectors, matrices, eigenvalues.`,
	}}
	f := newFixture(t, client, func(cfg *config.WorkflowConfig) {
		cfg.EnableReact = true
	})

	outcome := f.orch.Run(context.Background(), "what does CS004 cover?", "s1", "alice")
	require.False(t, outcome.Failed)
	require.NotEmpty(t, outcome.Steps)
	assert.Equal(t, react.ActionCourseLookup, outcome.Steps[0].Action)
	assert.Contains(t, outcome.Steps[0].Observation, "Linear Algebra")
}

func TestRun_ClassificationFailureDegrades(t *testing.T) {
	client := &llm.FakeClient{Errors: []error{errors.New("connection refused")}}
	f := newFixture(t, client, nil)

	outcome := f.orch.Run(context.Background(), "anything", "s1", "alice")
	assert.True(t, outcome.Failed)
	assert.Equal(t, []string{"failed"}, outcome.Path)
	assert.NotEmpty(t, outcome.Answer, "caller always receives a text answer")
}

func TestRun_EmptyQueryDegrades(t *testing.T) {
	f := newFixture(t, &llm.FakeClient{}, nil)

	outcome := f.orch.Run(context.Background(), "   ", "s1", "alice")
	assert.True(t, outcome.Failed)
	assert.Equal(t, []string{"failed"}, outcome.Path)
}

func TestRun_LoadMemoryIdempotent(t *testing.T) {
	client := &llm.FakeClient{Fallback: `{"intent": "GREETING"}`}
	f := newFixture(t, client, nil)
	ctx := context.Background()

	f.orch.Run(ctx, "hello", "s1", "alice")
	f.orch.Run(ctx, "hi again", "s1", "alice")

	// Two runs against one unseen session id produce exactly one
	// session record, accumulating turns across runs.
	sess, err := f.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.UserID)
	assert.Len(t, sess.Turns, 4)
}

func TestRun_UnparseableClassificationFallsBackToGeneral(t *testing.T) {
	client := &llm.FakeClient{Responses: []string{
		`I am not sure how to classify this`,
		`{"entities": {}}`,
		`{"sub_queries": []}`,
		`{"sufficient": true, "rationale": "ok"}`,
		`an answer`,
	}}
	f := newFixture(t, client, nil)

	outcome := f.orch.Run(context.Background(), "tell me about algebra courses", "s1", "alice")
	require.False(t, outcome.Failed)
	assert.Equal(t, IntentGeneral, outcome.Intent)
	assert.Equal(t, "an answer", outcome.Answer)
}

func TestParseIntent(t *testing.T) {
	assert.Equal(t, IntentGreeting, ParseIntent("GREETING"))
	assert.Equal(t, IntentPrerequisites, ParseIntent("PREREQUISITES"))
	assert.Equal(t, IntentGeneral, ParseIntent("nonsense"))
	assert.Equal(t, IntentGeneral, ParseIntent(""))
}

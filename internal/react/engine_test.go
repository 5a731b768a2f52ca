package react

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/catalog"
	"github.com/fyrsmithlabs/advisord/internal/embeddings"
	"github.com/fyrsmithlabs/advisord/internal/llm"
	"github.com/fyrsmithlabs/advisord/internal/longterm"
	"github.com/fyrsmithlabs/advisord/internal/vectorstore"
)

// echoTool returns a fixed observation for any input.
type echoTool struct {
	name Action
	obs  string
	err  error
}

func (t *echoTool) Name() Action        { return t.name }
func (t *echoTool) Description() string { return "test tool" }
func (t *echoTool) Call(ctx context.Context, input string) (string, error) {
	return t.obs, t.err
}

func newSeededServices(t *testing.T) (*catalog.Service, *longterm.Service) {
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

	mem, err := longterm.NewService(store, "advisord", zap.NewNop())
	require.NoError(t, err)
	return cat, mem
}

func TestEngine_FinishOnFirstIteration(t *testing.T) {
	client := &llm.FakeClient{Responses: []string{
		`{"thought": "I already know this", "action": "finish", "input": "CS004 is Linear Algebra."}`,
	}}
	engine := NewEngine(client, NewRegistry(), 5, zap.NewNop())

	outcome, err := engine.Run(context.Background(), "what is CS004?", "")
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 1, outcome.Iterations)
	assert.Equal(t, "CS004 is Linear Algebra.", outcome.Answer)
	require.Len(t, outcome.Steps, 1)
	assert.Equal(t, ActionFinish, outcome.Steps[0].Action)
}

func TestEngine_NeverFinishesHitsCap(t *testing.T) {
	// The model keeps calling the tool and never finishes.
	client := &llm.FakeClient{Fallback: `{"thought": "keep digging", "action": "probe", "input": "x"}`}
	registry := NewRegistry(&echoTool{name: "probe", obs: "still nothing conclusive"})
	engine := NewEngine(client, registry, 3, zap.NewNop())

	outcome, err := engine.Run(context.Background(), "an unanswerable question", "")
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, 3, outcome.Iterations)
	assert.Len(t, outcome.Steps, 3)

	// Best-effort partial answer is the last observation.
	assert.Equal(t, "still nothing conclusive", outcome.Answer)
}

func TestEngine_ToolErrorBecomesObservation(t *testing.T) {
	client := &llm.FakeClient{Responses: []string{
		`{"thought": "look it up", "action": "probe", "input": "x"}`,
		`{"thought": "tool failed, answer anyway", "action": "finish", "input": "done"}`,
	}}
	registry := NewRegistry(&echoTool{name: "probe", err: errors.New("backend exploded")})
	engine := NewEngine(client, registry, 5, zap.NewNop())

	outcome, err := engine.Run(context.Background(), "q", "")
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	require.Len(t, outcome.Steps, 2)
	assert.Contains(t, outcome.Steps[0].Observation, "backend exploded")
}

func TestEngine_UnknownActionIsRecoverable(t *testing.T) {
	client := &llm.FakeClient{Responses: []string{
		`{"thought": "try something odd", "action": "teleport", "input": "x"}`,
		`{"thought": "ok, finishing", "action": "finish", "input": "final"}`,
	}}
	engine := NewEngine(client, NewRegistry(&echoTool{name: "probe", obs: "ok"}), 5, zap.NewNop())

	outcome, err := engine.Run(context.Background(), "q", "")
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Contains(t, outcome.Steps[0].Observation, "unknown action")
}

func TestEngine_MalformedJSONIsRecoverable(t *testing.T) {
	client := &llm.FakeClient{Responses: []string{
		`I think the answer involves linear algebra but let me check...`,
		`{"thought": "proper format now", "action": "finish", "input": "answer"}`,
	}}
	engine := NewEngine(client, NewRegistry(), 5, zap.NewNop())

	outcome, err := engine.Run(context.Background(), "q", "")
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 2, outcome.Iterations)
	assert.Contains(t, outcome.Steps[0].Observation, "could not be parsed")
}

func TestEngine_FirstStepCompletionFailure(t *testing.T) {
	client := &llm.FakeClient{Errors: []error{errors.New("connection refused")}}
	engine := NewEngine(client, NewRegistry(), 5, zap.NewNop())

	_, err := engine.Run(context.Background(), "q", "")
	assert.Error(t, err)
}

func TestEngine_ToleratesCodeFences(t *testing.T) {
	client := &llm.FakeClient{Responses: []string{
		"```json\n{\"thought\": \"t\", \"action\": \"finish\", \"input\": \"fenced answer\"}\n```",
	}}
	engine := NewEngine(client, NewRegistry(), 5, zap.NewNop())

	outcome, err := engine.Run(context.Background(), "q", "")
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "fenced answer", outcome.Answer)
}

func TestTools_AgainstSeededCatalog(t *testing.T) {
	cat, mem := newSeededServices(t)
	ctx := context.Background()

	lookup := &CourseLookupTool{Catalog: cat}
	obs, err := lookup.Call(ctx, "tell me about CS004")
	require.NoError(t, err)
	assert.Contains(t, obs, "Linear Algebra")

	_, err = lookup.Call(ctx, "CS999")
	assert.Error(t, err)

	search := &SemanticSearchTool{Catalog: cat}
	obs, err = search.Call(ctx, "eigenvalues and matrices")
	require.NoError(t, err)
	assert.Contains(t, obs, "CS004")

	save := &SavePreferenceTool{Memories: mem, UserID: "alice"}
	obs, err = save.Call(ctx, "prefers project-based courses")
	require.NoError(t, err)
	assert.Equal(t, "Preference saved.", obs)

	_, err = save.Call(ctx, "   ")
	assert.Error(t, err)

	get := &GetPreferencesTool{Memories: mem, UserID: "alice"}
	obs, err = get.Call(ctx, "projects")
	require.NoError(t, err)
	assert.Contains(t, obs, "project-based")

	getEmpty := &GetPreferencesTool{Memories: mem, UserID: "nobody"}
	obs, err = getEmpty.Call(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, obs, "Nothing is known")
}

func TestRegistry_Describe(t *testing.T) {
	registry := NewRegistry(
		&echoTool{name: "alpha"},
		&echoTool{name: "beta"},
	)
	desc := registry.Describe()
	assert.Contains(t, desc, "alpha")
	assert.Contains(t, desc, "beta")

	_, err := registry.Get("gamma")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

// Package workflow implements the top-level state machine that turns a
// student's question into an answer:
//
//	load_memory → classify_intent → {handle_greeting | extract_entities}
//	→ decompose_query → check_cache → {research → evaluate_quality}*
//	→ synthesize → save_memory
//
// The orchestrator never surfaces an error to its caller; every
// internal failure degrades to a textual error answer with execution
// path ["failed"].
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/catalog"
	"github.com/fyrsmithlabs/advisord/internal/config"
	"github.com/fyrsmithlabs/advisord/internal/llm"
	"github.com/fyrsmithlabs/advisord/internal/logging"
	"github.com/fyrsmithlabs/advisord/internal/longterm"
	"github.com/fyrsmithlabs/advisord/internal/memory"
	"github.com/fyrsmithlabs/advisord/internal/react"
	"github.com/fyrsmithlabs/advisord/internal/semcache"
	"github.com/fyrsmithlabs/advisord/internal/session"
)

var tracer = otel.Tracer("advisord.workflow")

// failedAnswer is what the caller sees when a run degrades.
const failedAnswer = "I'm sorry, something went wrong while answering that. Please try again."

// Node names recorded in the execution path.
const (
	nodeLoadMemory     = "load_memory"
	nodeClassifyIntent = "classify_intent"
	nodeHandleGreeting = "handle_greeting"
	nodeExtractEnts    = "extract_entities"
	nodeDecompose      = "decompose_query"
	nodeCheckCache     = "check_cache"
	nodeResearch       = "research"
	nodeEvaluate       = "evaluate_quality"
	nodeSynthesize     = "synthesize"
	nodeSaveMemory     = "save_memory"
	nodeFailed         = "failed"
)

// Orchestrator wires the workflow's collaborators. Created once per
// process and shared across runs; each Run threads its own State.
type Orchestrator struct {
	client   llm.Client
	sessions session.Store
	manager  *memory.Manager
	memories *longterm.Service
	cache    *semcache.Cache
	catalog  *catalog.Service
	engine   *react.Engine

	cfg          config.WorkflowConfig
	cacheEnabled bool
	logger       *zap.Logger
	meters       *meters
}

// Deps are the orchestrator's collaborators. All are required except
// Engine, which is only used when the workflow config enables the
// reasoning loop.
type Deps struct {
	Client   llm.Client
	Sessions session.Store
	Manager  *memory.Manager
	Memories *longterm.Service
	Cache    *semcache.Cache
	Catalog  *catalog.Service
	Engine   *react.Engine
}

// New creates an orchestrator.
func New(cfg config.WorkflowConfig, cacheCfg config.CacheConfig, deps Deps, logger *zap.Logger) (*Orchestrator, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("memory manager is required")
	}
	if deps.Memories == nil {
		return nil, fmt.Errorf("long-term memory service is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog service is required")
	}
	if cacheCfg.Enabled && deps.Cache == nil {
		return nil, fmt.Errorf("cache is enabled but no cache was provided")
	}
	if cfg.EnableReact && deps.Engine == nil {
		return nil, fmt.Errorf("reasoning loop is enabled but no engine was provided")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		client:       deps.Client,
		sessions:     deps.Sessions,
		manager:      deps.Manager,
		memories:     deps.Memories,
		cache:        deps.Cache,
		catalog:      deps.Catalog,
		engine:       deps.Engine,
		cfg:          cfg,
		cacheEnabled: cacheCfg.Enabled,
		logger:       logger,
		meters:       newMeters(logger),
	}, nil
}

// Run executes the workflow for one query. It never returns an error:
// failures produce an Outcome with Failed set, an apologetic answer,
// and Path == ["failed"].
func (o *Orchestrator) Run(ctx context.Context, query, sessionID, userID string) *Outcome {
	ctx = logging.WithSessionID(ctx, sessionID)
	ctx = logging.WithUserID(ctx, userID)

	ctx, span := tracer.Start(ctx, "workflow.Run")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("user_id", userID),
	)

	state := newState(strings.TrimSpace(query), sessionID, userID)
	start := time.Now()

	if state.Query == "" {
		return o.fail(ctx, state, nodeLoadMemory, fmt.Errorf("empty query"))
	}
	if sessionID == "" || userID == "" {
		return o.fail(ctx, state, nodeLoadMemory, fmt.Errorf("session and user IDs are required"))
	}

	// load_memory
	var sess *session.State
	if err := o.runNode(ctx, state, nodeLoadMemory, func(ctx context.Context) error {
		var err error
		sess, err = o.loadMemory(ctx, state)
		return err
	}); err != nil {
		return o.fail(ctx, state, nodeLoadMemory, err)
	}

	// classify_intent
	if err := o.runNode(ctx, state, nodeClassifyIntent, func(ctx context.Context) error {
		return o.classifyIntent(ctx, state)
	}); err != nil {
		return o.fail(ctx, state, nodeClassifyIntent, err)
	}
	o.meters.recordRun(ctx, state.Intent)

	if state.Intent == IntentGreeting {
		// Greetings skip retrieval entirely but still persist the turn.
		state.visit(nodeHandleGreeting)
		state.Answer = greetingAnswer(state.Memories)
	} else {
		if outcome := o.answer(ctx, state, sess); outcome != nil {
			return outcome
		}
	}

	// save_memory (terminal; no node runs after it)
	if err := o.runNode(ctx, state, nodeSaveMemory, func(ctx context.Context) error {
		return o.saveMemory(ctx, state, sess)
	}); err != nil {
		return o.fail(ctx, state, nodeSaveMemory, err)
	}

	state.Metrics["total_ms"] = float64(time.Since(start).Milliseconds())
	span.SetStatus(codes.Ok, "answered")
	o.logger.Info("workflow run complete",
		append(logging.ContextFields(ctx),
			zap.String("intent", string(state.Intent)),
			zap.Bool("cache_hit", state.CacheHit),
			zap.Strings("path", state.Path),
		)...,
	)

	return &Outcome{
		Answer:   state.Answer,
		Intent:   state.Intent,
		Path:     state.Path,
		CacheHit: state.CacheHit,
		Steps:    state.Steps,
		Metrics:  state.Metrics,
	}
}

// answer drives the retrieval half of the machine: entities,
// decomposition, cache gate, research/evaluate cycle, synthesis.
// Returns a non-nil Outcome only when the run failed.
func (o *Orchestrator) answer(ctx context.Context, state *State, sess *session.State) *Outcome {
	if err := o.runNode(ctx, state, nodeExtractEnts, func(ctx context.Context) error {
		return o.extractEntities(ctx, state)
	}); err != nil {
		return o.fail(ctx, state, nodeExtractEnts, err)
	}

	if err := o.runNode(ctx, state, nodeDecompose, func(ctx context.Context) error {
		return o.decomposeQuery(ctx, state)
	}); err != nil {
		return o.fail(ctx, state, nodeDecompose, err)
	}

	var hit bool
	if err := o.runNode(ctx, state, nodeCheckCache, func(ctx context.Context) error {
		var err error
		hit, err = o.checkCache(ctx, state)
		return err
	}); err != nil {
		return o.fail(ctx, state, nodeCheckCache, err)
	}
	if hit {
		// Cached answer is returned as-is; synthesis is not re-invoked.
		o.meters.recordCacheHit(ctx)
		return nil
	}

	for {
		if err := o.runNode(ctx, state, nodeResearch, func(ctx context.Context) error {
			return o.research(ctx, state, sess)
		}); err != nil {
			return o.fail(ctx, state, nodeResearch, err)
		}

		if o.evaluateQuality(ctx, state) {
			break
		}
	}

	if err := o.runNode(ctx, state, nodeSynthesize, func(ctx context.Context) error {
		return o.synthesize(ctx, state, sess)
	}); err != nil {
		return o.fail(ctx, state, nodeSynthesize, err)
	}
	return nil
}

// runNodeTimer records a node's elapsed time into run metrics and the
// OpenTelemetry histogram.
func runNodeTimer(ctx context.Context, state *State, m *meters, node string, start time.Time) {
	ms := float64(time.Since(start).Microseconds()) / 1000.0
	state.Metrics[node+"_ms"] = ms
	m.recordNode(ctx, node, ms)
}

func (o *Orchestrator) runNode(ctx context.Context, state *State, node string, fn func(context.Context) error) error {
	state.visit(node)
	start := time.Now()
	defer runNodeTimer(ctx, state, o.meters, node, start)

	if o.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.CallTimeout))
		defer cancel()
	}
	return fn(ctx)
}

// fail converts an internal error into the degraded terminal outcome.
// Metrics collected up to the failure point are preserved.
func (o *Orchestrator) fail(ctx context.Context, state *State, node string, err error) *Outcome {
	o.meters.recordFailure(ctx, node)
	o.logger.Error("workflow run failed",
		append(logging.ContextFields(ctx),
			zap.String("node", node),
			zap.Error(err),
		)...,
	)
	return &Outcome{
		Answer:  failedAnswer,
		Intent:  state.Intent,
		Path:    []string{nodeFailed},
		Metrics: state.Metrics,
		Failed:  true,
	}
}

func (o *Orchestrator) loadMemory(ctx context.Context, state *State) (*session.State, error) {
	sess, err := o.sessions.GetOrCreate(ctx, state.SessionID, state.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	// Long-term context rides along; an empty store is normal.
	records, err := o.memories.Recent(ctx, state.UserID, 5)
	if err != nil {
		return nil, fmt.Errorf("loading long-term memories: %w", err)
	}
	state.Memories = records
	return sess, nil
}

func (o *Orchestrator) classifyIntent(ctx context.Context, state *State) error {
	raw, err := o.client.Complete(ctx, fmt.Sprintf(classifyPrompt, state.Query),
		llm.WithTemperature(o.cfg.ClassifyTemperature),
		llm.WithJSONOutput(),
	)
	if err != nil {
		return fmt.Errorf("classifying intent: %w", err)
	}

	var parsed struct {
		Intent string `json:"intent"`
	}
	if err := unmarshalLoose(raw, &parsed); err != nil {
		// Unparseable classification falls back to GENERAL rather than
		// failing the run; GENERAL routes through full research.
		o.logger.Warn("unparseable intent classification, defaulting to GENERAL",
			zap.String("raw", raw))
		state.Intent = IntentGeneral
		return nil
	}
	state.Intent = ParseIntent(strings.ToUpper(strings.TrimSpace(parsed.Intent)))
	return nil
}

func (o *Orchestrator) extractEntities(ctx context.Context, state *State) error {
	state.Entities = make(map[string]string)

	// Course codes are extracted deterministically; the model call adds
	// fuzzier entity types on top.
	if code := catalog.ExtractCourseCode(state.Query); code != "" {
		state.Entities["course_code"] = code
	}

	raw, err := o.client.Complete(ctx, fmt.Sprintf(extractEntitiesPrompt, state.Query),
		llm.WithTemperature(o.cfg.ClassifyTemperature),
		llm.WithJSONOutput(),
	)
	if err != nil {
		return fmt.Errorf("extracting entities: %w", err)
	}

	var parsed struct {
		Entities map[string]string `json:"entities"`
	}
	if err := unmarshalLoose(raw, &parsed); err != nil {
		o.logger.Warn("unparseable entity extraction", zap.String("raw", raw))
		return nil
	}
	for k, v := range parsed.Entities {
		if _, taken := state.Entities[k]; !taken && v != "" {
			state.Entities[k] = v
		}
	}
	return nil
}

func (o *Orchestrator) decomposeQuery(ctx context.Context, state *State) error {
	raw, err := o.client.Complete(ctx, fmt.Sprintf(decomposePrompt, state.Query),
		llm.WithTemperature(o.cfg.ClassifyTemperature),
		llm.WithJSONOutput(),
	)
	if err != nil {
		return fmt.Errorf("decomposing query: %w", err)
	}

	var parsed struct {
		SubQueries []string `json:"sub_queries"`
	}
	if err := unmarshalLoose(raw, &parsed); err != nil || len(parsed.SubQueries) == 0 {
		// A single-question fallback keeps the run alive.
		state.SubQueries = []string{state.Query}
		return nil
	}

	subs := make([]string, 0, len(parsed.SubQueries))
	for _, q := range parsed.SubQueries {
		if q = strings.TrimSpace(q); q != "" {
			subs = append(subs, q)
		}
	}
	if len(subs) == 0 {
		subs = []string{state.Query}
	}
	state.SubQueries = subs
	return nil
}

func (o *Orchestrator) checkCache(ctx context.Context, state *State) (bool, error) {
	if !o.cacheEnabled || o.cache == nil {
		return false, nil
	}

	entry, hit, err := o.cache.Lookup(ctx, state.Query)
	if err != nil {
		return false, fmt.Errorf("cache lookup: %w", err)
	}
	if !hit {
		return false, nil
	}

	state.CacheHit = true
	state.Answer = entry.Answer
	state.Evidence = append(state.Evidence, Evidence{
		Content: entry.Answer,
		Source:  "cache",
		Score:   entry.Similarity,
	})
	return true, nil
}

func (o *Orchestrator) research(ctx context.Context, state *State, sess *session.State) error {
	state.ResearchRounds++

	for _, sub := range state.SubQueries {
		if o.cfg.EnableReact && o.engine != nil {
			history := renderHistory(o.manager.ContextWindow(sess))
			outcome, err := o.engine.Run(ctx, sub, history)
			if err != nil {
				return fmt.Errorf("reasoning on %q: %w", sub, err)
			}
			state.Steps = append(state.Steps, outcome.Steps...)
			score := float32(0.5)
			if outcome.Success {
				score = 1.0
			}
			state.Evidence = append(state.Evidence, Evidence{
				Content: outcome.Answer,
				Source:  "reasoning",
				Score:   score,
			})
			continue
		}

		results, err := o.catalog.Search(ctx, sub, 3)
		if err != nil {
			return fmt.Errorf("retrieving for %q: %w", sub, err)
		}
		for _, r := range results {
			state.Evidence = append(state.Evidence, Evidence{
				Content: r.Content,
				Source:  "catalog",
				Score:   r.Score,
			})
		}
	}

	// Relevant long-term memories join the evidence once.
	if state.ResearchRounds == 1 {
		for _, rec := range state.Memories {
			state.Evidence = append(state.Evidence, Evidence{
				Content: rec.Content,
				Source:  "memory",
				Score:   float32(rec.Importance),
			})
		}
	}
	return nil
}

// evaluateQuality judges the evidence and reports whether to advance
// to synthesis. The research cycle is force-advanced at the round cap
// no matter what the judge says, and a failed judge call advances too:
// the gate shapes quality, it must not stall or kill the run.
func (o *Orchestrator) evaluateQuality(ctx context.Context, state *State) bool {
	state.visit(nodeEvaluate)
	start := time.Now()
	defer runNodeTimer(ctx, state, o.meters, nodeEvaluate, start)

	maxRounds := o.cfg.MaxResearchRounds
	if maxRounds <= 0 {
		maxRounds = 2
	}

	raw, err := o.client.Complete(ctx,
		fmt.Sprintf(evaluatePrompt, state.Query, renderEvidence(state.Evidence)),
		llm.WithTemperature(o.cfg.ClassifyTemperature),
		llm.WithJSONOutput(),
	)
	if err != nil {
		o.logger.Warn("quality evaluation failed, advancing to synthesis", zap.Error(err))
		state.Verdict = Verdict{Sufficient: false, Rationale: "evaluation unavailable"}
		return true
	}

	var verdict Verdict
	if err := unmarshalLoose(raw, &verdict); err != nil {
		o.logger.Warn("unparseable quality verdict, advancing to synthesis", zap.String("raw", raw))
		state.Verdict = Verdict{Sufficient: false, Rationale: "unparseable verdict"}
		return true
	}
	state.Verdict = verdict

	if verdict.Sufficient {
		return true
	}
	if state.ResearchRounds >= maxRounds {
		o.logger.Debug("research round cap reached, forcing synthesis",
			zap.Int("rounds", state.ResearchRounds))
		return true
	}
	return false
}

func (o *Orchestrator) synthesize(ctx context.Context, state *State, sess *session.State) error {
	prompt := fmt.Sprintf(synthesizePrompt,
		renderMemories(state.Memories),
		renderHistory(o.manager.ContextWindow(sess)),
		state.Query,
		renderEvidence(state.Evidence),
	)

	answer, err := o.client.Complete(ctx, prompt,
		llm.WithTemperature(o.cfg.SynthesisTemperature),
	)
	if err != nil {
		return fmt.Errorf("synthesizing answer: %w", err)
	}
	state.Answer = strings.TrimSpace(answer)

	// Cache writes only follow a quality-passed synthesis; a forced
	// advancement past the gate does not poison the cache.
	if o.cacheEnabled && o.cache != nil && state.Verdict.Sufficient {
		if err := o.cache.Store(ctx, state.Query, state.Answer); err != nil {
			o.logger.Warn("failed to write semantic cache", zap.Error(err))
		}
	}
	return nil
}

func (o *Orchestrator) saveMemory(ctx context.Context, state *State, sess *session.State) error {
	o.manager.AddTurn(sess, session.RoleUser, state.Query)
	o.manager.AddTurn(sess, session.RoleAssistant, state.Answer)

	if o.manager.ShouldExtract(sess) {
		extracted := o.manager.Extract(ctx, sess)
		if len(extracted) > 0 {
			records := longterm.FromExtracted(state.UserID, extracted)
			if err := o.memories.Save(ctx, records); err != nil {
				return fmt.Errorf("persisting extracted memories: %w", err)
			}
			state.Metrics["memories_extracted"] = float64(len(records))
		}
	}

	if err := o.sessions.Put(ctx, sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// unmarshalLoose parses JSON out of model output that may carry prose
// or code fences around the object.
func unmarshalLoose(raw string, v interface{}) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object found")
	}
	return json.Unmarshal([]byte(raw[start:end+1]), v)
}

// Package main implements the advisor CLI: a course-advisor agent
// answering catalog questions over a local or remote model, with
// layered memory and semantic answer caching.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/catalog"
	"github.com/fyrsmithlabs/advisord/internal/config"
	"github.com/fyrsmithlabs/advisord/internal/embeddings"
	"github.com/fyrsmithlabs/advisord/internal/llm"
	"github.com/fyrsmithlabs/advisord/internal/logging"
	"github.com/fyrsmithlabs/advisord/internal/longterm"
	"github.com/fyrsmithlabs/advisord/internal/memory"
	"github.com/fyrsmithlabs/advisord/internal/react"
	"github.com/fyrsmithlabs/advisord/internal/semcache"
	"github.com/fyrsmithlabs/advisord/internal/session"
	"github.com/fyrsmithlabs/advisord/internal/telemetry"
	"github.com/fyrsmithlabs/advisord/internal/vectorstore"
	"github.com/fyrsmithlabs/advisord/internal/workflow"
)

var (
	configPath string
	userID     string
	sessionID  string
	showTrace  bool

	version = "dev"
)

// catalogThreshold filters concept-search results; exact code lookups
// bypass it.
const catalogThreshold = 0.25

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Course advisor agent",
	Long: `advisor answers course catalog questions - prerequisites, syllabi,
assignments, study planning - remembering each student's preferences
across conversations.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/advisord/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "default", "user identifier owning long-term memory")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session identifier (generated when empty)")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(seedCmd)
}

// app bundles the wired components behind the CLI commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	tel      *telemetry.Telemetry
	store    vectorstore.Store
	sessions session.Store
	catalog  *catalog.Service
	memories *longterm.Service
	orch     *workflow.Orchestrator
}

// buildApp wires the full stack for the given user. The reasoning
// loop's preference tools are bound to the user at construction, so
// one CLI invocation serves exactly one user.
func buildApp(ctx context.Context, user string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	telCfg := telemetry.NewDefaultConfig()
	telCfg.Enabled = cfg.Telemetry.Enabled
	telCfg.Endpoint = cfg.Telemetry.Endpoint
	telCfg.Protocol = cfg.Telemetry.Protocol
	telCfg.Insecure = cfg.Telemetry.Insecure
	telCfg.Metrics.Enabled = cfg.Telemetry.MetricsEnabled
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	embedder, err := embeddings.NewService(cfg.Embeddings, logger)
	if err != nil {
		return nil, fmt.Errorf("building embedding service: %w", err)
	}

	store, err := vectorstore.New(cfg.VectorStore, cfg.Embeddings.VectorSize, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("building vector store: %w", err)
	}

	sessions, err := session.New(cfg.Session, logger)
	if err != nil {
		return nil, fmt.Errorf("building session store: %w", err)
	}

	client, err := llm.NewOpenAIClient(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("building completion client: %w", err)
	}

	cat, err := catalog.NewService(store, cfg.Namespace, catalogThreshold, logger)
	if err != nil {
		return nil, fmt.Errorf("building catalog service: %w", err)
	}

	memories, err := longterm.NewService(store, cfg.Namespace, logger)
	if err != nil {
		return nil, fmt.Errorf("building long-term memory: %w", err)
	}

	var cache *semcache.Cache
	if cfg.Cache.Enabled {
		if cache, err = semcache.New(store, cfg.Namespace, cfg.Cache.Threshold, logger); err != nil {
			return nil, fmt.Errorf("building semantic cache: %w", err)
		}
	}

	manager := memory.NewManager(cfg.Memory, logger)

	var engine *react.Engine
	if cfg.Workflow.EnableReact {
		registry := react.NewRegistry(
			&react.CourseLookupTool{Catalog: cat},
			&react.SemanticSearchTool{Catalog: cat},
			&react.SavePreferenceTool{Memories: memories, UserID: user},
			&react.GetPreferencesTool{Memories: memories, UserID: user},
		)
		engine = react.NewEngine(client, registry, cfg.Workflow.MaxReactIterations, logger)
	}

	orch, err := workflow.New(cfg.Workflow, cfg.Cache, workflow.Deps{
		Client:   client,
		Sessions: sessions,
		Manager:  manager,
		Memories: memories,
		Cache:    cache,
		Catalog:  cat,
		Engine:   engine,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("building orchestrator: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		tel:      tel,
		store:    store,
		sessions: sessions,
		catalog:  cat,
		memories: memories,
		orch:     orch,
	}, nil
}

// close releases resources; errors are logged, not returned, since the
// process is exiting anyway.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.sessions.Close(); err != nil {
		a.logger.Warn("closing session store", zap.Error(err))
	}
	if closer, ok := a.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("closing vector store", zap.Error(err))
		}
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn("shutting down telemetry", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// printOutcome renders an answer (and, with --trace, the run details).
func printOutcome(outcome *workflow.Outcome) {
	fmt.Println(outcome.Answer)
	if !showTrace {
		return
	}

	fmt.Println("\n--- trace ---")
	fmt.Printf("intent:    %s\n", outcome.Intent)
	fmt.Printf("path:      %v\n", outcome.Path)
	fmt.Printf("cache hit: %v\n", outcome.CacheHit)
	for i, step := range outcome.Steps {
		fmt.Printf("step %d: thought=%q action=%s input=%q\n", i+1, step.Thought, step.Action, step.Input)
	}
	if ms, ok := outcome.Metrics["total_ms"]; ok {
		fmt.Printf("total:     %.0fms\n", ms)
	}
}

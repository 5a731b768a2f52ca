// Package config provides configuration loading for advisord.
//
// Configuration is loaded from a YAML file with environment variable
// overrides and hardcoded defaults. All advisord components receive
// their settings from the Config tree defined here.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete advisord configuration.
type Config struct {
	// Namespace partitions vector collections by deployment
	// (e.g., "advisord" -> advisord_catalog, advisord_cache, advisord_memories).
	Namespace string `koanf:"namespace"`

	LLM         LLMConfig         `koanf:"llm"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Session     SessionConfig     `koanf:"session"`
	Memory      MemoryConfig      `koanf:"memory"`
	Cache       CacheConfig       `koanf:"cache"`
	Workflow    WorkflowConfig    `koanf:"workflow"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// LLMConfig holds completion service settings.
type LLMConfig struct {
	// BaseURL is the OpenAI-compatible completion endpoint.
	BaseURL string `koanf:"base_url"`

	// Model is the completion model name.
	Model string `koanf:"model"`

	// APIKey authenticates against the completion service.
	APIKey Secret `koanf:"api_key"`

	// Timeout bounds a single completion call.
	Timeout Duration `koanf:"timeout"`

	// MaxTokens caps completion length per call.
	MaxTokens int `koanf:"max_tokens"`
}

// EmbeddingsConfig holds embedding service settings.
type EmbeddingsConfig struct {
	// BaseURL is the embedding API endpoint.
	// For TEI: http://localhost:8080/v1
	// For OpenAI: https://api.openai.com/v1
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// APIKey is required for OpenAI, optional for TEI.
	APIKey Secret `koanf:"api_key"`

	// VectorSize is the embedding dimensionality. Must match the model.
	VectorSize int `koanf:"vector_size"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider string `koanf:"provider"`

	Chromem ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`
}

// QdrantConfig configures the external Qdrant store.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// SessionConfig selects and configures the session store backend.
type SessionConfig struct {
	// Provider is "memory" (in-process, default) or "redis".
	Provider string `koanf:"provider"`

	// TTL is how long an idle session is retained.
	TTL Duration `koanf:"ttl"`

	Redis RedisConfig `koanf:"redis"`
}

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password Secret `koanf:"password"`
	DB       int    `koanf:"db"`
}

// MemoryConfig configures working memory and long-term extraction.
type MemoryConfig struct {
	// ExtractionThreshold is the turn count that triggers extraction.
	ExtractionThreshold int `koanf:"extraction_threshold"`

	// MinImportance is the minimum score (0-1) for promotion to
	// long-term memory.
	MinImportance float64 `koanf:"min_importance"`

	// ContextTokenBudget bounds working-memory context passed to the LLM.
	ContextTokenBudget int `koanf:"context_token_budget"`

	// CompressionStrategy is "priority" or "truncation".
	CompressionStrategy string `koanf:"compression_strategy"`

	// Keywords boost importance of turns mentioning domain terms.
	// Empty uses the built-in list.
	Keywords []string `koanf:"keywords"`
}

// CacheConfig configures the semantic answer cache.
type CacheConfig struct {
	Enabled bool `koanf:"enabled"`

	// Threshold is the minimum similarity score for a cache hit.
	Threshold float64 `koanf:"threshold"`
}

// WorkflowConfig configures the orchestrator.
type WorkflowConfig struct {
	// MaxResearchRounds bounds the research/evaluate cycle.
	MaxResearchRounds int `koanf:"max_research_rounds"`

	// MaxReactIterations bounds the reasoning loop.
	MaxReactIterations int `koanf:"max_react_iterations"`

	// EnableReact routes research through the reasoning loop in
	// addition to direct catalog retrieval.
	EnableReact bool `koanf:"enable_react"`

	// CallTimeout bounds each external call made by a workflow node.
	CallTimeout Duration `koanf:"call_timeout"`

	// ClassifyTemperature is used for classification/judgment calls.
	ClassifyTemperature float64 `koanf:"classify_temperature"`

	// SynthesisTemperature is used for answer synthesis.
	SynthesisTemperature float64 `koanf:"synthesis_temperature"`
}

// LoggingConfig holds logging settings consumed by internal/logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings consumed by
// internal/telemetry. Disabled by default.
type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`

	// Endpoint is the OTLP collector address (host:port).
	Endpoint string `koanf:"endpoint"`

	// Protocol is "grpc" or "http/protobuf".
	Protocol string `koanf:"protocol"`

	// Insecure allows plaintext export to local collectors.
	Insecure bool `koanf:"insecure"`

	// MetricsEnabled turns on metric export alongside traces.
	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// applyDefaults fills in defaults for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Namespace == "" {
		cfg.Namespace = "advisord"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.1"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(60 * time.Second)
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.VectorSize == 0 {
		cfg.Embeddings.VectorSize = 384
	}
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "~/.config/advisord/vectorstore"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.Session.Provider == "" {
		cfg.Session.Provider = "memory"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = Duration(24 * time.Hour)
	}
	if cfg.Session.Redis.Addr == "" {
		cfg.Session.Redis.Addr = "localhost:6379"
	}
	if cfg.Memory.ExtractionThreshold == 0 {
		cfg.Memory.ExtractionThreshold = 10
	}
	if cfg.Memory.MinImportance == 0 {
		cfg.Memory.MinImportance = 0.6
	}
	if cfg.Memory.ContextTokenBudget == 0 {
		cfg.Memory.ContextTokenBudget = 2000
	}
	if cfg.Memory.CompressionStrategy == "" {
		cfg.Memory.CompressionStrategy = "priority"
	}
	if cfg.Cache.Threshold == 0 {
		cfg.Cache.Threshold = 0.9
	}
	if cfg.Workflow.MaxResearchRounds == 0 {
		cfg.Workflow.MaxResearchRounds = 2
	}
	if cfg.Workflow.MaxReactIterations == 0 {
		cfg.Workflow.MaxReactIterations = 5
	}
	if cfg.Workflow.CallTimeout == 0 {
		cfg.Workflow.CallTimeout = Duration(30 * time.Second)
	}
	if cfg.Workflow.SynthesisTemperature == 0 {
		cfg.Workflow.SynthesisTemperature = 0.7
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace cannot be empty")
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unknown vectorstore provider: %q", c.VectorStore.Provider)
	}
	switch c.Session.Provider {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session provider: %q", c.Session.Provider)
	}
	switch c.Memory.CompressionStrategy {
	case "priority", "truncation":
	default:
		return fmt.Errorf("unknown compression strategy: %q", c.Memory.CompressionStrategy)
	}
	if c.Memory.MinImportance < 0 || c.Memory.MinImportance > 1 {
		return fmt.Errorf("memory.min_importance must be between 0 and 1, got %f", c.Memory.MinImportance)
	}
	if c.Cache.Threshold <= 0 || c.Cache.Threshold > 1 {
		return fmt.Errorf("cache.threshold must be between 0 and 1, got %f", c.Cache.Threshold)
	}
	if c.Workflow.MaxResearchRounds < 1 {
		return errors.New("workflow.max_research_rounds must be at least 1")
	}
	if c.Workflow.MaxReactIterations < 1 {
		return errors.New("workflow.max_react_iterations must be at least 1")
	}
	if c.Embeddings.VectorSize <= 0 {
		return errors.New("embeddings.vector_size must be positive")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown logging format: %q", c.Logging.Format)
	}
	return nil
}

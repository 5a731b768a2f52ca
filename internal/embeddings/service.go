// Package embeddings provides embedding generation via langchaingo.
//
// It wraps langchaingo's embeddings abstraction to generate vector
// embeddings for text content. Both local TEI (Text Embeddings
// Inference) servers and OpenAI's embedding API are supported through
// the OpenAI-compatible client.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/config"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Service generates vector embeddings for text. It satisfies
// vectorstore.Embedder.
type Service struct {
	embedder *embeddings.EmbedderImpl
	config   config.EmbeddingsConfig
	logger   *zap.Logger
}

// NewService creates an embedding service from config.
//
// The OpenAI client with a custom base URL works for both the OpenAI
// API and TEI (OpenAI-compatible).
func NewService(cfg config.EmbeddingsConfig, logger *zap.Logger) (*Service, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// langchaingo requires a token, use placeholder for TEI
	apiKey := cfg.APIKey.Value()
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	logger.Info("embedding service initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.Int("vector_size", cfg.VectorSize),
	)

	return &Service{
		embedder: embedder,
		config:   cfg,
		logger:   logger,
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vector, nil
}

// VectorSize returns the configured embedding dimensionality.
func (s *Service) VectorSize() int {
	return s.config.VectorSize
}

// Package llm provides a uniform interface to a text-completion
// capability. The workflow and reasoning loop depend only on the
// Client interface; the production implementation wraps langchaingo's
// OpenAI-compatible client so local servers (Ollama, vLLM, TEI-style
// gateways) and hosted APIs work interchangeably.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/config"
)

var tracer = otel.Tracer("advisord.llm")

// Sentinel errors for completion operations.
var (
	// ErrEmptyPrompt indicates an empty prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrCompletionFailed indicates the completion service returned an error.
	ErrCompletionFailed = errors.New("completion failed")
)

// Client is the interface to a text-completion capability.
//
// Implementations must support deterministic low-temperature operation
// for classification and judgment calls, and higher temperature for
// synthesis. JSON-constrained output is requested via WithJSONOutput.
type Client interface {
	// Complete generates a completion for the prompt.
	Complete(ctx context.Context, prompt string, opts ...Option) (string, error)
}

// OpenAIClient implements Client over an OpenAI-compatible endpoint.
type OpenAIClient struct {
	model  llms.Model
	config config.LLMConfig
	logger *zap.Logger
}

// NewOpenAIClient creates a completion client from config.
func NewOpenAIClient(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// langchaingo requires a token, use placeholder for local servers
	apiKey := cfg.APIKey.Value()
	if apiKey == "" {
		apiKey = "placeholder"
	}

	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	logger.Info("completion client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
	)

	return &OpenAIClient{
		model:  model,
		config: cfg,
		logger: logger,
	}, nil
}

// Complete generates a completion for the prompt.
//
// Every call carries a timeout (per-call override or the configured
// default); a deadline expiry surfaces as context.DeadlineExceeded
// wrapped in ErrCompletionFailed.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, opts ...Option) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIClient.Complete")
	defer span.End()

	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	options := defaultCallOptions(c.config)
	for _, opt := range opts {
		opt(&options)
	}

	span.SetAttributes(
		attribute.String("model", c.config.Model),
		attribute.Float64("temperature", options.temperature),
		attribute.Bool("json_output", options.jsonOutput),
		attribute.Int("prompt_chars", len(prompt)),
	)

	ctx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	callOpts := []llms.CallOption{
		llms.WithTemperature(options.temperature),
		llms.WithMaxTokens(options.maxTokens),
	}
	if options.jsonOutput {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	start := time.Now()
	completion, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, callOpts...)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("completion call failed",
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	span.SetAttributes(attribute.Int("completion_chars", len(completion)))
	span.SetStatus(codes.Ok, "success")

	c.logger.Debug("completion call succeeded",
		zap.Duration("elapsed", elapsed),
		zap.Int("completion_chars", len(completion)),
	)

	return completion, nil
}

package llm

import (
	"time"

	"github.com/fyrsmithlabs/advisord/internal/config"
)

// callOptions holds per-call settings.
type callOptions struct {
	temperature float64
	maxTokens   int
	jsonOutput  bool
	timeout     time.Duration
}

// Option configures a single Complete call.
type Option func(*callOptions)

// defaultCallOptions derives defaults from the client config.
func defaultCallOptions(cfg config.LLMConfig) callOptions {
	timeout := cfg.Timeout.Duration()
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return callOptions{
		temperature: 0.0,
		maxTokens:   maxTokens,
		timeout:     timeout,
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *callOptions) { o.temperature = t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(o *callOptions) { o.maxTokens = n }
}

// WithJSONOutput requests JSON-constrained output, used for
// classification and tool-call selection.
func WithJSONOutput() Option {
	return func(o *callOptions) { o.jsonOutput = true }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *callOptions) { o.timeout = d }
}

package llm

import (
	"context"
	"sync"
)

// FakeClient is a scripted Client for tests. Responses are returned in
// order; when the script is exhausted the fallback is returned. Every
// prompt is recorded for assertions.
type FakeClient struct {
	mu sync.Mutex

	// Responses are returned in order, one per Complete call.
	Responses []string

	// Errors, when non-nil at the call index, is returned instead of
	// the response at that index.
	Errors []error

	// Fallback is returned once Responses are exhausted.
	Fallback string

	// Prompts records every prompt passed to Complete.
	Prompts []string

	calls int
}

var _ Client = (*FakeClient)(nil)

// Complete returns the next scripted response.
func (f *FakeClient) Complete(ctx context.Context, prompt string, opts ...Option) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.Prompts = append(f.Prompts, prompt)
	idx := f.calls
	f.calls++

	if idx < len(f.Errors) && f.Errors[idx] != nil {
		return "", f.Errors[idx]
	}
	if idx < len(f.Responses) {
		return f.Responses[idx], nil
	}
	return f.Fallback, nil
}

// CallCount returns the number of Complete calls made.
func (f *FakeClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Package react implements the bounded reasoning loop: the model
// alternates thoughts and tool calls against a fixed registry until it
// finishes or hits the iteration cap.
package react

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/llm"
)

var tracer = otel.Tracer("advisord.react")

// DefaultMaxIterations bounds the loop when no cap is configured.
const DefaultMaxIterations = 5

// Step is one completed loop iteration.
type Step struct {
	Thought     string `json:"thought"`
	Action      Action `json:"action"`
	Input       string `json:"input"`
	Observation string `json:"observation"`
}

// Outcome is the result of one reasoning run.
type Outcome struct {
	// Answer is the final answer, or the best available partial answer
	// when the cap was hit.
	Answer string

	// Steps is the full trace in iteration order.
	Steps []Step

	// Iterations is the number of loop iterations actually used.
	Iterations int

	// Success is true when the model finished within the cap.
	Success bool
}

// decision is what the model returns each iteration.
type decision struct {
	Thought string `json:"thought"`
	Action  string `json:"action"`
	Input   string `json:"input"`
}

// Engine runs the reasoning loop.
//
// The engine executes faithfully and terminates within the cap; which
// tool to use, and whether to look up by code or search by concept, is
// the model's call each step.
type Engine struct {
	client        llm.Client
	registry      *Registry
	maxIterations int
	temperature   float64
	logger        *zap.Logger
}

// NewEngine creates a reasoning engine. maxIterations <= 0 selects
// DefaultMaxIterations.
func NewEngine(client llm.Client, registry *Registry, maxIterations int, logger *zap.Logger) *Engine {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:        client,
		registry:      registry,
		maxIterations: maxIterations,
		temperature:   0.2,
		logger:        logger,
	}
}

// Run executes the loop for a query. history is optional prior-turn
// context rendered into the prompt. Run never returns an error for
// model missteps (unknown tools, bad input, tool failures) - those
// become observations; it errors only when the completion service
// itself is unreachable on the first step.
func (e *Engine) Run(ctx context.Context, query, history string) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "react.Run")
	defer span.End()

	span.SetAttributes(
		attribute.Int("max_iterations", e.maxIterations),
	)

	outcome := &Outcome{}

	for i := 0; i < e.maxIterations; i++ {
		outcome.Iterations = i + 1

		prompt := e.buildPrompt(query, history, outcome.Steps)
		raw, err := e.client.Complete(ctx, prompt,
			llm.WithTemperature(e.temperature),
			llm.WithJSONOutput(),
		)
		if err != nil {
			if len(outcome.Steps) == 0 {
				span.RecordError(err)
				return nil, fmt.Errorf("reasoning step %d: %w", i+1, err)
			}
			// Mid-run completion failure: salvage what we have.
			e.logger.Warn("completion failed mid-run, returning partial answer",
				zap.Int("iteration", i+1),
				zap.Error(err),
			)
			break
		}

		dec, err := parseDecision(raw)
		if err != nil {
			// Malformed output is recoverable: reflect it back so the
			// model can correct itself next iteration.
			outcome.Steps = append(outcome.Steps, Step{
				Thought:     raw,
				Action:      "",
				Observation: fmt.Sprintf("Your response could not be parsed (%v). Reply with JSON: {\"thought\": ..., \"action\": ..., \"input\": ...}.", err),
			})
			continue
		}

		action := Action(strings.ToLower(strings.TrimSpace(dec.Action)))
		if action == ActionFinish {
			outcome.Steps = append(outcome.Steps, Step{
				Thought: dec.Thought,
				Action:  ActionFinish,
				Input:   dec.Input,
			})
			outcome.Answer = dec.Input
			outcome.Success = true
			break
		}

		observation := e.dispatch(ctx, action, dec.Input)
		outcome.Steps = append(outcome.Steps, Step{
			Thought:     dec.Thought,
			Action:      action,
			Input:       dec.Input,
			Observation: observation,
		})
	}

	if !outcome.Success {
		outcome.Answer = e.partialAnswer(outcome.Steps)
	}

	span.SetAttributes(
		attribute.Int("iterations", outcome.Iterations),
		attribute.Bool("success", outcome.Success),
	)
	e.logger.Debug("reasoning run finished",
		zap.Int("iterations", outcome.Iterations),
		zap.Bool("success", outcome.Success),
	)
	return outcome, nil
}

// dispatch runs the named tool and always returns an observation,
// folding errors into it.
func (e *Engine) dispatch(ctx context.Context, action Action, input string) string {
	tool, err := e.registry.Get(action)
	if err != nil {
		return fmt.Sprintf("Error: %v. Available actions:\n%s", err, e.registry.Describe())
	}
	observation, err := tool.Call(ctx, input)
	if err != nil {
		return fmt.Sprintf("Error from %s: %v", action, err)
	}
	return observation
}

// partialAnswer returns the last useful observation, or a canned
// fallback when there is none.
func (e *Engine) partialAnswer(steps []Step) string {
	for i := len(steps) - 1; i >= 0; i-- {
		obs := steps[i].Observation
		if obs != "" && !strings.HasPrefix(obs, "Error") && !strings.HasPrefix(obs, "Your response") {
			return obs
		}
	}
	return "I could not work out a complete answer to that. Could you rephrase the question?"
}

func (e *Engine) buildPrompt(query, history string, steps []Step) string {
	var b strings.Builder
	b.WriteString("You are a course advisor working step by step.\n")
	b.WriteString("Each turn, reply with exactly one JSON object: ")
	b.WriteString(`{"thought": "<your reasoning>", "action": "<one action name>", "input": "<the action input>"}` + "\n\n")
	b.WriteString("Available actions:\n")
	b.WriteString(e.registry.Describe())
	b.WriteString("- finish: Stop and answer; put the complete final answer in \"input\".\n")

	if history != "" {
		b.WriteString("\nConversation so far:\n")
		b.WriteString(history)
		b.WriteString("\n")
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\n")

	for _, s := range steps {
		fmt.Fprintf(&b, "\nThought: %s\nAction: %s\nInput: %s\nObservation: %s\n",
			s.Thought, s.Action, s.Input, s.Observation)
	}

	b.WriteString("\nNext step:")
	return b.String()
}

// parseDecision extracts the JSON decision from raw model output,
// tolerating prose or code fences around the object.
func parseDecision(raw string) (*decision, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found")
	}

	var dec decision
	if err := json.Unmarshal([]byte(raw[start:end+1]), &dec); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v", err)
	}
	if strings.TrimSpace(dec.Action) == "" {
		return nil, fmt.Errorf("missing action")
	}
	return &dec, nil
}

package react

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/advisord/internal/catalog"
	"github.com/fyrsmithlabs/advisord/internal/longterm"
	"github.com/fyrsmithlabs/advisord/internal/memory"
)

// Action names the tools the reasoning loop can dispatch. FINISH is the
// terminal pseudo-action carrying the final answer as its input.
type Action string

const (
	ActionCourseLookup   Action = "course_lookup"
	ActionSemanticSearch Action = "semantic_search"
	ActionSavePreference Action = "save_preference"
	ActionGetPreferences Action = "get_preferences"
	ActionFinish         Action = "finish"
)

// ErrUnknownAction is returned when the model names a tool that is not
// registered. It is recoverable: the engine feeds it back as an
// observation.
var ErrUnknownAction = errors.New("unknown action")

// Tool is one dispatchable capability. Tools return textual
// observations; a returned error is also fed back to the model as an
// observation rather than aborting the loop.
type Tool interface {
	Name() Action
	Description() string
	Call(ctx context.Context, input string) (string, error)
}

// Registry is a fixed set of tools keyed by action name.
type Registry struct {
	tools []Tool
	index map[Action]Tool
}

// NewRegistry builds a registry from tools. Later registrations of the
// same action replace earlier ones.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{index: make(map[Action]Tool, len(tools))}
	for _, t := range tools {
		if _, seen := r.index[t.Name()]; !seen {
			r.tools = append(r.tools, t)
		}
		r.index[t.Name()] = t
	}
	return r
}

// Get returns the tool for an action, or ErrUnknownAction.
func (r *Registry) Get(action Action) (Tool, error) {
	tool, ok := r.index[action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return tool, nil
}

// Describe renders the tool list for the prompt.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, t := range r.tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
	}
	return b.String()
}

// CourseLookupTool fetches one course by exact code.
type CourseLookupTool struct {
	Catalog *catalog.Service
}

func (t *CourseLookupTool) Name() Action { return ActionCourseLookup }

func (t *CourseLookupTool) Description() string {
	return "Fetch one course by its exact code (input: a course code like CS004)."
}

func (t *CourseLookupTool) Call(ctx context.Context, input string) (string, error) {
	code := catalog.ExtractCourseCode(input)
	if code == "" {
		code = strings.ToUpper(strings.TrimSpace(input))
	}
	result, err := t.Catalog.Lookup(ctx, code)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

// SemanticSearchTool searches the catalog by concept.
type SemanticSearchTool struct {
	Catalog *catalog.Service
	K       int
}

func (t *SemanticSearchTool) Name() Action { return ActionSemanticSearch }

func (t *SemanticSearchTool) Description() string {
	return "Search the course catalog by topic or concept (input: free text like 'linear algebra')."
}

func (t *SemanticSearchTool) Call(ctx context.Context, input string) (string, error) {
	k := t.K
	if k <= 0 {
		k = 3
	}
	results, err := t.Catalog.Search(ctx, input, k)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No courses matched that query.", nil
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(r.Content)
	}
	return b.String(), nil
}

// SavePreferenceTool writes a stated preference to long-term memory.
// The owning user is bound at construction so the model cannot write
// into another user's memory.
type SavePreferenceTool struct {
	Memories *longterm.Service
	UserID   string
}

func (t *SavePreferenceTool) Name() Action { return ActionSavePreference }

func (t *SavePreferenceTool) Description() string {
	return "Remember a preference the student stated (input: the preference as one sentence)."
}

func (t *SavePreferenceTool) Call(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("preference text is empty")
	}
	err := t.Memories.Save(ctx, []longterm.Record{{
		UserID:     t.UserID,
		Content:    input,
		Kind:       memory.KindPreference,
		Importance: 0.8,
	}})
	if err != nil {
		return "", err
	}
	return "Preference saved.", nil
}

// GetPreferencesTool reads the user's stored preferences and facts.
type GetPreferencesTool struct {
	Memories *longterm.Service
	UserID   string
	K        int
}

func (t *GetPreferencesTool) Name() Action { return ActionGetPreferences }

func (t *GetPreferencesTool) Description() string {
	return "Recall what is known about the student (input: optional topic to focus on)."
}

func (t *GetPreferencesTool) Call(ctx context.Context, input string) (string, error) {
	k := t.K
	if k <= 0 {
		k = 5
	}
	query := strings.TrimSpace(input)
	var (
		records []longterm.Record
		err     error
	)
	if query == "" {
		records, err = t.Memories.Recent(ctx, t.UserID, k)
	} else {
		records, err = t.Memories.Search(ctx, t.UserID, query, k)
	}
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "Nothing is known about the student yet.", nil
	}
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "- [%s] %s\n", r.Kind, r.Content)
	}
	return b.String(), nil
}

package workflow

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/advisord/internal/longterm"
	"github.com/fyrsmithlabs/advisord/internal/session"
)

const classifyPrompt = `Classify the student's question into exactly one intent.

Intents:
- GREETING: salutations, small talk, no information request
- PREREQUISITES: what must be taken before a course
- SYLLABUS_OBJECTIVES: course content, topics, learning objectives
- ASSIGNMENTS: homework, projects, grading, workload
- GENERAL: anything else about courses or study planning

Question: %s

Reply with JSON: {"intent": "<label>"}`

const extractEntitiesPrompt = `Extract named entities from the student's question.

Entity types: course_code (like CS004), topic (a subject area), term (a semester or year).
Only include types that are present.

Question: %s

Reply with JSON: {"entities": {"<type>": "<text>"}}`

const decomposePrompt = `If the question bundles several distinct questions, split it into
atomic sub-questions, in order. A single question stays as one item.

Question: %s

Reply with JSON: {"sub_queries": ["..."]}`

const evaluatePrompt = `Judge whether the evidence below is sufficient to answer the
question confidently.

Question: %s

Evidence:
%s

Reply with JSON: {"sufficient": true|false, "rationale": "<one sentence>"}`

const synthesizePrompt = `You are a course advisor. Answer the student's question using the
evidence and what you know about them. Be concrete and cite course
codes where relevant. If the evidence does not cover the question, say
what you do know and what you could not find.

%s%sQuestion: %s

Evidence:
%s

Answer:`

// renderEvidence formats evidence records for a prompt.
func renderEvidence(evidence []Evidence) string {
	if len(evidence) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, e := range evidence {
		fmt.Fprintf(&b, "[%d] (%s, score %.2f)\n%s\n", i+1, e.Source, e.Score, strings.TrimSpace(e.Content))
	}
	return b.String()
}

// renderHistory formats a turn window as conversation context, empty
// string when there are no turns.
func renderHistory(turns []session.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	b.WriteString("\n")
	return b.String()
}

// renderMemories formats long-term records as student context.
func renderMemories(records []longterm.Record) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("About the student:\n")
	for _, r := range records {
		fmt.Fprintf(&b, "- [%s] %s\n", r.Kind, r.Content)
	}
	b.WriteString("\n")
	return b.String()
}

// greetingAnswer is the canned greeting response; greetings need no
// completion call. The student's name is unknown, so it stays generic.
func greetingAnswer(memories []longterm.Record) string {
	if len(memories) > 0 {
		return "Hello again! Ask me about courses, prerequisites, syllabi, or assignments whenever you're ready."
	}
	return "Hello! I'm your course advisor. Ask me about courses, prerequisites, syllabi, or assignments."
}

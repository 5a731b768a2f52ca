// Package catalog stores the course catalog and answers retrieval
// requests: exact lookups by course code and similarity search by
// concept.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/vectorstore"
)

var tracer = otel.Tracer("advisord.catalog")

// Sentinel errors.
var (
	// ErrCourseNotFound is returned when a course code matches nothing.
	ErrCourseNotFound = errors.New("course not found")
)

// courseCodePattern matches catalog identifiers like "CS004" or
// "MATH201". A query that IS a course code gets an exact metadata
// lookup; anything else goes through similarity search.
var courseCodePattern = regexp.MustCompile(`^[A-Z]{2,4}\d{3}$`)

// IsCourseCode reports whether the query is a bare course identifier.
// Matching is case-insensitive on input; codes are stored uppercase.
func IsCourseCode(query string) bool {
	return courseCodePattern.MatchString(strings.ToUpper(strings.TrimSpace(query)))
}

// ExtractCourseCode finds the first course code embedded in free text,
// or "" if none.
var embeddedCodePattern = regexp.MustCompile(`\b[A-Za-z]{2,4}\d{3}\b`)

func ExtractCourseCode(text string) string {
	match := embeddedCodePattern.FindString(text)
	return strings.ToUpper(match)
}

// Course is one catalog record.
type Course struct {
	Code          string   `yaml:"code" json:"code"`
	Title         string   `yaml:"title" json:"title"`
	Description   string   `yaml:"description" json:"description"`
	Prerequisites []string `yaml:"prerequisites" json:"prerequisites"`
	Objectives    []string `yaml:"objectives" json:"objectives"`
	Assignments   []string `yaml:"assignments" json:"assignments"`
	Credits       int      `yaml:"credits" json:"credits"`
}

// Document renders the course as the text that gets embedded for
// similarity search.
func (c Course) Document() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n%s\n", c.Code, c.Title, c.Description)
	if len(c.Prerequisites) > 0 {
		fmt.Fprintf(&b, "Prerequisites: %s\n", strings.Join(c.Prerequisites, ", "))
	}
	if len(c.Objectives) > 0 {
		fmt.Fprintf(&b, "Objectives: %s\n", strings.Join(c.Objectives, "; "))
	}
	if len(c.Assignments) > 0 {
		fmt.Fprintf(&b, "Assignments: %s\n", strings.Join(c.Assignments, "; "))
	}
	return b.String()
}

// Result pairs a course document with its retrieval score.
type Result struct {
	Code    string
	Content string
	Score   float32
}

// Service answers catalog retrieval over the {namespace}_catalog
// collection.
type Service struct {
	store      vectorstore.Store
	collection string
	threshold  float32
	logger     *zap.Logger
}

// NewService creates a catalog service. threshold filters similarity
// results; exact code lookups bypass it.
func NewService(store vectorstore.Store, namespace string, threshold float64, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("vector store is required")
	}
	if namespace == "" {
		namespace = "advisord"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	collection := namespace + "_catalog"
	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	return &Service{
		store:      store,
		collection: collection,
		threshold:  float32(threshold),
		logger:     logger,
	}, nil
}

// Seed loads courses into the catalog. Course codes are document IDs,
// so re-seeding overwrites in place rather than duplicating.
func (s *Service) Seed(ctx context.Context, courses []Course) error {
	ctx, span := tracer.Start(ctx, "catalog.Seed")
	defer span.End()

	span.SetAttributes(attribute.Int("course_count", len(courses)))

	if len(courses) == 0 {
		return errors.New("no courses to seed")
	}

	docs := make([]vectorstore.Document, len(courses))
	for i, course := range courses {
		code := strings.ToUpper(strings.TrimSpace(course.Code))
		if code == "" {
			return fmt.Errorf("course at index %d has no code", i)
		}
		docs[i] = vectorstore.Document{
			ID:      strings.ToLower(code),
			Content: course.Document(),
			Metadata: map[string]interface{}{
				"course_code": code,
				"title":       course.Title,
			},
			Collection: s.collection,
		}
	}

	if _, err := s.store.AddDocuments(ctx, docs); err != nil {
		span.RecordError(err)
		return fmt.Errorf("seeding catalog: %w", err)
	}

	s.logger.Info("seeded course catalog", zap.Int("courses", len(courses)))
	return nil
}

// Lookup fetches a single course by its exact code, bypassing any
// similarity threshold.
func (s *Service) Lookup(ctx context.Context, code string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "catalog.Lookup")
	defer span.End()

	code = strings.ToUpper(strings.TrimSpace(code))
	span.SetAttributes(attribute.String("course_code", code))

	if code == "" {
		return nil, fmt.Errorf("%w: empty course code", ErrCourseNotFound)
	}

	// Metadata filter narrows to the one course; the query text only
	// supplies an embedding vector, its content does not matter for a
	// filtered single-record fetch.
	results, err := s.store.SearchInCollection(ctx, s.collection, code, 1,
		map[string]interface{}{"course_code": code})
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return nil, ErrCourseNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("looking up course %s: %w", code, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, code)
	}

	return &Result{Code: code, Content: results[0].Content, Score: results[0].Score}, nil
}

// Search runs the appropriate retrieval for the query: a bare course
// code routes to exact Lookup, anything else to similarity search with
// the threshold applied.
func (s *Service) Search(ctx context.Context, query string, k int) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "catalog.Search")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if k <= 0 {
		k = 3
	}

	if IsCourseCode(query) {
		span.SetAttributes(attribute.String("strategy", "exact"))
		result, err := s.Lookup(ctx, query)
		if err != nil {
			if errors.Is(err, ErrCourseNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []Result{*result}, nil
	}

	span.SetAttributes(attribute.String("strategy", "semantic"))
	results, err := s.store.SearchInCollection(ctx, s.collection, query, k, nil)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("searching catalog: %w", err)
	}

	out := make([]Result, 0, len(results))
	for _, res := range results {
		if res.Score < s.threshold {
			continue
		}
		code, _ := res.Metadata["course_code"].(string)
		out = append(out, Result{Code: code, Content: res.Content, Score: res.Score})
	}

	span.SetAttributes(attribute.Int("results_count", len(out)))
	return out, nil
}

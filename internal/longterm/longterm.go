// Package longterm persists extracted memories per user and retrieves
// them by semantic similarity.
//
// Records live in the {namespace}_memories collection; every record is
// tagged with its owning user ID, and all reads filter on it, so one
// user's memories never surface in another user's session.
package longterm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/advisord/internal/memory"
	"github.com/fyrsmithlabs/advisord/internal/vectorstore"
)

var tracer = otel.Tracer("advisord.longterm")

// Sentinel errors.
var (
	// ErrInvalidRecord indicates a record missing required fields.
	ErrInvalidRecord = errors.New("invalid memory record")
)

// Record is one persisted long-term memory.
type Record struct {
	ID         string
	UserID     string
	Content    string
	Kind       memory.Kind
	Tags       []string
	Importance float64
	CreatedAt  time.Time
}

// Validate checks required fields.
func (r *Record) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user ID is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidRecord)
	}
	return nil
}

// Service stores and searches long-term memories.
type Service struct {
	store      vectorstore.Store
	collection string
	logger     *zap.Logger
}

// NewService creates a long-term memory service writing to the
// {namespace}_memories collection.
func NewService(store vectorstore.Store, namespace string, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("vector store is required")
	}
	if namespace == "" {
		namespace = "advisord"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	collection := namespace + "_memories"
	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	return &Service{store: store, collection: collection, logger: logger}, nil
}

// Save persists records for a user. Records without an ID get one
// assigned; the assigned IDs are visible on the passed slice afterward.
// Writes are append-only.
func (s *Service) Save(ctx context.Context, records []Record) error {
	ctx, span := tracer.Start(ctx, "longterm.Save")
	defer span.End()

	span.SetAttributes(attribute.Int("record_count", len(records)))

	if len(records) == 0 {
		return nil
	}

	docs := make([]vectorstore.Document, len(records))
	for i := range records {
		r := &records[i]
		if err := r.Validate(); err != nil {
			span.RecordError(err)
			return err
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		docs[i] = vectorstore.Document{
			ID:      r.ID,
			Content: r.Content,
			Metadata: map[string]interface{}{
				"user_id":    r.UserID,
				"kind":       string(r.Kind),
				"tags":       strings.Join(r.Tags, ","),
				"importance": strconv.FormatFloat(r.Importance, 'f', 3, 64),
				"created_at": r.CreatedAt.UTC().Format(time.RFC3339),
			},
			Collection: s.collection,
		}
	}

	if _, err := s.store.AddDocuments(ctx, docs); err != nil {
		span.RecordError(err)
		return fmt.Errorf("saving memories: %w", err)
	}

	s.logger.Debug("saved long-term memories",
		zap.String("user_id", records[0].UserID),
		zap.Int("count", len(records)),
	)
	return nil
}

// Search returns up to k memories for the user, most similar first.
// A missing collection means no memories yet, not an error.
func (s *Service) Search(ctx context.Context, userID, query string, k int) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "longterm.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("k", k),
	)

	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrInvalidRecord)
	}
	if k <= 0 {
		k = 5
	}

	results, err := s.store.SearchInCollection(ctx, s.collection, query, k,
		map[string]interface{}{"user_id": userID})
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("searching memories: %w", err)
	}

	records := make([]Record, 0, len(results))
	for _, res := range results {
		records = append(records, recordFromResult(userID, res))
	}

	span.SetAttributes(attribute.Int("results_count", len(records)))
	return records, nil
}

// Recent returns the user's memories for session bootstrap, using the
// user ID itself as the similarity probe. A dedicated recency index is
// not worth a second storage path for the catalog-advisor workload.
func (s *Service) Recent(ctx context.Context, userID string, k int) ([]Record, error) {
	return s.Search(ctx, userID, "preferences goals facts about the student", k)
}

// Clear deletes all memories for a user.
func (s *Service) Clear(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "longterm.Clear")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	if userID == "" {
		return fmt.Errorf("%w: user ID is required", ErrInvalidRecord)
	}

	// Page through the user's memories and delete by ID; the Store
	// interface has no delete-by-filter.
	for {
		results, err := s.store.SearchInCollection(ctx, s.collection, userID, 100,
			map[string]interface{}{"user_id": userID})
		if err != nil {
			if errors.Is(err, vectorstore.ErrCollectionNotFound) {
				return nil
			}
			span.RecordError(err)
			return fmt.Errorf("listing memories for deletion: %w", err)
		}
		if len(results) == 0 {
			return nil
		}
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.ID
		}
		if err := s.store.DeleteDocumentsFromCollection(ctx, s.collection, ids); err != nil {
			span.RecordError(err)
			return fmt.Errorf("deleting memories: %w", err)
		}
	}
}

func recordFromResult(userID string, res vectorstore.SearchResult) Record {
	record := Record{
		ID:      res.ID,
		UserID:  userID,
		Content: res.Content,
	}
	if v, ok := res.Metadata["kind"].(string); ok {
		record.Kind = memory.Kind(v)
	}
	if v, ok := res.Metadata["tags"].(string); ok && v != "" {
		record.Tags = strings.Split(v, ",")
	}
	if v, ok := res.Metadata["importance"].(string); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			record.Importance = f
		}
	}
	if v, ok := res.Metadata["created_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			record.CreatedAt = ts
		}
	}
	return record
}

// FromExtracted converts working-memory extractions into records for
// the given user.
func FromExtracted(userID string, extracted []memory.Extracted) []Record {
	records := make([]Record, len(extracted))
	for i, e := range extracted {
		records[i] = Record{
			UserID:     userID,
			Content:    e.Content,
			Kind:       e.Kind,
			Tags:       e.Tags,
			Importance: e.Importance,
			CreatedAt:  e.Timestamp,
		}
	}
	return records
}

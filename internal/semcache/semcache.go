// Package semcache implements the semantic answer cache: queries are
// matched against previously answered queries by embedding similarity,
// so a paraphrase of an answered question skips the research pipeline.
package semcache

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

	"github.com/fyrsmithlabs/advisord/internal/vectorstore"
)

var tracer = otel.Tracer("advisord.semcache")

// DefaultThreshold is the minimum similarity for a cache hit. 0.9 keeps
// hits to near-paraphrases; looser thresholds start returning answers
// to adjacent but different questions.
const DefaultThreshold = 0.9

// Entry is a cached question/answer pair.
type Entry struct {
	ID         string
	Query      string
	Answer     string
	Hits       int
	Similarity float32
	CreatedAt  time.Time
}

// Cache is the semantic cache gate over the vector store.
//
// Writes are idempotent-overwrite keyed by entry ID; there is no
// eviction beyond what the underlying store offers. Hit counts exist
// for observability, they do not drive eviction.
type Cache struct {
	store      vectorstore.Store
	collection string
	threshold  float32
	logger     *zap.Logger
}

// New creates a cache over the {namespace}_cache collection.
// threshold <= 0 selects DefaultThreshold.
func New(store vectorstore.Store, namespace string, threshold float64, logger *zap.Logger) (*Cache, error) {
	if store == nil {
		return nil, errors.New("vector store is required")
	}
	if namespace == "" {
		namespace = "advisord"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if threshold > 1 {
		return nil, fmt.Errorf("cache threshold must be in (0,1], got %v", threshold)
	}
	collection := namespace + "_cache"
	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	return &Cache{
		store:      store,
		collection: collection,
		threshold:  float32(threshold),
		logger:     logger,
	}, nil
}

// Lookup returns the cached entry nearest to query if its similarity
// meets the threshold. The second return is false on a miss. A hit
// increments the entry's hit count.
func (c *Cache) Lookup(ctx context.Context, query string) (*Entry, bool, error) {
	ctx, span := tracer.Start(ctx, "semcache.Lookup")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, false, errors.New("query cannot be empty")
	}

	results, err := c.store.SearchInCollection(ctx, c.collection, query, 1, nil)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			span.SetAttributes(attribute.Bool("cache_hit", false))
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}

	if len(results) == 0 || results[0].Score < c.threshold {
		span.SetAttributes(attribute.Bool("cache_hit", false))
		return nil, false, nil
	}

	entry := entryFromResult(results[0])
	entry.Hits++

	// Persist the bumped hit count. Failure here costs a counter, not
	// the answer.
	if err := c.upsert(ctx, entry); err != nil {
		c.logger.Warn("failed to persist cache hit count",
			zap.String("entry_id", entry.ID),
			zap.Error(err),
		)
	}

	span.SetAttributes(
		attribute.Bool("cache_hit", true),
		attribute.Float64("similarity", float64(entry.Similarity)),
		attribute.Int("hits", entry.Hits),
	)
	c.logger.Debug("semantic cache hit",
		zap.String("entry_id", entry.ID),
		zap.Float32("similarity", entry.Similarity),
	)
	return entry, true, nil
}

// Store caches an answer for a query. Only quality-passed answers
// belong here; the caller enforces that gate.
func (c *Cache) Store(ctx context.Context, query, answer string) error {
	ctx, span := tracer.Start(ctx, "semcache.Store")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return errors.New("query cannot be empty")
	}
	if strings.TrimSpace(answer) == "" {
		return errors.New("answer cannot be empty")
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		Query:     query,
		Answer:    answer,
		CreatedAt: time.Now(),
	}
	if err := c.upsert(ctx, entry); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache store: %w", err)
	}

	span.SetAttributes(attribute.String("entry_id", entry.ID))
	return nil
}

func (c *Cache) upsert(ctx context.Context, entry *Entry) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := c.store.AddDocuments(ctx, []vectorstore.Document{{
		ID:      entry.ID,
		Content: entry.Query,
		Metadata: map[string]interface{}{
			"answer":     entry.Answer,
			"hits":       strconv.Itoa(entry.Hits),
			"created_at": created.UTC().Format(time.RFC3339),
		},
		Collection: c.collection,
	}})
	return err
}

func entryFromResult(res vectorstore.SearchResult) *Entry {
	entry := &Entry{
		ID:         res.ID,
		Query:      res.Content,
		Similarity: res.Score,
	}
	if v, ok := res.Metadata["answer"].(string); ok {
		entry.Answer = v
	}
	if v, ok := res.Metadata["hits"].(string); ok {
		if n, err := strconv.Atoi(v); err == nil {
			entry.Hits = n
		}
	}
	if v, ok := res.Metadata["created_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			entry.CreatedAt = ts
		}
	}
	return entry
}

package embeddings

import (
	"context"
	"hash/fnv"
	"math"
)

// StubEmbedder produces deterministic embeddings without a network
// call. Texts sharing words produce nearby vectors, which is enough
// for similarity assertions in tests.
type StubEmbedder struct {
	// Dim is the vector dimensionality (default 8).
	Dim int
}

// EmbedDocuments generates deterministic embeddings for texts.
func (s *StubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.embed(t)
	}
	return out, nil
}

// EmbedQuery generates a deterministic embedding for a single text.
func (s *StubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.embed(text), nil
}

func (s *StubEmbedder) embed(text string) []float32 {
	dim := s.Dim
	if dim == 0 {
		dim = 8
	}

	vec := make([]float64, dim)
	// Bag-of-words hashing: each word bumps one dimension, so shared
	// vocabulary yields high cosine similarity.
	word := make([]byte, 0, 16)
	flush := func() {
		if len(word) == 0 {
			return
		}
		h := fnv.New32a()
		_, _ = h.Write(word)
		vec[int(h.Sum32())%dim]++
		word = word[:0]
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ' ' || c == '\t' || c == '\n' {
			flush()
			continue
		}
		// Lowercase ASCII so "Linear" and "linear" share a dimension.
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		word = append(word, c)
	}
	flush()

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, dim)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

// Package scoring fuses the vector store's cosine similarity scores with an
// in-process BM25-Okapi pass over the same candidate set, grounded on
// service/scorer.py's HybridScorer.
package scoring

import (
	"fmt"
	"sort"
	"time"

	"ticketsearch/internal/textpipeline"
)

// Candidate is one hit returned by the vector index: its id, the cosine
// similarity score Qdrant already computed, the raw text it was indexed
// with (re-tokenized here for BM25), and its registry date for pass-through.
type Candidate struct {
	ID           int64
	CosineScore  float64
	Text         string
	RegistryDate time.Time
}

// Scored is a candidate after hybrid fusion, sorted descending by Score.
type Scored struct {
	ID           int64
	Score        float64
	RegistryDate time.Time
}

// HybridScorer blends BM25 and cosine scores with a caller-controlled alpha.
type HybridScorer struct {
	pipeline *textpipeline.Pipeline
}

// New constructs a HybridScorer using pipeline to tokenize candidate text
// and the query identically (query-time and ingest-time tokenization must
// match for BM25 term identity to line up).
func New(pipeline *textpipeline.Pipeline) *HybridScorer {
	return &HybridScorer{pipeline: pipeline}
}

// Score fuses candidates against query using hybrid = alpha*bm25_norm +
// (1-alpha)*cosine_norm, normalizing each component by its own max score
// (plus epsilon to avoid a divide-by-zero when every score is zero).
// Returns nil, nil for an empty candidate set rather than erroring, matching
// the original's early return on empty hits.
func (s *HybridScorer) Score(candidates []Candidate, query string, alpha float64) ([]Scored, error) {
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("scoring: alpha must be between 0 and 1, got %f", alpha)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([][]string, len(candidates))
	for i, c := range candidates {
		docs[i] = s.pipeline.TransformBM25(c.Text)
	}
	queryTokens := s.pipeline.TransformBM25(query)

	bm25 := newBM25Okapi(docs)
	bm25Scores := bm25.scores(queryTokens)

	// Seed with the first candidate's value, not 0: cosine scores (and, via
	// the epsilon-floored idf, BM25 scores) can be negative, and seeding at
	// 0 would silently substitute a wrong (too-high) normalizer instead of
	// the true negative max numpy's .max() would return.
	cosineMax, bm25Max := candidates[0].CosineScore, bm25Scores[0]
	for i, c := range candidates {
		if c.CosineScore > cosineMax {
			cosineMax = c.CosineScore
		}
		if bm25Scores[i] > bm25Max {
			bm25Max = bm25Scores[i]
		}
	}

	out := make([]Scored, len(candidates))
	for i, c := range candidates {
		cosineNorm := c.CosineScore / (cosineMax + epsilon)
		bm25Norm := bm25Scores[i] / (bm25Max + epsilon)
		out[i] = Scored{
			ID:           c.ID,
			Score:        alpha*bm25Norm + (1-alpha)*cosineNorm,
			RegistryDate: c.RegistryDate,
		}
	}

	// Stable sort: spec requires ties broken by insertion (candidate) order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

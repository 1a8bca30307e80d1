// Package vectorindex persists ticket embeddings and their payload in
// Qdrant and answers cosine-similarity queries, grounded on
// internal/persistence/databases/qdrant_vector.go.
package vectorindex

import (
	"context"
	"time"
)

// Point is one ticket embedding ready for upsert. ID is the ticket number;
// Qdrant natively accepts positive integer point IDs, so unlike the
// teacher's qdrantVector (which had to map arbitrary string ids through a
// deterministic UUID) this store uses the ticket number directly.
type Point struct {
	ID           int64
	Vector       []float32
	Text         string
	Client       string
	Product      string
	RegistryDate time.Time
}

// Hit is one cosine-search result, still carrying enough payload for the
// HybridScorer to re-tokenize Text.
type Hit struct {
	ID           int64
	Score        float64
	Text         string
	Client       string
	Product      string
	RegistryDate time.Time
}

// Filter compiles into a conjunction of Qdrant conditions. Nil fields are
// skipped; DateFrom/DateTo become a range predicate on registry_date.
type Filter struct {
	Client   *string
	Product  *string
	DateFrom *time.Time
	DateTo   *time.Time
}

// Metadata is the in-memory cache of known clients/products and the
// ingestion watermark, refreshed incrementally after every successful
// upsert and at initialization.
type Metadata struct {
	Clients        map[string]struct{}
	Products       map[string]struct{}
	DateLastRecord time.Time
}

// HNSWConfig mirrors Qdrant's HnswConfigDiff wire fields, supplied once at
// collection-creation time and immutable afterwards.
type HNSWConfig struct {
	M                  int
	EfConstruct        int
	FullScanThreshold  int
	MaxIndexingThreads int
	OnDisk             bool
}

// Index is the persistent vector store contract C4 of the search engine.
type Index interface {
	// Initialize creates the collection if absent, otherwise loads the
	// current point count and runs a full metadata refresh.
	Initialize(ctx context.Context) error
	// Upsert is idempotent by Point.ID. On success it refreshes metadata.
	Upsert(ctx context.Context, points []Point) error
	// Query returns cosine hits for vector. When exact is true it performs
	// a full scan capped at the current point count; otherwise it uses the
	// HNSW graph at ef=512 capped at 500 results. filter is applied before
	// scoring.
	Query(ctx context.Context, vector []float32, exact bool, filter Filter) ([]Hit, error)
	// Watermark returns the cached max registry_date across all points.
	Watermark() time.Time
	// Metadata returns the cached client/product sets.
	Metadata() Metadata
	Close() error
}

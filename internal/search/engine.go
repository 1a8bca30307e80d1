// Package search implements the SearchEngine façade (C7): the public
// search/metadata surface composing TextPipeline, Embedder, VectorIndex,
// HybridScorer and RelationalSource, grounded on
// _examples/original_source/service/search_engine.py and structurally on
// internal/rag/service/service.go's Option/Clock/Metrics wiring pattern.
package search

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"ticketsearch/internal/embedder"
	"ticketsearch/internal/obs"
	"ticketsearch/internal/scoring"
	"ticketsearch/internal/textpipeline"
	"ticketsearch/internal/tickets"
	"ticketsearch/internal/vectorindex"
)

const urlTemplate = "https://support.naumen.ru/sd/operator/#uuid:"

// Filter mirrors SearchRequest.filter from spec.md §3; date bounds accept
// either a POSIX timestamp or a YYYY-MM-DD string, same as the vector
// store's filter compilation rule.
type Filter struct {
	Client   *string
	Product  *string
	DateFrom *string
	DateTo   *string
}

// Request is one SearchEngine.search call.
type Request struct {
	Query  string
	Limit  int
	Alpha  float64
	Exact  bool
	Filter Filter
}

// ResultItem is one SearchResultItem, spec.md §3.
type ResultItem struct {
	ID           string
	Score        string
	Responsible  string
	Priority     string
	RegistryDate string
	URL          string
}

// Options is the GET /options payload: known client and product tags.
type Options struct {
	Clients  []string
	Products []string
}

// Engine is the SearchEngine façade.
type Engine struct {
	pipeline  *textpipeline.Pipeline
	embedder  embedder.Embedder
	index     vectorindex.Index
	source    tickets.Source
	scorer    *scoring.HybridScorer
	threshold float64

	metrics obs.Metrics
	clock   obs.Clock
	group   singleflight.Group
}

// Option configures an Engine during construction.
type Option func(*Engine)

func WithMetrics(m obs.Metrics) Option { return func(e *Engine) { e.metrics = m } }
func WithClock(c obs.Clock) Option     { return func(e *Engine) { e.clock = c } }

// New constructs a SearchEngine from its collaborators and a threshold
// (spec.md §7's configured score floor below which results are dropped).
func New(pipeline *textpipeline.Pipeline, emb embedder.Embedder, idx vectorindex.Index, src tickets.Source, threshold float64, opts ...Option) *Engine {
	e := &Engine{
		pipeline:  pipeline,
		embedder:  emb,
		index:     idx,
		source:    src,
		scorer:    scoring.New(pipeline),
		threshold: threshold,
		metrics:   obs.NoopMetrics{},
		clock:     obs.SystemClock{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Search runs the 8-step pipeline from spec.md §4.7. Concurrent identical
// requests (same query/alpha/limit/exact/filter) are coalesced via
// singleflight so duplicate embed+query+score work is not repeated; each
// caller still receives its own copy of the result slice.
func (e *Engine) Search(ctx context.Context, req Request) ([]ResultItem, error) {
	if req.Alpha < 0 || req.Alpha > 1 {
		return nil, ErrInvalidAlpha
	}
	limit := req.Limit
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	key := coalesceKey(req)
	v, err, _ := e.group.Do(key, func() (any, error) {
		return e.search(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	items := v.([]ResultItem)
	out := make([]ResultItem, len(items))
	copy(out, items)
	return out, nil
}

func (e *Engine) search(ctx context.Context, req Request) ([]ResultItem, error) {
	start := e.clock.Now()
	defer func() {
		e.metrics.ObserveHistogram("search_total_ms", obs.StageMS(e.clock.Now().Sub(start)), nil)
	}()

	qBert := e.pipeline.TransformBERT(req.Query)
	vec, err := e.embedder.Encode(ctx, qBert)
	if err != nil {
		return nil, fmt.Errorf("search: encode query: %w", err)
	}

	vf, err := compileFilter(req.Filter)
	if err != nil {
		return nil, err
	}
	hits, err := e.index.Query(ctx, vec, req.Exact, vf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVectorQuery, err)
	}
	e.metrics.ObserveHistogram("search_hits", float64(len(hits)), nil)
	if len(hits) == 0 {
		return nil, ErrEmptyCorpus
	}

	candidates := make([]scoring.Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = scoring.Candidate{ID: h.ID, CosineScore: h.Score, Text: h.Text, RegistryDate: h.RegistryDate}
	}
	ranked, err := e.scorer.Score(candidates, req.Query, req.Alpha)
	if err != nil {
		return nil, err
	}
	if len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}

	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ID
	}
	enrichment, err := e.source.EnrichByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnrichmentGap, err)
	}

	out := make([]ResultItem, 0, len(ranked))
	for i, r := range ranked {
		if r.Score < e.threshold {
			continue
		}
		en := enrichment[i]
		out = append(out, ResultItem{
			ID:           fmt.Sprintf("%d", r.ID),
			Score:        fmt.Sprintf("%d%%", int(math.Round(r.Score*100))),
			Responsible:  en.FIO,
			Priority:     en.AdmissionPriority,
			RegistryDate: r.RegistryDate.Format("2006-01-02"),
			URL:          urlTemplate + en.ServiceCall.String(),
		})
	}
	return out, nil
}

// Metadata is a pass-through to VectorIndex's cached client/product sets.
func (e *Engine) Metadata() Options {
	meta := e.index.Metadata()
	clients := make([]string, 0, len(meta.Clients))
	for c := range meta.Clients {
		clients = append(clients, c)
	}
	products := make([]string, 0, len(meta.Products))
	for p := range meta.Products {
		products = append(products, p)
	}
	return Options{Clients: clients, Products: products}
}

func compileFilter(f Filter) (vectorindex.Filter, error) {
	vf := vectorindex.Filter{Client: f.Client, Product: f.Product}
	if f.DateFrom != nil {
		t, err := parseDateOrTimestamp(*f.DateFrom)
		if err != nil {
			return vf, fmt.Errorf("search: invalid date_from: %w", err)
		}
		vf.DateFrom = &t
	}
	if f.DateTo != nil {
		t, err := parseDateOrTimestamp(*f.DateTo)
		if err != nil {
			return vf, fmt.Errorf("search: invalid date_to: %w", err)
		}
		vf.DateTo = &t
	}
	return vf, nil
}

func parseDateOrTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	var sec int64
	if _, err := fmt.Sscanf(s, "%d", &sec); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

func coalesceKey(req Request) string {
	key := fmt.Sprintf("%s|%d|%f|%t", req.Query, req.Limit, req.Alpha, req.Exact)
	if req.Filter.Client != nil {
		key += "|c=" + *req.Filter.Client
	}
	if req.Filter.Product != nil {
		key += "|p=" + *req.Filter.Product
	}
	if req.Filter.DateFrom != nil {
		key += "|df=" + *req.Filter.DateFrom
	}
	if req.Filter.DateTo != nil {
		key += "|dt=" + *req.Filter.DateTo
	}
	return key
}

package vectorindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
	"github.com/sony/gobreaker"
)

const (
	scrollPageSize = 1000
	queryHNSWEf    = 512
	annResultCap   = 500
)

type qdrantIndex struct {
	client         *qdrant.Client
	collection     string
	dimension      int
	hnsw           HNSWConfig
	seedWatermark  time.Time
	breaker        *gobreaker.CircuitBreaker

	mu          sync.RWMutex
	pointsCount int
	meta        Metadata
}

// Open connects to Qdrant at dsn, a URL of the form scheme://host[:port]
// (gRPC default port 6334; an https scheme enables TLS; "?api_key=..." is
// accepted as with the teacher's DSN parsing; a dsn without a scheme yields
// no host and falls back to localhost) and returns
// an Index bound to collection, creating it with dimension/hnsw settings if
// it does not already exist. seedWatermark seeds the metadata refresh
// watermark the first time an existing collection is adopted.
func Open(dsn, collection string, dimension int, hnsw HNSWConfig, seedWatermark time.Time) (Index, error) {
	if collection == "" {
		return nil, fmt.Errorf("vectorindex: collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: invalid port in dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: create client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "vectorindex:" + collection,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &qdrantIndex{
		client:        client,
		collection:    collection,
		dimension:     dimension,
		hnsw:          hnsw,
		seedWatermark: seedWatermark,
		breaker:       breaker,
		meta: Metadata{
			Clients:  make(map[string]struct{}),
			Products: make(map[string]struct{}),
		},
	}, nil
}

func (q *qdrantIndex) withRetry(ctx context.Context, op func() error) error {
	_, err := q.breaker.Execute(func() (any, error) {
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
		return nil, backoff.Retry(op, b)
	})
	return err
}

func (q *qdrantIndex) Initialize(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("vectorindex: check collection exists: %w", err)
	}
	if !exists {
		if err := q.createCollection(ctx); err != nil {
			return err
		}
		q.mu.Lock()
		q.meta.DateLastRecord = q.seedWatermark
		q.mu.Unlock()
		return nil
	}
	count, err := q.client.Count(ctx, &qdrant.CountPoints{CollectionName: q.collection})
	if err != nil {
		return fmt.Errorf("vectorindex: count points: %w", err)
	}
	q.mu.Lock()
	q.pointsCount = int(count)
	if q.meta.DateLastRecord.IsZero() {
		q.meta.DateLastRecord = q.seedWatermark
	}
	q.mu.Unlock()
	return q.refreshMetadata(ctx)
}

func (q *qdrantIndex) createCollection(ctx context.Context) error {
	if q.dimension <= 0 {
		return fmt.Errorf("vectorindex: dimension must be > 0")
	}
	err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
		HnswConfig: &qdrant.HnswConfigDiff{
			M:                  qdrant.PtrOf(uint64(q.hnsw.M)),
			EfConstruct:        qdrant.PtrOf(uint64(q.hnsw.EfConstruct)),
			FullScanThreshold:  qdrant.PtrOf(uint64(q.hnsw.FullScanThreshold)),
			MaxIndexingThreads: qdrant.PtrOf(uint64(q.hnsw.MaxIndexingThreads)),
			OnDisk:             qdrant.PtrOf(q.hnsw.OnDisk),
		},
	})
	if err != nil {
		return fmt.Errorf("vectorindex: create collection: %w", err)
	}
	return nil
}

func (q *qdrantIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	wirePoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		wirePoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(p.ID)),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(map[string]any{
				"text":          p.Text,
				"client":        p.Client,
				"product":       p.Product,
				"registry_date": float64(p.RegistryDate.Unix()),
			}),
		}
	}
	err := q.withRetry(ctx, func() error {
		_, e := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         wirePoints,
		})
		return e
	})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert: %w", err)
	}
	q.mu.Lock()
	q.pointsCount += len(points)
	q.mu.Unlock()
	return q.refreshMetadata(ctx)
}

func (q *qdrantIndex) Query(ctx context.Context, vector []float32, exact bool, filter Filter) ([]Hit, error) {
	vec := make([]float32, len(vector))
	copy(vec, vector)

	q.mu.RLock()
	count := q.pointsCount
	q.mu.RUnlock()

	limit := uint64(annResultCap)
	if exact {
		limit = uint64(count)
		if limit == 0 {
			limit = 1
		}
	}

	var queryErr error
	var rawHits []*qdrant.ScoredPoint
	err := q.withRetry(ctx, func() error {
		hits, e := q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: q.collection,
			Query:          qdrant.NewQueryDense(vec),
			Limit:          &limit,
			Filter:         compileFilter(filter),
			WithPayload:    qdrant.NewWithPayload(true),
			Params: &qdrant.SearchParams{
				Exact:  qdrant.PtrOf(exact),
				HnswEf: qdrant.PtrOf(uint64(queryHNSWEf)),
			},
		})
		rawHits = hits
		queryErr = e
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query: %w", queryErr)
	}

	out := make([]Hit, 0, len(rawHits))
	for _, h := range rawHits {
		out = append(out, hitFromScoredPoint(h))
	}
	return out, nil
}

func hitFromScoredPoint(h *qdrant.ScoredPoint) Hit {
	hit := Hit{ID: int64(h.Id.GetNum()), Score: float64(h.Score)}
	if h.Payload == nil {
		return hit
	}
	if v, ok := h.Payload["text"]; ok {
		hit.Text = v.GetStringValue()
	}
	if v, ok := h.Payload["client"]; ok {
		hit.Client = v.GetStringValue()
	}
	if v, ok := h.Payload["product"]; ok {
		hit.Product = v.GetStringValue()
	}
	if v, ok := h.Payload["registry_date"]; ok {
		hit.RegistryDate = time.Unix(int64(v.GetDoubleValue()), 0).UTC()
	}
	return hit
}

func compileFilter(f Filter) *qdrant.Filter {
	var must []*qdrant.Condition
	if f.Client != nil {
		must = append(must, qdrant.NewMatch("client", *f.Client))
	}
	if f.Product != nil {
		must = append(must, qdrant.NewMatch("product", *f.Product))
	}
	if f.DateFrom != nil || f.DateTo != nil {
		r := &qdrant.Range{}
		if f.DateFrom != nil {
			v := float64(f.DateFrom.Unix())
			r.Gte = &v
		}
		if f.DateTo != nil {
			v := float64(f.DateTo.Unix())
			r.Lte = &v
		}
		must = append(must, qdrant.NewRange("registry_date", r))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func (q *qdrantIndex) Watermark() time.Time {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.meta.DateLastRecord
}

func (q *qdrantIndex) Metadata() Metadata {
	q.mu.RLock()
	defer q.mu.RUnlock()
	clients := make(map[string]struct{}, len(q.meta.Clients))
	for k := range q.meta.Clients {
		clients[k] = struct{}{}
	}
	products := make(map[string]struct{}, len(q.meta.Products))
	for k := range q.meta.Products {
		products[k] = struct{}{}
	}
	return Metadata{Clients: clients, Products: products, DateLastRecord: q.meta.DateLastRecord}
}

func (q *qdrantIndex) Close() error {
	return q.client.Close()
}

// refreshMetadata scrolls the collection in pages of 1,000 with a
// registry_date >= watermark predicate, unions the client/product values it
// observes, and advances the watermark to the max registry_date seen —
// grounded on original_source/db/database.py's _update_metadata.
func (q *qdrantIndex) refreshMetadata(ctx context.Context) error {
	q.mu.RLock()
	from := q.meta.DateLastRecord
	q.mu.RUnlock()

	filter := compileFilter(Filter{DateFrom: &from})
	maxSeen := from
	clients := make(map[string]struct{})
	products := make(map[string]struct{})

	var offset *qdrant.PointId
	limit := uint32(scrollPageSize)
	for {
		resp, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Filter:         filter,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return fmt.Errorf("vectorindex: scroll: %w", err)
		}
		for _, p := range resp {
			if v, ok := p.Payload["client"]; ok {
				clients[v.GetStringValue()] = struct{}{}
			}
			if v, ok := p.Payload["product"]; ok {
				products[v.GetStringValue()] = struct{}{}
			}
			if v, ok := p.Payload["registry_date"]; ok {
				ts := time.Unix(int64(v.GetDoubleValue()), 0).UTC()
				if ts.After(maxSeen) {
					maxSeen = ts
				}
			}
		}
		if len(resp) < scrollPageSize {
			break
		}
		offset = resp[len(resp)-1].Id
	}

	q.mu.Lock()
	for k := range clients {
		q.meta.Clients[k] = struct{}{}
	}
	for k := range products {
		q.meta.Products[k] = struct{}{}
	}
	q.meta.DateLastRecord = maxSeen
	q.mu.Unlock()
	return nil
}

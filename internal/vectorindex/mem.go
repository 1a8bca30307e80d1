package vectorindex

import (
	"context"
	"math"
	"sort"
	"time"
)

// memIndex is an in-process, non-persistent Index used by tests. It performs
// brute-force cosine scoring and honors the same Filter semantics as the
// Qdrant-backed implementation, so SearchEngine tests can assert on exact
// scores without a live Qdrant instance.
type memIndex struct {
	points []Point
	meta   Metadata
}

// NewMemory returns a test double for Index backed by an in-memory slice.
func NewMemory(seedWatermark time.Time) Index {
	return &memIndex{
		meta: Metadata{
			Clients:        make(map[string]struct{}),
			Products:       make(map[string]struct{}),
			DateLastRecord: seedWatermark,
		},
	}
}

func (m *memIndex) Initialize(context.Context) error { return nil }

func (m *memIndex) Upsert(_ context.Context, points []Point) error {
	byID := make(map[int64]int, len(m.points))
	for i, p := range m.points {
		byID[p.ID] = i
	}
	for _, p := range points {
		if idx, ok := byID[p.ID]; ok {
			m.points[idx] = p
		} else {
			m.points = append(m.points, p)
			byID[p.ID] = len(m.points) - 1
		}
		if p.Client != "" {
			m.meta.Clients[p.Client] = struct{}{}
		}
		if p.Product != "" {
			m.meta.Products[p.Product] = struct{}{}
		}
		if p.RegistryDate.After(m.meta.DateLastRecord) {
			m.meta.DateLastRecord = p.RegistryDate
		}
	}
	return nil
}

func (m *memIndex) Query(_ context.Context, vector []float32, exact bool, filter Filter) ([]Hit, error) {
	out := make([]Hit, 0, len(m.points))
	for _, p := range m.points {
		if !matches(p, filter) {
			continue
		}
		out = append(out, Hit{
			ID:           p.ID,
			Score:        cosine(vector, p.Vector),
			Text:         p.Text,
			Client:       p.Client,
			Product:      p.Product,
			RegistryDate: p.RegistryDate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	limit := annResultCap
	if exact {
		limit = len(out)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(p Point, f Filter) bool {
	if f.Client != nil && p.Client != *f.Client {
		return false
	}
	if f.Product != nil && p.Product != *f.Product {
		return false
	}
	if f.DateFrom != nil && p.RegistryDate.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && p.RegistryDate.After(*f.DateTo) {
		return false
	}
	return true
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (m *memIndex) Watermark() time.Time { return m.meta.DateLastRecord }

func (m *memIndex) Metadata() Metadata {
	clients := make(map[string]struct{}, len(m.meta.Clients))
	for k := range m.meta.Clients {
		clients[k] = struct{}{}
	}
	products := make(map[string]struct{}, len(m.meta.Products))
	for k := range m.meta.Products {
		products[k] = struct{}{}
	}
	return Metadata{Clients: clients, Products: products, DateLastRecord: m.meta.DateLastRecord}
}

func (m *memIndex) Close() error { return nil }

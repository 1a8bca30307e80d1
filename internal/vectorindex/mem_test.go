package vectorindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_UpsertIsIdempotentByID(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(time.Time{})
	now := time.Now()
	require.NoError(t, idx.Upsert(ctx, []Point{{ID: 1, Vector: []float32{1, 0}, Client: "A", RegistryDate: now}}))
	require.NoError(t, idx.Upsert(ctx, []Point{{ID: 1, Vector: []float32{0, 1}, Client: "B", RegistryDate: now}}))

	hits, err := idx.Query(ctx, []float32{0, 1}, true, Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "B", hits[0].Client)
}

func TestMemory_QueryRespectsClientAndDateFilter(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(time.Time{})
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, idx.Upsert(ctx, []Point{
		{ID: 1, Vector: []float32{1, 0}, Client: "A", RegistryDate: old},
		{ID: 2, Vector: []float32{1, 0}, Client: "A", RegistryDate: recent},
		{ID: 3, Vector: []float32{1, 0}, Client: "B", RegistryDate: recent},
	}))

	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clientA := "A"
	hits, err := idx.Query(ctx, []float32{1, 0}, true, Filter{Client: &clientA, DateFrom: &cutoff})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.EqualValues(t, 2, hits[0].ID)
}

func TestMemory_MetadataTracksClientsProductsAndWatermark(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(time.Time{})
	t1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, idx.Upsert(ctx, []Point{
		{ID: 1, Vector: []float32{1}, Client: "A", Product: "X", RegistryDate: t1},
		{ID: 2, Vector: []float32{1}, Client: "B", Product: "Y", RegistryDate: t2},
	}))

	meta := idx.Metadata()
	assert.Contains(t, meta.Clients, "A")
	assert.Contains(t, meta.Clients, "B")
	assert.Contains(t, meta.Products, "X")
	assert.Contains(t, meta.Products, "Y")
	assert.Equal(t, t2, idx.Watermark())
}

func TestMemory_QueryCapsNonExactResultsAtAnnResultCap(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(time.Time{})
	var points []Point
	for i := 0; i < annResultCap+10; i++ {
		points = append(points, Point{ID: int64(i), Vector: []float32{1, 0}, RegistryDate: time.Now()})
	}
	require.NoError(t, idx.Upsert(ctx, points))

	hits, err := idx.Query(ctx, []float32{1, 0}, false, Filter{})
	require.NoError(t, err)
	assert.Len(t, hits, annResultCap)
}

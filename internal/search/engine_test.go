package search

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketsearch/internal/embedder"
	"ticketsearch/internal/textpipeline"
	"ticketsearch/internal/tickets"
	"ticketsearch/internal/vectorindex"
)

func setupEngine(t *testing.T) (*Engine, vectorindex.Index, embedder.Embedder) {
	t.Helper()
	pipeline := textpipeline.New(textpipeline.NoopLemmatizer{})
	emb := embedder.NewDeterministic(32)
	idx := vectorindex.NewMemory(time.Date(2025, 11, 14, 0, 0, 0, 0, time.UTC))
	src := tickets.NewMemory(nil, nil)
	eng := New(pipeline, emb, idx, src, 0.5)
	return eng, idx, emb
}

func TestSearch_EmptyCorpusReturnsSentinel(t *testing.T) {
	eng, _, _ := setupEngine(t)
	_, err := eng.Search(context.Background(), Request{Query: "broken printer", Limit: 5, Alpha: 0.5})
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestSearch_ExactSelfMatch(t *testing.T) {
	pipeline := textpipeline.New(textpipeline.NoopLemmatizer{})
	emb := embedder.NewDeterministic(32)
	idx := vectorindex.NewMemory(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	text := "Сервер не отвечает"
	bert := pipeline.TransformBERT(text)
	vec, err := emb.Encode(ctx, bert)
	require.NoError(t, err)

	registryDate := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, idx.Upsert(ctx, []vectorindex.Point{{
		ID: 1, Vector: vec, Text: text, Client: "A", Product: "X", RegistryDate: registryDate,
	}}))

	src := tickets.NewMemory(nil, []tickets.EnrichmentRow{{
		Number: 1, FIO: "Ivanov", AdmissionPriority: "high", ServiceCall: uuid.MustParse("11111111-1111-1111-1111-111111111111"),
	}})

	eng := New(pipeline, emb, idx, src, 0.0)
	items, err := eng.Search(ctx, Request{Query: text, Limit: 1, Alpha: 0, Exact: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "100%", items[0].Score)
	assert.Equal(t, "Ivanov", items[0].Responsible)
	assert.Equal(t, "2025-01-10", items[0].RegistryDate)
	assert.Contains(t, items[0].URL, "11111111-1111-1111-1111-111111111111")
}

func TestSearch_FilterByClient(t *testing.T) {
	pipeline := textpipeline.New(textpipeline.NoopLemmatizer{})
	emb := embedder.NewDeterministic(32)
	idx := vectorindex.NewMemory(time.Time{})
	ctx := context.Background()

	text := "не работает принтер"
	bert := pipeline.TransformBERT(text)
	vec, err := emb.Encode(ctx, bert)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, idx.Upsert(ctx, []vectorindex.Point{
		{ID: 1, Vector: vec, Text: text, Client: "A", Product: "X", RegistryDate: now},
		{ID: 2, Vector: vec, Text: text, Client: "B", Product: "X", RegistryDate: now},
	}))

	src := tickets.NewMemory(nil, []tickets.EnrichmentRow{
		{Number: 1, FIO: "A-owner", AdmissionPriority: "low", ServiceCall: uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")},
		{Number: 2, FIO: "B-owner", AdmissionPriority: "low", ServiceCall: uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")},
	})

	eng := New(pipeline, emb, idx, src, 0.0)
	clientB := "B"
	items, err := eng.Search(ctx, Request{Query: text, Limit: 5, Alpha: 0.5, Filter: Filter{Client: &clientB}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2", items[0].ID)
}

func TestSearch_ThresholdSuppressesAll(t *testing.T) {
	pipeline := textpipeline.New(textpipeline.NoopLemmatizer{})
	emb := embedder.NewDeterministic(32)
	idx := vectorindex.NewMemory(time.Time{})
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, idx.Upsert(ctx, []vectorindex.Point{
		{ID: 1, Vector: []float32{1, 0, 0}, Text: "абсолютно другое", Client: "A", Product: "X", RegistryDate: now},
	}))

	src := tickets.NewMemory(nil, []tickets.EnrichmentRow{{Number: 1, FIO: "x", AdmissionPriority: "low", ServiceCall: uuid.New()}})
	eng := New(pipeline, emb, idx, src, 0.99)
	items, err := eng.Search(ctx, Request{Query: "нечто совершенно постороннее", Limit: 5, Alpha: 0.5})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSearch_RejectsInvalidAlphaAndLimit(t *testing.T) {
	eng, _, _ := setupEngine(t)
	_, err := eng.Search(context.Background(), Request{Query: "x", Limit: 5, Alpha: 2})
	assert.ErrorIs(t, err, ErrInvalidAlpha)
	_, err = eng.Search(context.Background(), Request{Query: "x", Limit: 0, Alpha: 0.5})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

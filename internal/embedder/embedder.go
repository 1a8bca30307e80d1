// Package embedder provides the BERT-branch text-to-vector step of the
// search pipeline: a thin HTTP-backed implementation for production and a
// deterministic, dependency-free implementation for tests.
package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"ticketsearch/internal/config"
	"ticketsearch/internal/embedding"
)

// Embedder turns normalized text into dense vectors.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
}

type httpEmbedder struct {
	cfg config.EmbeddingConfig
	dim int
}

// NewHTTP constructs an Embedder backed by a configured HTTP endpoint.
// dim is the expected output dimensionality (312 per the collection schema);
// vectors are re-normalized to unit L2 norm if the backend didn't already.
func NewHTTP(cfg config.EmbeddingConfig, dim int) Embedder {
	return &httpEmbedder{cfg: cfg, dim: dim}
}

func (h *httpEmbedder) Name() string   { return h.cfg.Model }
func (h *httpEmbedder) Dimension() int { return h.dim }

func (h *httpEmbedder) Encode(ctx context.Context, text string) ([]float32, error) {
	out, err := h.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (h *httpEmbedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := embedding.EmbedText(ctx, h.cfg, texts)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	for _, v := range vecs {
		normalizeInPlace(v)
	}
	return vecs, nil
}

// deterministicEmbedder hashes byte 3-grams into a fixed-size vector. It is
// used in tests and as a local fallback when no embedding endpoint is
// configured; it never calls out over the network.
type deterministicEmbedder struct {
	dim int
}

// NewDeterministic constructs a deterministic, unit-normalized Embedder of
// the given dimension.
func NewDeterministic(dim int) Embedder {
	if dim <= 0 {
		dim = 312
	}
	return &deterministicEmbedder{dim: dim}
}

func (d *deterministicEmbedder) Name() string   { return "deterministic" }
func (d *deterministicEmbedder) Dimension() int { return d.dim }

func (d *deterministicEmbedder) Encode(_ context.Context, text string) ([]float32, error) {
	return d.embedOne(text), nil
}

func (d *deterministicEmbedder) EncodeBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

func (d *deterministicEmbedder) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	b := []byte(s)
	switch {
	case len(b) == 0:
		return v
	case len(b) < 3:
		addGram(b, v)
	default:
		for i := 0; i <= len(b)-3; i++ {
			addGram(b[i:i+3], v)
		}
	}
	normalizeInPlace(v)
	return v
}

func addGram(gram []byte, v []float32) {
	h := fnv.New64a()
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

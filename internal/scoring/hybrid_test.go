package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketsearch/internal/textpipeline"
)

func newTestScorer() *HybridScorer {
	return New(textpipeline.New(textpipeline.NoopLemmatizer{}))
}

func TestScore_EmptyCandidatesReturnsNil(t *testing.T) {
	s := newTestScorer()
	out, err := s.Score(nil, "проблема с входом", 0.5)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestScore_RejectsAlphaOutOfRange(t *testing.T) {
	s := newTestScorer()
	_, err := s.Score([]Candidate{{ID: 1, Text: "x"}}, "x", 1.5)
	assert.Error(t, err)
}

func TestScore_AlphaOneFavorsLexicalMatch(t *testing.T) {
	s := newTestScorer()
	now := time.Now()
	candidates := []Candidate{
		{ID: 1, CosineScore: 0.95, Text: "оплата сломалась полностью", RegistryDate: now},
		{ID: 2, CosineScore: 0.10, Text: "не удается выполнить оплата заказа", RegistryDate: now},
	}
	out, err := s.Score(candidates, "оплата заказа", 1.0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].ID)
}

func TestScore_AlphaZeroFavorsCosine(t *testing.T) {
	s := newTestScorer()
	now := time.Now()
	candidates := []Candidate{
		{ID: 1, CosineScore: 0.95, Text: "оплата сломалась полностью", RegistryDate: now},
		{ID: 2, CosineScore: 0.10, Text: "не удается выполнить оплата заказа", RegistryDate: now},
	}
	out, err := s.Score(candidates, "оплата заказа", 0.0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ID)
}

func TestScore_SortedDescending(t *testing.T) {
	s := newTestScorer()
	candidates := []Candidate{
		{ID: 1, CosineScore: 0.3, Text: "альфа"},
		{ID: 2, CosineScore: 0.9, Text: "бета"},
		{ID: 3, CosineScore: 0.6, Text: "гамма"},
	}
	out, err := s.Score(candidates, "бета", 0.0)
	require.NoError(t, err)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
	}
}

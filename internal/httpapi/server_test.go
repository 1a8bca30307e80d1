package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketsearch/internal/embedder"
	"ticketsearch/internal/search"
	"ticketsearch/internal/textpipeline"
	"ticketsearch/internal/tickets"
	"ticketsearch/internal/vectorindex"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	pipeline := textpipeline.New(textpipeline.NoopLemmatizer{})
	emb := embedder.NewDeterministic(16)
	idx := vectorindex.NewMemory(time.Time{})
	src := tickets.NewMemory(nil, nil)
	eng := search.New(pipeline, emb, idx, src, 0.5)
	return NewServer(eng)
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/Health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["Status"])
}

func TestHandleFind_EmptyCorpusReturnsDataNotFound(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/find/broken+printer", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "data not found", body["result"])
}

func TestHandleSearch_RejectsInvalidAlpha(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/search", jsonBody(t, map[string]any{
		"query": "x", "alpha": 2.0,
	}))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestResolveAlpha_ExplicitZeroIsNotCoercedToDefault locks in that an
// explicit "alpha":0 resolves to 0, the valid pure-cosine mode (spec.md §6),
// rather than being silently replaced by the 0.5 default.
func TestResolveAlpha_ExplicitZeroIsNotCoercedToDefault(t *testing.T) {
	zero := 0.0
	assert.Equal(t, 0.0, resolveAlpha(&zero))
}

func TestResolveAlpha_AbsentDefaultsToPointFive(t *testing.T) {
	assert.Equal(t, 0.5, resolveAlpha(nil))
}

func TestResolveAlpha_PassesThroughExplicitNonDefaultValue(t *testing.T) {
	v := 0.9
	assert.Equal(t, 0.9, resolveAlpha(&v))
}

func TestServeHTTP_SetsCORSHeaders(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

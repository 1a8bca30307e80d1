package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"ticketsearch/internal/search"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"Status": "OK"})
}

// handleFind is the GET /find/{q} shorthand: spec.md §6 defaults (limit=5,
// alpha=0.5, exact=false) with no filter.
func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	q := r.PathValue("q")
	items, err := s.engine.Search(r.Context(), search.Request{
		Query: q,
		Limit: 5,
		Alpha: 0.5,
	})
	if err != nil {
		s.respondSearchError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Metadata())
}

// searchRequestBody is the POST /search JSON body, spec.md §3's SearchRequest.
// Alpha is a pointer so an absent field (default 0.5) is distinguishable from
// an explicit "alpha":0, which is the valid pure-cosine mode spec.md §6 fixes
// as part of the POST contract.
type searchRequestBody struct {
	Query string   `json:"query"`
	Limit int      `json:"limit"`
	Alpha *float64 `json:"alpha"`
	Exact bool     `json:"exact"`
	Filter struct {
		Client   *string `json:"client"`
		Product  *string `json:"product"`
		DateFrom *string `json:"date_from"`
		DateTo   *string `json:"date_to"`
	} `json:"filter"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if body.Limit == 0 {
		body.Limit = 5
	}

	req := search.Request{
		Query: body.Query,
		Limit: body.Limit,
		Alpha: resolveAlpha(body.Alpha),
		Exact: body.Exact,
		Filter: search.Filter{
			Client:   body.Filter.Client,
			Product:  body.Filter.Product,
			DateFrom: body.Filter.DateFrom,
			DateTo:   body.Filter.DateTo,
		},
	}
	items, err := s.engine.Search(r.Context(), req)
	if err != nil {
		s.respondSearchError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// resolveAlpha returns the caller's alpha, or 0.5 if the field was absent.
// An explicit "alpha":0 must come through as 0 (pure-cosine ranking, a
// distinct valid mode per spec.md §6), not be coerced to the default.
func resolveAlpha(a *float64) float64 {
	if a == nil {
		return 0.5
	}
	return *a
}

// respondSearchError maps search.Engine error kinds to HTTP responses.
// ErrEmptyCorpus is not a failure from the caller's perspective (spec.md
// §8 S1): it returns 200 with the "data not found" sentinel body instead
// of propagating as an error status.
func (s *Server) respondSearchError(w http.ResponseWriter, err error) {
	if errors.Is(err, search.ErrEmptyCorpus) {
		respondJSON(w, http.StatusOK, map[string]any{"result": "data not found"})
		return
	}
	respondError(w, statusFromError(err), err)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, search.ErrInvalidAlpha), errors.Is(err, search.ErrInvalidLimit):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrVectorQuery), errors.Is(err, search.ErrEnrichmentGap):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

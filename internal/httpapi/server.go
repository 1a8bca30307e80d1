// Package httpapi is the thin HTTP boundary mapping GET /Health, GET
// /find/{q}, GET /options and POST /search onto search.Engine calls,
// grounded on the teacher's internal/httpapi/server.go http.ServeMux and
// Go 1.22 path-pattern routing style.
package httpapi

import (
	"net/http"

	"ticketsearch/internal/search"
)

// Server exposes the ticket search HTTP API.
type Server struct {
	engine *search.Engine
	mux    *http.ServeMux
}

// NewServer creates the HTTP API server wired to engine.
func NewServer(engine *search.Engine) *Server {
	s := &Server{engine: engine, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler. CORS is allowed for all origins,
// methods, and headers, per spec.md §6.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "*")
	w.Header().Set("Access-Control-Allow-Headers", "*")
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /Health", s.handleHealth)
	s.mux.HandleFunc("GET /find/{q}", s.handleFind)
	s.mux.HandleFunc("GET /options", s.handleOptions)
	s.mux.HandleFunc("POST /search", s.handleSearch)
}

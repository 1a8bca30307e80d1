package search

import "errors"

// Sentinel errors for the kinds spec.md §7 enumerates. HTTP adapters map
// these to status codes via errors.Is.
var (
	ErrInvalidAlpha    = errors.New("search: alpha must be in [0,1]")
	ErrInvalidLimit    = errors.New("search: limit must be >= 1")
	ErrVectorQuery     = errors.New("search: vector query failed")
	ErrEnrichmentGap   = errors.New("search: enrichment gap")
	ErrEmptyCorpus     = errors.New("search: empty corpus")
)

package tickets

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// memSource is an in-process Source used by tests; no network, no schema.
type memSource struct {
	tickets     map[int64]Ticket
	enrichments map[int64]EnrichmentRow
}

// NewMemory returns a test double for Source seeded with tickets and their
// enrichment rows.
func NewMemory(tickets []Ticket, enrichments []EnrichmentRow) Source {
	s := &memSource{
		tickets:     make(map[int64]Ticket, len(tickets)),
		enrichments: make(map[int64]EnrichmentRow, len(enrichments)),
	}
	for _, t := range tickets {
		s.tickets[t.Number] = t
	}
	for _, e := range enrichments {
		s.enrichments[e.Number] = e
	}
	return s
}

func (s *memSource) Fetch(_ context.Context, from, to time.Time) ([]Ticket, error) {
	var out []Ticket
	for _, t := range s.tickets {
		if !t.RegistryDate.Before(from) && !t.RegistryDate.After(to) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *memSource) EnrichByIDs(_ context.Context, ids []int64) ([]EnrichmentRow, error) {
	out := make([]EnrichmentRow, 0, len(ids))
	for _, id := range ids {
		e, ok := s.enrichments[id]
		if !ok {
			return nil, fmt.Errorf("tickets: enrichment gap: id %d not found", id)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *memSource) Close() {}

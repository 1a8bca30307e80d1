package tickets

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"
)

// Ticket is one row from the relational source.
type Ticket struct {
	Number       int64
	Problem      string
	Client       string
	Product      string
	RegistryDate time.Time
}

// EnrichmentRow supplements a ticket with out-of-band fields looked up at
// query time and never cached. ServiceCall is the opaque UUID the external
// ticket URL is built from (spec.md §3); parsing it at read-in rejects a
// malformed servicecall value before it reaches the result URL.
type EnrichmentRow struct {
	Number            int64
	FIO               string
	AdmissionPriority string
	ServiceCall       uuid.UUID
}

// Source is the RelationalSource contract, C3 of the search engine.
type Source interface {
	// Fetch returns all tickets whose registry_date falls in [from, to].
	// Failures are logged by the caller and treated as an empty result;
	// Fetch itself just returns the error for the caller to decide policy.
	Fetch(ctx context.Context, from, to time.Time) ([]Ticket, error)
	// EnrichByIDs returns one row per id, in the same order as ids. Returns
	// an "enrichment gap" error if any id has no matching row.
	EnrichByIDs(ctx context.Context, ids []int64) ([]EnrichmentRow, error)
	Close()
}

type pgSource struct {
	pool    *pgxpool.Pool
	breaker *gobreaker.CircuitBreaker
}

// Open connects to Postgres at dsn, runs schema bootstrap, and returns a
// Source backed by the pool.
func Open(ctx context.Context, dsn string) (Source, error) {
	if err := bootstrapSchema(dsn); err != nil {
		return nil, err
	}
	pool, err := newPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tickets:relational",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &pgSource{pool: pool, breaker: breaker}, nil
}

func (s *pgSource) withRetry(ctx context.Context, op func() error) error {
	_, err := s.breaker.Execute(func() (any, error) {
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
		return nil, backoff.Retry(op, b)
	})
	return err
}

const fetchQuery = `
SELECT number, problem, client, product, registry_date
FROM tickets
WHERE registry_date BETWEEN $1 AND $2`

func (s *pgSource) Fetch(ctx context.Context, from, to time.Time) ([]Ticket, error) {
	var out []Ticket
	err := s.withRetry(ctx, func() error {
		out = nil
		rows, err := s.pool.Query(ctx, fetchQuery, from, to)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t Ticket
			if err := rows.Scan(&t.Number, &t.Problem, &t.Client, &t.Product, &t.RegistryDate); err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("tickets: fetch: %w", err)
	}
	return out, nil
}

// enrichQuery preserves the input id ordering on the SQL side via
// array_position rather than relying on a client-side re-sort — resolves
// the ordering open question the distilled spec left unpinned, since the
// search engine zips ranked scores and enrichment rows positionally.
const enrichQuery = `
SELECT number, fio, admission_prority, servicecall
FROM ticket_enrichment
WHERE number = ANY($1::bigint[])
ORDER BY array_position($1::bigint[], number)`

func (s *pgSource) EnrichByIDs(ctx context.Context, ids []int64) ([]EnrichmentRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []EnrichmentRow
	err := s.withRetry(ctx, func() error {
		out = nil
		rows, err := s.pool.Query(ctx, enrichQuery, ids)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r EnrichmentRow
			if err := rows.Scan(&r.Number, &r.FIO, &r.AdmissionPriority, &r.ServiceCall); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("tickets: enrich: %w", err)
	}
	if len(out) != len(ids) {
		return nil, fmt.Errorf("tickets: enrichment gap: requested %d ids, found %d", len(ids), len(out))
	}
	return out, nil
}

func (s *pgSource) Close() {
	s.pool.Close()
}

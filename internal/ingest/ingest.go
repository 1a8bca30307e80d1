// Package ingest orchestrates windowed catch-up ingestion and the nightly
// refresh schedule, grounded on service/updater.py.
package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"ticketsearch/internal/embedder"
	"ticketsearch/internal/textpipeline"
	"ticketsearch/internal/tickets"
	"ticketsearch/internal/vectorindex"
)

// Ingestor holds references only; it owns no state beyond the refresh
// schedule it drives.
type Ingestor struct {
	Embedder embedder.Embedder
	Pipeline *textpipeline.Pipeline
	Source   tickets.Source
	Index    vectorindex.Index
}

// New constructs an Ingestor from its collaborators.
func New(emb embedder.Embedder, pipeline *textpipeline.Pipeline, src tickets.Source, idx vectorindex.Index) *Ingestor {
	return &Ingestor{Embedder: emb, Pipeline: pipeline, Source: src, Index: idx}
}

// Update reads the current watermark, splits [watermark, now] into ≤30-day
// windows, and ingests each in order. A window whose fetch fails is logged
// and skipped; ingestion proceeds to the next window (RELATIONAL_FETCH_FAILED
// policy from spec.md §7).
func (ig *Ingestor) Update(ctx context.Context) error {
	from := ig.Index.Watermark()
	now := time.Now()
	windows := buildWindows(from, now)
	log.Info().Int("windows", len(windows)).Time("from", from).Msg("ingest: computed windows")

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ig.updateWindow(ctx, w); err != nil {
			log.Error().Err(err).Time("from", w.From).Time("to", w.To).Msg("ingest: window failed, skipping")
			continue
		}
	}
	return nil
}

func (ig *Ingestor) updateWindow(ctx context.Context, w window) error {
	rows, err := ig.Source.Fetch(ctx, w.From, w.To)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	texts := make([]string, len(rows))
	for i, t := range rows {
		texts[i] = ig.Pipeline.TransformBERT(t.Problem)
	}
	vectors, err := ig.Embedder.EncodeBatch(ctx, texts)
	if err != nil {
		return err
	}

	points := make([]vectorindex.Point, len(rows))
	for i, t := range rows {
		points[i] = vectorindex.Point{
			ID:           t.Number,
			Vector:       vectors[i],
			Text:         t.Problem,
			Client:       t.Client,
			Product:      t.Product,
			RegistryDate: t.RegistryDate,
		}
	}
	if err := ig.Index.Upsert(ctx, points); err != nil {
		return err
	}
	log.Info().Int("tickets", len(rows)).Msg("ingest: window upserted")
	return nil
}

// Run performs one Update immediately, then enters the nightly scheduler.
// It returns when ctx is cancelled. Cancellation is cooperative: Update
// checks ctx before each window and stops there, and the same ctx is passed
// to the in-flight fetch, embed and upsert calls, which may abort on it.
func (ig *Ingestor) Run(ctx context.Context) {
	log.Info().Msg("ingest: initial update started")
	if err := ig.Update(ctx); err != nil {
		log.Error().Err(err).Msg("ingest: initial update failed")
	} else {
		log.Info().Msg("ingest: initial update finished")
	}
	ig.scheduler(ctx)
}

// scheduler sleeps until the next wall-clock 03:00 local time strictly
// after now, runs Update, and repeats, until ctx is cancelled — the Go
// idiomatic substitute for the Python original's asyncio.CancelledError
// path around background_updater.
func (ig *Ingestor) scheduler(ctx context.Context) {
	for {
		wait := nextThreeAM(time.Now())
		log.Info().Dur("sleep", wait).Msg("ingest: scheduled next update")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("ingest: scheduler cancelled")
			return
		case <-timer.C:
			if err := ig.Update(ctx); err != nil {
				log.Error().Err(err).Msg("ingest: scheduled update failed")
			}
		}
	}
}

// nextThreeAM returns the duration until the next wall-clock 03:00 local
// time strictly after now — today's 03:00 if now is still before it,
// otherwise tomorrow's.
func nextThreeAM(now time.Time) time.Duration {
	target := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target.Sub(now)
}

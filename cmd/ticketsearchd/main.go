// Command ticketsearchd serves the hybrid ticket search API and drives the
// nightly ingestion refresh, grounded on the teacher's cmd/agentd/main.go
// startup sequence (load .env, init logger, load config, wire collaborators)
// and rcliao-briefly's cmd/cmd cobra CLI layout.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ticketsearch/internal/config"
	"ticketsearch/internal/embedder"
	"ticketsearch/internal/embedding"
	"ticketsearch/internal/httpapi"
	"ticketsearch/internal/ingest"
	"ticketsearch/internal/obs"
	"ticketsearch/internal/observability"
	"ticketsearch/internal/search"
	"ticketsearch/internal/textpipeline"
	"ticketsearch/internal/tickets"
	"ticketsearch/internal/vectorindex"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "ticketsearchd",
		Short: "Hybrid semantic/lexical ticket search daemon",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	root.AddCommand(serveCmd(), ingestCmd(), healthcheckCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP search API, with the nightly ingestion scheduler in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, eng, ing, shutdownMetrics, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer shutdownMetrics(context.Background())
			go ing.Run(ctx)
			srv := httpapi.NewServer(eng)
			log.Info().Str("addr", addr).Str("collection", cfg.Database.VectorDB.Main.CollectionName).Msg("serving")
			return httpServe(addr, srv)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8081", "HTTP listen address")
	return cmd
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one catch-up ingestion pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, _, ing, shutdownMetrics, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer shutdownMetrics(context.Background())
			return ing.Update(ctx)
		},
	}
}

func healthcheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Verify the embedding endpoint, relational store and vector store are reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return checkReachability(ctx, cfg)
		},
	}
}

// bootstrap wires every collaborator SearchEngine and Ingestor depend on,
// following the teacher's cmd/agentd/main.go construction order: load
// config, then storage clients, then the domain services built on top.
// The returned shutdown func flushes the metrics exporter (a no-op if
// metrics.otlp_endpoint was never configured) and must be deferred by the
// caller.
func bootstrap(ctx context.Context) (config.Config, *search.Engine, *ingest.Ingestor, func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	_ = godotenv.Load(".env")
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, nil, noopShutdown, fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.Logging.Path, cfg.Logging.Level)

	lem := textpipeline.NewSnowballLemmatizer()
	pipeline := textpipeline.New(lem)

	var emb embedder.Embedder
	if cfg.Embedding.BaseURL != "" {
		emb = embedder.NewHTTP(cfg.Embedding, 312)
	} else {
		emb = embedder.NewDeterministic(312)
	}

	seedWatermark, err := parseSeedWatermark(cfg.Database.VectorDB.Main.DateFrom)
	if err != nil {
		return cfg, nil, nil, noopShutdown, fmt.Errorf("parse vector_db.main.date_from: %w", err)
	}
	hnsw := vectorindex.HNSWConfig{
		M:                  cfg.Database.VectorDB.Indexing.MValue,
		EfConstruct:        cfg.Database.VectorDB.Indexing.EfConstruct,
		FullScanThreshold:  cfg.Database.VectorDB.Indexing.FullScanThreshold,
		MaxIndexingThreads: cfg.Database.VectorDB.Indexing.MaxIndexingThreads,
		OnDisk:             cfg.Database.VectorDB.Indexing.OnDisk,
	}
	idx, err := vectorindex.Open(cfg.Database.VectorDB.Main.URL, cfg.Database.VectorDB.Main.CollectionName, emb.Dimension(), hnsw, seedWatermark)
	if err != nil {
		return cfg, nil, nil, noopShutdown, fmt.Errorf("open vector index: %w", err)
	}
	if err := idx.Initialize(ctx); err != nil {
		return cfg, nil, nil, noopShutdown, fmt.Errorf("initialize vector index: %w", err)
	}

	src, err := tickets.Open(ctx, cfg.Database.RelationalDB.URL)
	if err != nil {
		return cfg, nil, nil, noopShutdown, fmt.Errorf("open relational source: %w", err)
	}

	var metrics obs.Metrics = obs.NoopMetrics{}
	shutdownMetrics := noopShutdown
	if cfg.Metrics.OTLPEndpoint != "" {
		shutdown, err := observability.InitMetrics(ctx, cfg.Metrics.OTLPEndpoint)
		if err != nil {
			return cfg, nil, nil, noopShutdown, fmt.Errorf("init metrics: %w", err)
		}
		metrics = obs.NewOtelMetrics()
		shutdownMetrics = shutdown
	}
	eng := search.New(pipeline, emb, idx, src, cfg.Service.Threshold, search.WithMetrics(metrics))
	ing := ingest.New(emb, pipeline, src, idx)

	return cfg, eng, ing, shutdownMetrics, nil
}

func parseSeedWatermark(s string) (t time.Time, err error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func httpServe(addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	return srv.ListenAndServe()
}

func checkReachability(ctx context.Context, cfg config.Config) error {
	log.Info().Msg("healthcheck: verifying collaborators")
	if cfg.Embedding.BaseURL != "" {
		if err := embedding.CheckReachability(ctx, cfg.Embedding); err != nil {
			return fmt.Errorf("embedding endpoint: %w", err)
		}
	}
	src, err := tickets.Open(ctx, cfg.Database.RelationalDB.URL)
	if err != nil {
		return fmt.Errorf("relational store: %w", err)
	}
	defer src.Close()

	seedWatermark, err := parseSeedWatermark(cfg.Database.VectorDB.Main.DateFrom)
	if err != nil {
		return err
	}
	idx, err := vectorindex.Open(cfg.Database.VectorDB.Main.URL, cfg.Database.VectorDB.Main.CollectionName, 312, vectorindex.HNSWConfig{}, seedWatermark)
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	defer idx.Close()
	log.Info().Msg("healthcheck: OK")
	return nil
}

// Package config loads the ticket search daemon's configuration from a YAML
// file with an environment-variable overlay for secrets and deployment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ModelConfig describes the embedding model used for the BERT branch.
type ModelConfig struct {
	Path      string `yaml:"path"`
	ModelName string `yaml:"model_name"`
}

// EmbeddingConfig configures the HTTP embedding endpoint. BaseURL+Path is
// called with {"model","input"} and must answer {"data":[{"embedding"}]}.
type EmbeddingConfig struct {
	BaseURL   string            `yaml:"base_url"`
	Path      string            `yaml:"path"`
	Model     string            `yaml:"model"`
	APIHeader string            `yaml:"api_header"`
	APIKey    string            `yaml:"api_key"`
	Headers   map[string]string `yaml:"headers"`
	Timeout   int               `yaml:"timeout_seconds"`
}

// RelationalDBConfig points at the Postgres instance holding ticket and
// enrichment data.
type RelationalDBConfig struct {
	URL string `yaml:"url"`
}

// VectorDBMainConfig names the Qdrant collection this daemon owns, plus the
// watermark floor used the first time the collection is bootstrapped.
type VectorDBMainConfig struct {
	URL            string `yaml:"url"`
	CollectionName string `yaml:"collection_name"`
	DateFrom       string `yaml:"date_from"`
}

// VectorDBIndexingConfig mirrors Qdrant's HnswConfigDiff wire fields.
type VectorDBIndexingConfig struct {
	MValue              int  `yaml:"m_value"`
	EfConstruct         int  `yaml:"ef_construct"`
	FullScanThreshold   int  `yaml:"full_scan_threshold"`
	MaxIndexingThreads  int  `yaml:"max_indexing_threads"`
	OnDisk              bool `yaml:"on_disk"`
}

// VectorDBConfig groups the main collection settings with its HNSW index tuning.
type VectorDBConfig struct {
	Main     VectorDBMainConfig     `yaml:"main"`
	Indexing VectorDBIndexingConfig `yaml:"indexing"`
}

// DatabaseConfig groups the relational and vector store configuration.
type DatabaseConfig struct {
	RelationalDB RelationalDBConfig `yaml:"relational_db"`
	VectorDB     VectorDBConfig     `yaml:"vector_db"`
}

// LoggingConfig controls the zerolog sink.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// ServiceConfig holds search-time tunables.
type ServiceConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// MetricsConfig points at the OTLP/HTTP collector the daemon exports search
// instrument readings to. An empty OTLPEndpoint disables export
// and the daemon records metrics into a no-op meter instead.
type MetricsConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Config is the fully resolved daemon configuration.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Service   ServiceConfig   `yaml:"service"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Load reads path as YAML and overlays any matching environment variables,
// following the teacher's godotenv-then-getenv pattern. After the YAML is
// parsed, a .env file in the working directory is loaded if present (its
// values override variables already set in the environment), then the
// overlay is applied; a missing .env is not an error.
func Load(path string) (Config, error) {
	var cfg Config

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	_ = godotenv.Overload()
	applyEnvOverlay(&cfg)

	if cfg.Database.VectorDB.Indexing.MValue == 0 {
		cfg.Database.VectorDB.Indexing.MValue = 16
	}
	if cfg.Database.VectorDB.Indexing.EfConstruct == 0 {
		cfg.Database.VectorDB.Indexing.EfConstruct = 200
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Service.Threshold == 0 {
		cfg.Service.Threshold = 0.5
	}

	return cfg, nil
}

func applyEnvOverlay(cfg *Config) {
	cfg.Database.RelationalDB.URL = firstNonEmpty(os.Getenv("TICKETSEARCH_RELATIONAL_DB_URL"), cfg.Database.RelationalDB.URL)
	cfg.Database.VectorDB.Main.URL = firstNonEmpty(os.Getenv("TICKETSEARCH_VECTOR_DB_URL"), cfg.Database.VectorDB.Main.URL)
	cfg.Database.VectorDB.Main.CollectionName = firstNonEmpty(os.Getenv("TICKETSEARCH_COLLECTION_NAME"), cfg.Database.VectorDB.Main.CollectionName)
	cfg.Embedding.BaseURL = firstNonEmpty(os.Getenv("TICKETSEARCH_EMBEDDING_BASE_URL"), cfg.Embedding.BaseURL)
	cfg.Embedding.APIKey = firstNonEmpty(os.Getenv("TICKETSEARCH_EMBEDDING_API_KEY"), cfg.Embedding.APIKey)
	cfg.Logging.Level = firstNonEmpty(strings.TrimSpace(os.Getenv("TICKETSEARCH_LOG_LEVEL")), cfg.Logging.Level)
	cfg.Metrics.OTLPEndpoint = firstNonEmpty(os.Getenv("TICKETSEARCH_METRICS_OTLP_ENDPOINT"), cfg.Metrics.OTLPEndpoint)

	if v := os.Getenv("TICKETSEARCH_SERVICE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Service.Threshold = f
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

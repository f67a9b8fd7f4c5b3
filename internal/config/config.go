package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the reviewsearch configuration shared by the API server and the pipeline CLI.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Lexical   LexicalConfig   `yaml:"lexical"`
	Vector    VectorConfig    `yaml:"vector"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Search    SearchConfig    `yaml:"search"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings (lexical index, vector index, embedding cache).
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	DialTimeoutMs    int      `yaml:"dial_timeout_ms"`
	WriteTimeoutMs   int      `yaml:"write_timeout_ms"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`

	// Longer inputs are truncated before they reach the provider.
	MaxInputRunes int `yaml:"max_input_runes"`

	// Offline only. Query-time embedding is never retried.
	MaxRetries     int `yaml:"max_retries"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`

	CacheTTLSec   int `yaml:"cache_ttl_sec"`   // 0 = no expiry
	MemoCacheSize int `yaml:"memo_cache_size"` // in-process LRU entries

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for the query-time embedder.
type BreakerConfig struct {
	MaxFailures uint32 `yaml:"max_failures"`
	OpenSec     int    `yaml:"open_sec"`
}

// LexicalConfig holds the product FT index settings.
type LexicalConfig struct {
	IndexName   string  `yaml:"index_name"`
	TitleWeight float64 `yaml:"title_weight"`
	Scorer      string  `yaml:"scorer"` // BM25STD (default), BM25, TFIDF
}

// VectorConfig holds the review HNSW index settings.
type VectorConfig struct {
	IndexName             string `yaml:"index_name"`
	Connectivity          int    `yaml:"hnsw_m"`
	ConstructionBeamWidth int    `yaml:"hnsw_ef_construction"`
	DefaultQueryBeamWidth int    `yaml:"hnsw_ef_runtime"`
	LoadBatchSize         int    `yaml:"load_batch_size"`
	SidecarPath           string `yaml:"sidecar_path"`
}

// MetadataConfig selects the vector-ID -> review metadata store.
type MetadataConfig struct {
	Driver string `yaml:"driver"` // sqlite (default), badger
	Path   string `yaml:"path"`
}

// CatalogConfig holds the relational product store settings.
type CatalogConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// SearchConfig holds query parameter defaults, ranges and the per-request deadline.
type SearchConfig struct {
	DefaultTopProducts int `yaml:"default_top_products"`
	MaxTopProducts     int `yaml:"max_top_products"`
	DefaultTopReviews  int `yaml:"default_top_reviews"`
	MaxTopReviews      int `yaml:"max_top_reviews"`
	DefaultVectorK     int `yaml:"default_vector_k"`
	MaxVectorK         int `yaml:"max_vector_k"`
	MaxBeamWidth       int `yaml:"max_query_beam_width"`
	TimeoutMs          int `yaml:"timeout_ms"`
}

// PipelineConfig holds offline pipeline paths and sampling parameters.
type PipelineConfig struct {
	ProductsPath string `yaml:"products_path"`
	ReviewsPath  string `yaml:"reviews_path"`
	OutputDir    string `yaml:"output_dir"`

	SampleProducts int    `yaml:"sample_products"`
	SampleReviews  int    `yaml:"sample_reviews"`
	PerProductCap  int    `yaml:"per_product_cap"`
	Seed           uint64 `yaml:"seed"`

	ProgressEvery int `yaml:"progress_every"`
	LoadWorkers   int `yaml:"load_workers"`
	LoadBatchSize int `yaml:"load_batch_size"`

	VerifyMinSimilarity float64 `yaml:"verify_min_similarity"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo,cyclop // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.DialTimeoutMs <= 0 {
		c.Database.DialTimeoutMs = 2000
	}
	if c.Database.WriteTimeoutMs <= 0 {
		c.Database.WriteTimeoutMs = 5000
	}

	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 128
	}
	if c.Embedding.MaxInputRunes <= 0 {
		c.Embedding.MaxInputRunes = 8000
	}
	if c.Embedding.MaxRetries < 0 {
		c.Embedding.MaxRetries = 0
	}
	if c.Embedding.RetryBackoffMs <= 0 {
		c.Embedding.RetryBackoffMs = 500
	}
	if c.Embedding.MemoCacheSize <= 0 {
		c.Embedding.MemoCacheSize = 1024
	}
	if c.Embedding.Breaker.MaxFailures == 0 {
		c.Embedding.Breaker.MaxFailures = 5
	}
	if c.Embedding.Breaker.OpenSec <= 0 {
		c.Embedding.Breaker.OpenSec = 30
	}

	if c.Lexical.IndexName == "" {
		c.Lexical.IndexName = "reviewsearch:products"
	}
	if c.Lexical.TitleWeight <= 0 {
		c.Lexical.TitleWeight = 3
	}
	if c.Lexical.Scorer == "" {
		c.Lexical.Scorer = "BM25STD"
	}

	if c.Vector.IndexName == "" {
		c.Vector.IndexName = "reviewsearch:reviews"
	}
	if c.Vector.Connectivity <= 0 {
		c.Vector.Connectivity = 32
	}
	if c.Vector.ConstructionBeamWidth <= 0 {
		c.Vector.ConstructionBeamWidth = 200
	}
	if c.Vector.DefaultQueryBeamWidth <= 0 {
		c.Vector.DefaultQueryBeamWidth = 200
	}
	if c.Vector.LoadBatchSize <= 0 {
		c.Vector.LoadBatchSize = 1000
	}
	if c.Vector.SidecarPath == "" {
		c.Vector.SidecarPath = "data/index.yaml"
	}

	if c.Metadata.Driver == "" {
		c.Metadata.Driver = "sqlite"
	}
	if c.Metadata.Path == "" {
		c.Metadata.Path = "data/metadata.db"
	}

	if c.Catalog.MaxOpenConns <= 0 {
		c.Catalog.MaxOpenConns = 10
	}
	if c.Catalog.MaxIdleConns <= 0 {
		c.Catalog.MaxIdleConns = 5
	}

	if c.Search.DefaultTopProducts <= 0 {
		c.Search.DefaultTopProducts = 5
	}
	if c.Search.MaxTopProducts <= 0 {
		c.Search.MaxTopProducts = 50
	}
	if c.Search.DefaultTopReviews <= 0 {
		c.Search.DefaultTopReviews = 5
	}
	if c.Search.MaxTopReviews <= 0 {
		c.Search.MaxTopReviews = 50
	}
	if c.Search.DefaultVectorK <= 0 {
		c.Search.DefaultVectorK = 50
	}
	if c.Search.MaxVectorK <= 0 {
		c.Search.MaxVectorK = 1000
	}
	if c.Search.MaxBeamWidth <= 0 {
		c.Search.MaxBeamWidth = 2000
	}
	if c.Search.TimeoutMs <= 0 {
		c.Search.TimeoutMs = 5000
	}

	if c.Pipeline.OutputDir == "" {
		c.Pipeline.OutputDir = "data"
	}
	if c.Pipeline.SampleProducts <= 0 {
		c.Pipeline.SampleProducts = 10000
	}
	if c.Pipeline.SampleReviews <= 0 {
		c.Pipeline.SampleReviews = 50000
	}
	if c.Pipeline.PerProductCap <= 0 {
		c.Pipeline.PerProductCap = 5
	}
	if c.Pipeline.Seed == 0 {
		c.Pipeline.Seed = 42
	}
	if c.Pipeline.ProgressEvery <= 0 {
		c.Pipeline.ProgressEvery = 200000
	}
	if c.Pipeline.LoadWorkers <= 0 {
		c.Pipeline.LoadWorkers = 4
	}
	if c.Pipeline.LoadBatchSize <= 0 {
		c.Pipeline.LoadBatchSize = 500
	}
	if c.Pipeline.VerifyMinSimilarity <= 0 {
		c.Pipeline.VerifyMinSimilarity = 0.2
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Metadata.Driver {
	case "sqlite", "badger":
		// ok
	default:
		return fmt.Errorf("metadata.driver must be \"sqlite\" or \"badger\", got %q", c.Metadata.Driver)
	}
	if c.Search.DefaultTopProducts > c.Search.MaxTopProducts {
		return fmt.Errorf("search.default_top_products %d exceeds max %d",
			c.Search.DefaultTopProducts, c.Search.MaxTopProducts)
	}
	if c.Search.DefaultTopReviews > c.Search.MaxTopReviews {
		return fmt.Errorf("search.default_top_reviews %d exceeds max %d",
			c.Search.DefaultTopReviews, c.Search.MaxTopReviews)
	}
	if c.Search.DefaultVectorK > c.Search.MaxVectorK {
		return fmt.Errorf("search.default_vector_k %d exceeds max %d",
			c.Search.DefaultVectorK, c.Search.MaxVectorK)
	}
	if c.Vector.DefaultQueryBeamWidth > c.Search.MaxBeamWidth {
		return fmt.Errorf("vector.hnsw_ef_runtime %d exceeds search.max_query_beam_width %d",
			c.Vector.DefaultQueryBeamWidth, c.Search.MaxBeamWidth)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

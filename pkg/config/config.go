// Package config loads and validates application configuration from YAML files
// with .env and environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Kafka, Redis, Storage, Build, Search,
// Catalog, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Content   ContentConfig   `yaml:"content"`
	Build     BuildConfig     `yaml:"build"`
	Search    SearchConfig    `yaml:"search"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables event publishing and hot reload.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ArtifactsPublished string `yaml:"artifactsPublished"`
	AnalyticsEvents    string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// Storage backends for the derived artifacts.
const (
	StorageFile   = "file"
	StorageBadger = "badger"
)

// StorageConfig selects where the index, graph and PageRank artifacts live.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	// KeepGenerations is how many older generations the stores keep.
	KeepGenerations int `yaml:"keepGenerations"`
	// PollInterval > 0 makes the searcher poll for new generations when
	// Kafka is not configured.
	PollInterval time.Duration `yaml:"pollInterval"`
}

// ContentConfig locates full document text.
type ContentConfig struct {
	Dir string `yaml:"dir"`
}

// Dangling-node policies for PageRank.
const (
	DanglingLeak         = "leak"
	DanglingRedistribute = "redistribute"
)

// BuildConfig parameterises the offline pipeline.
type BuildConfig struct {
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	Damping             float64 `yaml:"damping"`
	Iterations          int     `yaml:"iterations"`
	DanglingPolicy      string  `yaml:"danglingPolicy"`
	Workers             int     `yaml:"workers"`
	StopWords           bool    `yaml:"stopWords"`
	PublishEvents       bool    `yaml:"publishEvents"`
}

// SearchConfig controls query execution and response shaping.
type SearchConfig struct {
	DefaultPageSize   int `yaml:"defaultPageSize"`
	MaxPageSize       int `yaml:"maxPageSize"`
	SnippetLength     int `yaml:"snippetLength"`
	DetailSnippet     int `yaml:"detailSnippet"`
	DocumentPageSize  int `yaml:"documentPageSize"`
	DefaultRecommend  int `yaml:"defaultRecommend"`
	MaxRecommend      int `yaml:"maxRecommend"`
	SnippetCacheBytes int `yaml:"snippetCacheBytes"`
	PatternCacheSize  int `yaml:"patternCacheSize"`
}

// Metadata store backends for the catalog.
const (
	MetadataJSON     = "json"
	MetadataPostgres = "postgres"
)

// CatalogConfig controls document acquisition.
type CatalogConfig struct {
	BaseURL          string        `yaml:"baseUrl"`
	TargetCount      int           `yaml:"targetCount"`
	MinWords         int           `yaml:"minWords"`
	PageSize         int           `yaml:"pageSize"`
	RequestTimeout   time.Duration `yaml:"requestTimeout"`
	PoliteDelay      time.Duration `yaml:"politeDelay"`
	MaxAttempts      int           `yaml:"maxAttempts"`
	InitialBackoff   time.Duration `yaml:"initialBackoff"`
	MaxBackoff       time.Duration `yaml:"maxBackoff"`
	CacheTTL         time.Duration `yaml:"cacheTTL"`
	MetadataBackend  string        `yaml:"metadataBackend"`
	MetadataPath     string        `yaml:"metadataPath"`
	CoverDir         string        `yaml:"coverDir"`
	DownloadCovers   bool          `yaml:"downloadCovers"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
}

// AnalyticsConfig controls search-event collection in the searcher.
type AnalyticsConfig struct {
	BufferSize    int           `yaml:"bufferSize"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`

	// SnapshotInterval > 0 persists aggregated stats to PostgreSQL.
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), then a .env file in the
// working directory (if present), and applies BSE_* environment overrides.
// It returns a validated Config populated with defaults for missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects parameter combinations the pipeline cannot honour.
func (c *Config) Validate() error {
	b := c.Build
	if b.SimilarityThreshold <= 0 || b.SimilarityThreshold > 1 {
		return fmt.Errorf("build.similarityThreshold must be in (0,1], got %v", b.SimilarityThreshold)
	}
	if b.Damping <= 0 || b.Damping >= 1 {
		return fmt.Errorf("build.damping must be in (0,1), got %v", b.Damping)
	}
	if b.Iterations < 1 {
		return fmt.Errorf("build.iterations must be at least 1, got %d", b.Iterations)
	}
	switch b.DanglingPolicy {
	case DanglingLeak, DanglingRedistribute:
	default:
		return fmt.Errorf("build.danglingPolicy must be %q or %q, got %q", DanglingLeak, DanglingRedistribute, b.DanglingPolicy)
	}
	switch c.Storage.Backend {
	case StorageFile, StorageBadger:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", StorageFile, StorageBadger, c.Storage.Backend)
	}
	switch c.Catalog.MetadataBackend {
	case MetadataJSON, MetadataPostgres:
	default:
		return fmt.Errorf("catalog.metadataBackend must be %q or %q, got %q", MetadataJSON, MetadataPostgres, c.Catalog.MetadataBackend)
	}
	if c.Search.DefaultPageSize < 1 || c.Search.MaxPageSize < c.Search.DefaultPageSize {
		return fmt.Errorf("search page sizes invalid: default=%d max=%d", c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "booksearch",
			User:            "booksearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "booksearch-searcher",
			Topics: KafkaTopics{
				ArtifactsPublished: "artifacts.published",
				AnalyticsEvents:    "search-analytics",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Storage: StorageConfig{
			Backend:         StorageFile,
			Dir:             "data/artifacts",
			KeepGenerations: 1,
		},
		Content: ContentConfig{
			Dir: "data/books",
		},
		Build: BuildConfig{
			SimilarityThreshold: 0.12,
			Damping:             0.85,
			Iterations:          30,
			DanglingPolicy:      DanglingLeak,
			Workers:             0,
		},
		Search: SearchConfig{
			DefaultPageSize:   20,
			MaxPageSize:       100,
			SnippetLength:     300,
			DetailSnippet:     800,
			DocumentPageSize:  5000,
			DefaultRecommend:  5,
			MaxRecommend:      50,
			SnippetCacheBytes: 8 << 20,
			PatternCacheSize:  1024,
		},
		Catalog: CatalogConfig{
			BaseURL:          "https://gutendex.com/books",
			TargetCount:      1664,
			MinWords:         10000,
			PageSize:         100,
			RequestTimeout:   30 * time.Second,
			PoliteDelay:      time.Second,
			MaxAttempts:      3,
			InitialBackoff:   2 * time.Second,
			MaxBackoff:       30 * time.Second,
			CacheTTL:         time.Hour,
			MetadataBackend:  MetadataJSON,
			MetadataPath:     "data/metadata.json",
			CoverDir:         "data/covers",
			BreakerThreshold: 5,
		},
		Analytics: AnalyticsConfig{
			BufferSize:    10000,
			BatchSize:     100,
			FlushInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads BSE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BSE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BSE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("BSE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("BSE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("BSE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("BSE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("BSE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("BSE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("BSE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("BSE_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("BSE_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("BSE_CONTENT_DIR"); v != "" {
		cfg.Content.Dir = v
	}
	if v := os.Getenv("BSE_BUILD_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Build.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("BSE_BUILD_DANGLING_POLICY"); v != "" {
		cfg.Build.DanglingPolicy = v
	}
	if v := os.Getenv("BSE_BUILD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Build.Workers = n
		}
	}
	if v := os.Getenv("BSE_CATALOG_METADATA_BACKEND"); v != "" {
		cfg.Catalog.MetadataBackend = v
	}
	if v := os.Getenv("BSE_CATALOG_METADATA_PATH"); v != "" {
		cfg.Catalog.MetadataPath = v
	}
	if v := os.Getenv("BSE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BSE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

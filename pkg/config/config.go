// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Indexer, Source, Recognizer,
// Snapshot, Search, etc.).
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Indexer    IndexerConfig    `yaml:"indexer"`
	Source     SourceConfig     `yaml:"source"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Search     SearchConfig     `yaml:"search"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is requests per second allowed per client. Zero disables it.
	RateLimit   float64  `yaml:"rateLimit"`
	RateBurst   int      `yaml:"rateBurst"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
	IndexReady     string `yaml:"indexReady"`
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

// IndexerConfig controls the build pipeline: worker pool size, merge queue
// capacity, per-document extraction timeout and the co-occurrence policy for
// documents with very many distinct entities.
type IndexerConfig struct {
	Workers              int           `yaml:"workers"`
	QueueSize            int           `yaml:"queueSize"`
	ExtractTimeout       time.Duration `yaml:"extractTimeout"`
	WarnDistinctEntities int           `yaml:"warnDistinctEntities"`
	MaxPairEntities      int           `yaml:"maxPairEntities"`
	ProgressEvery        int           `yaml:"progressEvery"`
	PersistPartial       bool          `yaml:"persistPartial"`
}

// SourceConfig selects and configures the document source.
type SourceConfig struct {
	Kind         string        `yaml:"kind"`
	Root         string        `yaml:"root"`
	Extensions   []string      `yaml:"extensions"`
	Query        string        `yaml:"query"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	MaxDocuments int           `yaml:"maxDocuments"`
}

// RecognizerConfig selects the entity recognition backend and tunes the HTTP
// client that talks to it.
type RecognizerConfig struct {
	Backend           string        `yaml:"backend"`
	Endpoint          string        `yaml:"endpoint"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxTokens         int           `yaml:"maxTokens"`
	MinScore          float64       `yaml:"minScore"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	RetryAttempts     int           `yaml:"retryAttempts"`
	BreakerThreshold  int           `yaml:"breakerThreshold"`
	BreakerReset      time.Duration `yaml:"breakerReset"`
	SkipHealthCheck   bool          `yaml:"skipHealthCheck"`
}

// SnapshotConfig controls where and how the index snapshot is persisted.
type SnapshotConfig struct {
	Store       string      `yaml:"store"`
	Path        string      `yaml:"path"`
	Compression string      `yaml:"compression"`
	MinIO       MinIOConfig `yaml:"minio"`
}

// MinIOConfig holds S3-compatible object storage settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"useSSL"`
}

// SearchConfig controls query defaults and limits.
type SearchConfig struct {
	DefaultTopK     int           `yaml:"defaultTopK"`
	DefaultRelatedK int           `yaml:"defaultRelatedK"`
	MaxResults      int           `yaml:"maxResults"`
	AllowPartial    bool          `yaml:"allowPartial"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	// LocalCacheSize bounds the in-process LRU used when Redis is disabled.
	// Zero disables result caching entirely.
	LocalCacheSize int `yaml:"localCacheSize"`
	// WatchSnapshot reloads the index when the local snapshot file changes.
	WatchSnapshot bool `yaml:"watchSnapshot"`
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

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       100,
			RateBurst:       200,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "entityindex",
			User:            "entityindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "entityindex-group",
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
				IndexReady:     "entity-index.ready",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Indexer: IndexerConfig{
			Workers:              runtime.NumCPU(),
			QueueSize:            64,
			ExtractTimeout:       2 * time.Minute,
			WarnDistinctEntities: 500,
			ProgressEvery:        100,
		},
		Source: SourceConfig{
			Kind:        "fs",
			Root:        "data/articles",
			Extensions:  []string{".txt"},
			Query:       "SELECT id, subject, summary, content FROM articles ORDER BY id",
			IdleTimeout: 10 * time.Second,
		},
		Recognizer: RecognizerConfig{
			Backend:           "tagstream",
			Endpoint:          "http://localhost:8500",
			Timeout:           60 * time.Second,
			MaxTokens:         500,
			RequestsPerSecond: 0,
			RetryAttempts:     3,
			BreakerThreshold:  5,
			BreakerReset:      30 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Store:       "local",
			Path:        "data/index.eidx",
			Compression: "zstd",
			MinIO: MinIOConfig{
				Endpoint: "localhost:9000",
				Bucket:   "entity-index",
				Prefix:   "snapshots",
			},
		},
		Search: SearchConfig{
			DefaultTopK:     20,
			DefaultRelatedK: 10,
			MaxResults:      1000,
			RequestTimeout:  5 * time.Second,
			LocalCacheSize:  1024,
			WatchSnapshot:   true,
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

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "fs", "postgres", "kafka":
	default:
		return fmt.Errorf("invalid source kind %q (want fs, postgres or kafka)", c.Source.Kind)
	}
	switch c.Snapshot.Store {
	case "local", "minio":
	default:
		return fmt.Errorf("invalid snapshot store %q (want local or minio)", c.Snapshot.Store)
	}
	switch c.Snapshot.Compression {
	case "none", "lz4", "zstd":
	default:
		return fmt.Errorf("invalid snapshot compression %q (want none, lz4 or zstd)", c.Snapshot.Compression)
	}
	if c.Indexer.Workers <= 0 {
		c.Indexer.Workers = runtime.NumCPU()
	}
	if c.Indexer.QueueSize <= 0 {
		c.Indexer.QueueSize = c.Indexer.Workers * 4
	}
	if c.Source.Kind == "postgres" && !c.Postgres.Enabled {
		return fmt.Errorf("source kind postgres requires postgres.enabled")
	}
	if c.Source.Kind == "kafka" && !c.Kafka.Enabled {
		return fmt.Errorf("source kind kafka requires kafka.enabled")
	}
	return nil
}

// applyEnvOverrides reads EIP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EIP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EIP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("EIP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("EIP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("EIP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("EIP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("EIP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("EIP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("EIP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("EIP_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("EIP_SOURCE_KIND"); v != "" {
		cfg.Source.Kind = v
	}
	if v := os.Getenv("EIP_SOURCE_ROOT"); v != "" {
		cfg.Source.Root = v
	}
	if v := os.Getenv("EIP_RECOGNIZER_BACKEND"); v != "" {
		cfg.Recognizer.Backend = v
	}
	if v := os.Getenv("EIP_RECOGNIZER_ENDPOINT"); v != "" {
		cfg.Recognizer.Endpoint = v
	}
	if v := os.Getenv("EIP_SNAPSHOT_PATH"); v != "" {
		cfg.Snapshot.Path = v
	}
	if v := os.Getenv("EIP_SNAPSHOT_STORE"); v != "" {
		cfg.Snapshot.Store = v
	}
	if v := os.Getenv("EIP_MINIO_ACCESS_KEY"); v != "" {
		cfg.Snapshot.MinIO.AccessKey = v
	}
	if v := os.Getenv("EIP_MINIO_SECRET_KEY"); v != "" {
		cfg.Snapshot.MinIO.SecretKey = v
	}
	if v := os.Getenv("EIP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EIP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("EIP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

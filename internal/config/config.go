// Package config defines all configuration structures for the HS
// classification platform.  No I/O or parsing logic lives here, only plain
// data types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the catalog store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds Redis connection parameters for the result cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the audit-event producer parameters.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	AuditTopic   string        `mapstructure:"audit_topic"`
	Acks         string        `mapstructure:"acks"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// OpenSearchConfig holds the catalog full-text index connection parameters.
type OpenSearchConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	IndexPrefix        string   `mapstructure:"index_prefix"`
	BulkBatchSize      int      `mapstructure:"bulk_batch_size"`
}

// MilvusConfig holds the catalog embedding collection parameters.
type MilvusConfig struct {
	Addr             string        `mapstructure:"addr"`
	DBName           string        `mapstructure:"db_name"`
	CollectionPrefix string        `mapstructure:"collection_prefix"`
	EmbeddingDim     int           `mapstructure:"embedding_dim"`
	DefaultTopK      int           `mapstructure:"default_top_k"`
	SearchTimeout    time.Duration `mapstructure:"search_timeout"`
}

// MinIOConfig holds the catalog snapshot object-storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// EmbeddingConfig holds the external embedding provider parameters.  The
// engine never re-embeds the catalog; this client maps query text to vectors.
type EmbeddingConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Dimension int           `mapstructure:"dimension"`
}

// ClassifyConfig holds the classification engine tunables: candidate bounds,
// method weights, and the per-matcher timeout.
type ClassifyConfig struct {
	// LexicalTopK bounds the lexical matcher's result list.
	LexicalTopK int `mapstructure:"lexical_top_k"`

	// SemanticTopK bounds the semantic matcher's result list.
	SemanticTopK int `mapstructure:"semantic_top_k"`

	// SemanticLevel is the catalog granularity the semantic matcher retrieves
	// at: "chapter" | "heading" | "subheading" | "national".
	SemanticLevel string `mapstructure:"semantic_level"`

	// MergedCap truncates the merged candidate set; a performance bound, not a
	// correctness requirement.
	MergedCap int `mapstructure:"merged_cap"`

	// RankedCap bounds ClassificationResult.RankedCandidates.
	RankedCap int `mapstructure:"ranked_cap"`

	// Method weights for the combined score.  Must sum to 1.0.
	SemanticWeight   float64 `mapstructure:"semantic_weight"`
	LexicalWeight    float64 `mapstructure:"lexical_weight"`
	StructuredWeight float64 `mapstructure:"structured_weight"`

	// MatcherTimeout applies to each matcher independently; exceeding it is a
	// soft failure that degrades the call rather than aborting it.
	MatcherTimeout time.Duration `mapstructure:"matcher_timeout"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the platform.  Every
// infrastructure component and application service reads its settings from
// the relevant sub-struct.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Milvus     MilvusConfig     `mapstructure:"milvus"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Classify   ClassifyConfig   `mapstructure:"classify"`
	Log        LogConfig        `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

const weightSumTolerance = 1e-9

// Validate performs semantic validation of the fully-populated Config.  It
// returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.AuditTopic == "" {
		return fmt.Errorf("config: kafka.audit_topic is required")
	}

	if c.Milvus.Addr == "" {
		return fmt.Errorf("config: milvus.addr is required")
	}
	if c.Milvus.EmbeddingDim < 1 {
		return fmt.Errorf("config: milvus.embedding_dim must be >= 1, got %d", c.Milvus.EmbeddingDim)
	}

	if err := c.Classify.validate(); err != nil {
		return err
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

func (c *ClassifyConfig) validate() error {
	if c.LexicalTopK < 1 {
		return fmt.Errorf("config: classify.lexical_top_k must be >= 1, got %d", c.LexicalTopK)
	}
	if c.SemanticTopK < 1 {
		return fmt.Errorf("config: classify.semantic_top_k must be >= 1, got %d", c.SemanticTopK)
	}
	switch c.SemanticLevel {
	case "chapter", "heading", "subheading", "national":
	default:
		return fmt.Errorf("config: classify.semantic_level %q is invalid; expected chapter|heading|subheading|national", c.SemanticLevel)
	}
	if c.MergedCap < 1 {
		return fmt.Errorf("config: classify.merged_cap must be >= 1, got %d", c.MergedCap)
	}
	if c.RankedCap < 1 {
		return fmt.Errorf("config: classify.ranked_cap must be >= 1, got %d", c.RankedCap)
	}
	for name, w := range map[string]float64{
		"semantic_weight":   c.SemanticWeight,
		"lexical_weight":    c.LexicalWeight,
		"structured_weight": c.StructuredWeight,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("config: classify.%s %f is out of range [0, 1]", name, w)
		}
	}
	sum := c.SemanticWeight + c.LexicalWeight + c.StructuredWeight
	if diff := sum - 1.0; diff > weightSumTolerance || diff < -weightSumTolerance {
		return fmt.Errorf("config: classify method weights must sum to 1.0, got %f", sum)
	}
	if c.MatcherTimeout <= 0 {
		return fmt.Errorf("config: classify.matcher_timeout must be positive, got %s", c.MatcherTimeout)
	}
	return nil
}

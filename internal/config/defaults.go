package config

import "time"

// Default value constants.  Grouped by sub-config; referenced by tests so the
// defaults stay an explicit part of the package contract.
const (
	DefaultServerPort      = 8080
	DefaultServerMode      = "release"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "hscatalog"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisTTL       = 15 * time.Minute
	DefaultRedisKeyPrefix = "hscls"

	DefaultKafkaBroker     = "localhost:9092"
	DefaultKafkaAuditTopic = "hs.classification.audit"

	DefaultMilvusAddr         = "localhost:19530"
	DefaultMilvusCollection   = "hs_catalog"
	DefaultMilvusEmbeddingDim = 768
	DefaultMilvusTopK         = 50
	DefaultMilvusTimeout      = 5 * time.Second

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "hs-catalog-exports"

	DefaultOpenSearchIndexPrefix = "hs-catalog"

	DefaultEmbeddingModel   = "multilingual-e5-base"
	DefaultEmbeddingTimeout = 10 * time.Second

	DefaultLexicalTopK      = 50
	DefaultSemanticTopK     = 50
	DefaultSemanticLevel    = "heading"
	DefaultMergedCap        = 100
	DefaultRankedCap        = 10
	DefaultSemanticWeight   = 0.5
	DefaultLexicalWeight    = 0.3
	DefaultStructuredWeight = 0.2
	DefaultMatcherTimeout   = 2 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the platform
// default.  Fields already set by the caller are left unchanged so explicit
// configuration always wins.  It must run after unmarshalling and before
// Validate so optional-but-defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// Server
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Kafka
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.AuditTopic == "" {
		cfg.Kafka.AuditTopic = DefaultKafkaAuditTopic
	}
	if cfg.Kafka.Acks == "" {
		cfg.Kafka.Acks = "all"
	}

	// OpenSearch
	if len(cfg.OpenSearch.Addresses) == 0 {
		cfg.OpenSearch.Addresses = []string{"http://localhost:9200"}
	}
	if cfg.OpenSearch.IndexPrefix == "" {
		cfg.OpenSearch.IndexPrefix = DefaultOpenSearchIndexPrefix
	}

	// Milvus
	if cfg.Milvus.Addr == "" {
		cfg.Milvus.Addr = DefaultMilvusAddr
	}
	if cfg.Milvus.CollectionPrefix == "" {
		cfg.Milvus.CollectionPrefix = DefaultMilvusCollection
	}
	if cfg.Milvus.EmbeddingDim == 0 {
		cfg.Milvus.EmbeddingDim = DefaultMilvusEmbeddingDim
	}
	if cfg.Milvus.DefaultTopK == 0 {
		cfg.Milvus.DefaultTopK = DefaultMilvusTopK
	}
	if cfg.Milvus.SearchTimeout == 0 {
		cfg.Milvus.SearchTimeout = DefaultMilvusTimeout
	}

	// MinIO
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// Embedding
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbeddingModel
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = DefaultEmbeddingTimeout
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = DefaultMilvusEmbeddingDim
	}

	// Classify
	if cfg.Classify.LexicalTopK == 0 {
		cfg.Classify.LexicalTopK = DefaultLexicalTopK
	}
	if cfg.Classify.SemanticTopK == 0 {
		cfg.Classify.SemanticTopK = DefaultSemanticTopK
	}
	if cfg.Classify.SemanticLevel == "" {
		cfg.Classify.SemanticLevel = DefaultSemanticLevel
	}
	if cfg.Classify.MergedCap == 0 {
		cfg.Classify.MergedCap = DefaultMergedCap
	}
	if cfg.Classify.RankedCap == 0 {
		cfg.Classify.RankedCap = DefaultRankedCap
	}
	if cfg.Classify.SemanticWeight == 0 && cfg.Classify.LexicalWeight == 0 && cfg.Classify.StructuredWeight == 0 {
		cfg.Classify.SemanticWeight = DefaultSemanticWeight
		cfg.Classify.LexicalWeight = DefaultLexicalWeight
		cfg.Classify.StructuredWeight = DefaultStructuredWeight
	}
	if cfg.Classify.MatcherTimeout == 0 {
		cfg.Classify.MatcherTimeout = DefaultMatcherTimeout
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// NewDefaultConfig returns a Config populated entirely from defaults.  Used
// by entry points when no config file is present and by tests.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

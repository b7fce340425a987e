// Command apiserver runs the HS classification HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcatalog "github.com/aduanet/hs-classify/internal/application/catalog"
	"github.com/aduanet/hs-classify/internal/application/classification"
	"github.com/aduanet/hs-classify/internal/classify"
	"github.com/aduanet/hs-classify/internal/config"
	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/internal/infrastructure/database/postgres"
	"github.com/aduanet/hs-classify/internal/infrastructure/database/postgres/repositories"
	"github.com/aduanet/hs-classify/internal/infrastructure/database/redis"
	"github.com/aduanet/hs-classify/internal/infrastructure/embedding"
	"github.com/aduanet/hs-classify/internal/infrastructure/messaging/kafka"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/prometheus"
	"github.com/aduanet/hs-classify/internal/infrastructure/search/milvus"
	"github.com/aduanet/hs-classify/internal/infrastructure/search/opensearch"
	"github.com/aduanet/hs-classify/internal/infrastructure/storage/minio"
	httpserver "github.com/aduanet/hs-classify/internal/interfaces/http"
	"github.com/aduanet/hs-classify/internal/interfaces/http/handlers"
)

const (
	defaultConfigPath = "configs/config.yaml"
	metricsNamespace  = "hscls"
	startupTimeout    = 60 * time.Second
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the YAML configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting hs-classify API server",
		logging.Int("port", cfg.Server.Port),
		logging.String("log_level", cfg.Log.Level),
	)

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Fatal("server exited with error", logging.Err(err))
	}
}

func run(cfg *config.Config, configPath string, logger logging.Logger) error {
	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            metricsNamespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return fmt.Errorf("metrics collector: %w", err)
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	checkers := map[string]handlers.Checker{}

	// Catalog source: postgres is authoritative; the object-store export is
	// the fallback for deployments without a database.
	var (
		source catalog.Source
		pgConn *postgres.Connection
	)
	switch {
	case cfg.Database.Host != "":
		pgConn, err = postgres.Connect(startCtx, postgres.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			Username:        cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pgConn.Close()
		checkers["postgres"] = pgConn.Ping

		repo, err := repositories.NewCatalogRepo(pgConn.Pool(), logger)
		if err != nil {
			return fmt.Errorf("catalog repository: %w", err)
		}
		source = repo
	case cfg.MinIO.Endpoint != "":
		src, err := minio.NewSource(&minio.Config{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKey,
			SecretAccessKey: cfg.MinIO.SecretKey,
			Bucket:          cfg.MinIO.Bucket,
			UseSSL:          cfg.MinIO.UseSSL,
		}, logger)
		if err != nil {
			return fmt.Errorf("minio source: %w", err)
		}
		source = src
	default:
		return fmt.Errorf("no catalog source configured: set database.host or minio.endpoint")
	}

	provider := catalog.NewProvider()
	ingestor, err := catalog.NewIngestor(source, provider, logger)
	if err != nil {
		return fmt.Errorf("catalog ingestor: %w", err)
	}
	snap, err := ingestor.Ingest(startCtx, "")
	if err != nil {
		return fmt.Errorf("initial catalog ingest: %w", err)
	}
	appMetrics.ObserveIngest(snap.Version(), snap.Len(), 0, nil)
	checkers["catalog"] = func(context.Context) error {
		_, err := provider.Pin()
		return err
	}

	matchers, closers, err := buildMatchers(startCtx, cfg, checkers, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	engine, err := classify.NewEngine(provider, matchers,
		classify.WithWeights(classify.Weights{
			Semantic:   cfg.Classify.SemanticWeight,
			Lexical:    cfg.Classify.LexicalWeight,
			Structured: cfg.Classify.StructuredWeight,
		}),
		classify.WithMergedCap(cfg.Classify.MergedCap),
		classify.WithRankedCap(cfg.Classify.RankedCap),
		classify.WithMatcherTimeout(cfg.Classify.MatcherTimeout),
		classify.WithLogger(logger),
		classify.WithMetrics(prometheus.NewEngineMetrics(appMetrics)),
	)
	if err != nil {
		return fmt.Errorf("classification engine: %w", err)
	}

	var cache classification.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := redis.NewCache(redis.Config{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			DefaultTTL:  cfg.Redis.DefaultTTL,
			DialTimeout: cfg.Redis.DialTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("redis cache: %w", err)
		}
		defer redisCache.Close()
		checkers["redis"] = redisCache.Ping
		cache = redisCache
	} else {
		logger.Warn("redis not configured; classification results will not be cached")
	}

	var audit classification.AuditPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.AuditTopic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
		audit = producer
	} else {
		logger.Warn("kafka not configured; classification audit events disabled")
	}

	svcOpts := []classification.ServiceOption{classification.WithCacheStats(appMetrics)}
	if cfg.Redis.DefaultTTL > 0 {
		svcOpts = append(svcOpts, classification.WithResultTTL(cfg.Redis.DefaultTTL))
	}
	classifySvc, err := classification.NewService(engine, cache, audit,
		func() string {
			s, err := provider.Pin()
			if err != nil {
				return ""
			}
			return s.Version()
		},
		logger,
		svcOpts...,
	)
	if err != nil {
		return fmt.Errorf("classification service: %w", err)
	}

	catalogSvc, err := appcatalog.NewService(provider, ingestor, appMetrics, logger)
	if err != nil {
		return fmt.Errorf("catalog service: %w", err)
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		ClassifyHandler: handlers.NewClassifyHandler(classifySvc),
		CatalogHandler:  handlers.NewCatalogHandler(catalogSvc),
		HealthHandler:   handlers.NewHealthHandler(checkers),
		MetricsHandler:  collector.Handler(),
		HTTPMetrics:     appMetrics,
		Logger:          logger,
	})

	server := httpserver.NewServer(httpserver.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	// Hot-reload the log level on config file edits. Everything else needs a
	// restart.
	if _, err := os.Stat(configPath); err == nil {
		config.Watch(configPath, func(next *config.Config) {
			if logging.SetLevel(logger, next.Log.Level) {
				logger.Info("log level updated", logging.String("level", next.Log.Level))
			}
		})
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stopCancel()
	if err := server.Stop(stopCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// buildMatchers wires the retrieval methods the configuration enables. The
// structured matcher is always on; lexical retrieval is index-backed when
// OpenSearch is configured and scans the snapshot in process otherwise;
// semantic retrieval needs both Milvus and an embedding provider.
func buildMatchers(ctx context.Context, cfg *config.Config, checkers map[string]handlers.Checker, logger logging.Logger) ([]classify.Matcher, []func() error, error) {
	matchers := []classify.Matcher{classify.NewStructuredMatcher()}
	var closers []func() error

	if len(cfg.OpenSearch.Addresses) > 0 {
		searcher, err := opensearch.NewSearcher(opensearch.Config{
			Addresses:   cfg.OpenSearch.Addresses,
			Username:    cfg.OpenSearch.User,
			Password:    cfg.OpenSearch.Password,
			IndexPrefix: cfg.OpenSearch.IndexPrefix,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opensearch: %w", err)
		}
		checkers["opensearch"] = searcher.Ping

		m, err := classify.NewIndexLexicalMatcher(searcher, cfg.Classify.LexicalTopK)
		if err != nil {
			return nil, nil, fmt.Errorf("lexical matcher: %w", err)
		}
		matchers = append(matchers, m)
	} else {
		m, err := classify.NewLexicalMatcher(classify.NewTokenSetScorer(classify.NewNormalizer()), cfg.Classify.LexicalTopK)
		if err != nil {
			return nil, nil, fmt.Errorf("lexical matcher: %w", err)
		}
		matchers = append(matchers, m)
		logger.Info("opensearch not configured; lexical retrieval scans the snapshot in process")
	}

	if cfg.Milvus.Addr != "" && cfg.Embedding.BaseURL != "" {
		searcher, err := milvus.Connect(ctx, milvus.Config{
			Address:       cfg.Milvus.Addr,
			Collection:    cfg.Milvus.CollectionPrefix,
			SearchTimeout: cfg.Milvus.SearchTimeout,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("milvus: %w", err)
		}
		closers = append(closers, searcher.Close)
		checkers["milvus"] = searcher.Ping

		embedder, err := embedding.NewClient(&embedding.Config{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.Embedding.APIKey,
			Model:   cfg.Embedding.Model,
			Timeout: cfg.Embedding.Timeout,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("embedding client: %w", err)
		}

		m, err := classify.NewSemanticMatcher(embedder, searcher,
			catalog.Level(cfg.Classify.SemanticLevel), cfg.Classify.SemanticTopK)
		if err != nil {
			return nil, nil, fmt.Errorf("semantic matcher: %w", err)
		}
		matchers = append(matchers, m)
	} else {
		logger.Warn("milvus or embedding provider not configured; semantic retrieval disabled")
	}

	return matchers, closers, nil
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

// Command worker keeps the serving catalog in sync with its source. It polls
// the source for new releases, ingests them, and refreshes the full-text
// index so the API servers pick up the new version on their next poll.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aduanet/hs-classify/internal/config"
	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/internal/infrastructure/database/postgres"
	"github.com/aduanet/hs-classify/internal/infrastructure/database/postgres/repositories"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/internal/infrastructure/search/opensearch"
	"github.com/aduanet/hs-classify/internal/infrastructure/storage/minio"
	"github.com/aduanet/hs-classify/pkg/errors"
)

const (
	defaultConfigPath   = "configs/config.yaml"
	defaultSyncInterval = 5 * time.Minute
	defaultHealthAddr   = ":8081"
	syncTimeout         = 10 * time.Minute
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the YAML configuration file")
	interval := flag.Duration("interval", defaultSyncInterval, "catalog source poll interval")
	once := flag.Bool("once", false, "run a single sync pass and exit")
	healthAddr := flag.String("health-addr", defaultHealthAddr, "health probe listen address")
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
	logger = logger.Named("worker")

	if err := run(cfg, logger, *interval, *once, *healthAddr); err != nil {
		logger.Fatal("worker exited with error", logging.Err(err))
	}
}

func run(cfg *config.Config, logger logging.Logger, interval time.Duration, once bool, healthAddr string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	source, cleanup, err := buildSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	provider := catalog.NewProvider()
	ingestor, err := catalog.NewIngestor(source, provider, logger)
	if err != nil {
		return fmt.Errorf("catalog ingestor: %w", err)
	}

	var indexer *opensearch.Indexer
	if len(cfg.OpenSearch.Addresses) > 0 {
		searcher, err := opensearch.NewSearcher(opensearch.Config{
			Addresses:   cfg.OpenSearch.Addresses,
			Username:    cfg.OpenSearch.User,
			Password:    cfg.OpenSearch.Password,
			IndexPrefix: cfg.OpenSearch.IndexPrefix,
		}, logger)
		if err != nil {
			return fmt.Errorf("opensearch: %w", err)
		}
		indexer, err = opensearch.NewIndexer(searcher, logger)
		if err != nil {
			return fmt.Errorf("opensearch indexer: %w", err)
		}
	} else {
		logger.Info("opensearch not configured; skipping full-text index refresh")
	}

	s := &syncer{
		source:   source,
		provider: provider,
		ingestor: ingestor,
		indexer:  indexer,
		logger:   logger,
	}

	if once {
		syncCtx, syncCancel := context.WithTimeout(ctx, syncTimeout)
		defer syncCancel()
		return s.syncOnce(syncCtx)
	}

	healthSrv := startHealthServer(healthAddr, logger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = healthSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("catalog sync worker started", logging.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First pass immediately so a fresh deployment serves without waiting a
	// full interval.
	s.runPass(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			return nil
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

// syncer compares the source's newest release against the one last ingested
// and republishes when they differ.
type syncer struct {
	source   catalog.Source
	provider *catalog.Provider
	ingestor *catalog.Ingestor
	indexer  *opensearch.Indexer
	logger   logging.Logger
}

func (s *syncer) runPass(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()
	if err := s.syncOnce(passCtx); err != nil && ctx.Err() == nil {
		s.logger.Error("catalog sync pass failed", logging.Err(err))
	}
}

func (s *syncer) syncOnce(ctx context.Context) error {
	latest, err := s.source.LatestVersion(ctx)
	if err != nil {
		return err
	}

	current := ""
	if snap, err := s.provider.Pin(); err == nil {
		current = snap.Version()
	} else if !errors.IsCode(err, errors.ErrCodeVersionNotFound) {
		return err
	}
	if latest == current {
		s.logger.Debug("catalog up to date", logging.String("version", current))
		return nil
	}

	snap, err := s.ingestor.Ingest(ctx, latest)
	if err != nil {
		return err
	}
	if s.indexer != nil {
		if err := s.indexer.IndexSnapshot(ctx, snap); err != nil {
			return err
		}
	}
	s.logger.Info("catalog synced",
		logging.String("version", snap.Version()),
		logging.String("previous_version", current),
		logging.Int("entries", snap.Len()),
	)
	return nil
}

func buildSource(ctx context.Context, cfg *config.Config, logger logging.Logger) (catalog.Source, func(), error) {
	switch {
	case cfg.Database.Host != "":
		conn, err := postgres.Connect(ctx, postgres.Config{
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
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		repo, err := repositories.NewCatalogRepo(conn.Pool(), logger)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("catalog repository: %w", err)
		}
		return repo, conn.Close, nil
	case cfg.MinIO.Endpoint != "":
		src, err := minio.NewSource(&minio.Config{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKey,
			SecretAccessKey: cfg.MinIO.SecretKey,
			Bucket:          cfg.MinIO.Bucket,
			UseSSL:          cfg.MinIO.UseSSL,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("minio source: %w", err)
		}
		return src, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("no catalog source configured: set database.host or minio.endpoint")
	}
}

func startHealthServer(addr string, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("health server listening", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", logging.Err(err))
		}
	}()
	return srv
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

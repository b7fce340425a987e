// Package milvus adapts the Milvus vector index to the classification
// engine's vector-search contract.  The catalog ingestion job writes one
// embedding per catalog entry; this package only reads.
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/aduanet/hs-classify/internal/classify"
	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// newClient is swapped out by tests.
var newClient = client.NewClient

// Config holds the connection and search settings for the catalog embedding
// collection.
type Config struct {
	Address        string
	Username       string
	Password       string
	Collection     string
	VectorField    string
	NProbe         int
	ConnectTimeout time.Duration
	SearchTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.Collection == "" {
		c.Collection = "hs_catalog_embeddings"
	}
	if c.VectorField == "" {
		c.VectorField = "embedding"
	}
	if c.NProbe == 0 {
		c.NProbe = 16
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.SearchTimeout == 0 {
		c.SearchTimeout = 5 * time.Second
	}
}

// Searcher implements classify.VectorSearcher against one Milvus collection.
// The collection schema is (id int64 primary key = embedding id,
// level varchar, embedding float vector) with a COSINE metric index.
type Searcher struct {
	mc     client.Client
	cfg    Config
	logger logging.Logger
}

// Connect dials Milvus and returns a ready Searcher.
func Connect(ctx context.Context, cfg Config, logger logging.Logger) (*Searcher, error) {
	if cfg.Address == "" {
		return nil, errors.New(errors.ErrCodeValidation, "milvus address is required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	mc, err := newClient(dialCtx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "connecting to milvus at "+cfg.Address)
	}

	return &Searcher{mc: mc, cfg: cfg, logger: logger.Named("milvus.searcher")}, nil
}

// Nearest returns the k nearest catalog embeddings at the given level,
// cosine similarity descending.
func (s *Searcher) Nearest(ctx context.Context, vector []float32, k int, level catalog.Level) ([]classify.VectorHit, error) {
	if len(vector) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "query vector is empty")
	}
	if k <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "k must be positive")
	}

	sctx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	defer cancel()

	sp, err := entity.NewIndexIvfFlatSearchParam(s.cfg.NProbe)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "building milvus search params")
	}

	expr := fmt.Sprintf("level == %q", level)
	start := time.Now()
	results, err := s.mc.Search(
		sctx,
		s.cfg.Collection,
		nil,
		expr,
		[]string{"id"},
		[]entity.Vector{entity.FloatVector(vector)},
		s.cfg.VectorField,
		entity.COSINE,
		k,
		sp,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "milvus search failed")
	}

	var hits []classify.VectorHit
	for _, res := range results {
		ids, ok := res.IDs.(*entity.ColumnInt64)
		if !ok {
			return nil, errors.New(errors.ErrCodeInternal, "unexpected milvus id column type")
		}
		for i, id := range ids.Data() {
			if i >= len(res.Scores) {
				break
			}
			hits = append(hits, classify.VectorHit{
				EmbeddingID: id,
				Similarity:  float64(res.Scores[i]),
			})
		}
	}

	s.logger.Debug("vector search executed",
		logging.String("collection", s.cfg.Collection),
		logging.String("level", level.String()),
		logging.Int("hits", len(hits)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return hits, nil
}

// Ping verifies the collection is reachable and loaded.
func (s *Searcher) Ping(ctx context.Context) error {
	ok, err := s.mc.HasCollection(ctx, s.cfg.Collection)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "milvus health check failed")
	}
	if !ok {
		return errors.Newf(errors.ErrCodeExternalService, "milvus collection %s does not exist", s.cfg.Collection)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Searcher) Close() error {
	return s.mc.Close()
}

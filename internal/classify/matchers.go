package classify

import (
	"context"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
)

// Matcher produces raw candidate hits for a normalized query against a
// pinned catalog snapshot.  Matchers run concurrently; implementations must
// be safe for concurrent use and must honor ctx cancellation.
type Matcher interface {
	// Name identifies the retrieval path for merging and diagnostics.
	Name() Method

	// Match returns raw hits in the matcher's native score scale.  An empty
	// result is a normal outcome, not an error.
	Match(ctx context.Context, snap *catalog.Snapshot, q *Query) ([]Hit, error)
}

// Embedder turns text into a dense vector.  Implemented by the embedding
// HTTP client; the semantic matcher calls it once per query.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorHit is one nearest-neighbor result from the vector index.
type VectorHit struct {
	// EmbeddingID references a catalog entry's precomputed embedding.
	EmbeddingID int64

	// Similarity is cosine similarity in [-1, 1].
	Similarity float64
}

// VectorSearcher returns the k nearest catalog embeddings at the given
// level.  Implemented by the vector-index adapter.
type VectorSearcher interface {
	Nearest(ctx context.Context, vector []float32, k int, level catalog.Level) ([]VectorHit, error)
}

// IndexSearcher is a full-text search backend over catalog descriptions,
// scoped by catalog version.  An in-process scorer is the default; the
// search-cluster adapter implements the same contract.
type IndexSearcher interface {
	SearchDescriptions(ctx context.Context, version string, tokens []string, k int) ([]Hit, error)
}

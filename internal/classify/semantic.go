package classify

import (
	"context"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// SemanticMatcher embeds the raw description and retrieves the nearest
// catalog embeddings at a fixed level.  Hits whose embedding identifiers the
// snapshot does not know are dropped rather than failing the call.
type SemanticMatcher struct {
	embedder Embedder
	searcher VectorSearcher
	level    catalog.Level
	topK     int
}

// NewSemanticMatcher wires a semantic matcher searching at the given level.
func NewSemanticMatcher(embedder Embedder, searcher VectorSearcher, level catalog.Level, topK int) (*SemanticMatcher, error) {
	if embedder == nil {
		return nil, errors.New(errors.ErrCodeInternal, "embedder is required")
	}
	if searcher == nil {
		return nil, errors.New(errors.ErrCodeInternal, "vector searcher is required")
	}
	if !level.IsValid() {
		return nil, errors.Newf(errors.ErrCodeInternal, "invalid semantic search level: %s", level)
	}
	if topK <= 0 {
		return nil, errors.New(errors.ErrCodeInternal, "semantic top-k must be positive")
	}
	return &SemanticMatcher{embedder: embedder, searcher: searcher, level: level, topK: topK}, nil
}

func (m *SemanticMatcher) Name() Method { return MethodSemantic }

// Match embeds the raw text, not the token list, so the embedding model sees
// the original phrasing.  Raw scores are cosine similarities clamped to
// [0, 1]; negative similarity means "unrelated", not "negatively related".
func (m *SemanticMatcher) Match(ctx context.Context, snap *catalog.Snapshot, q *Query) ([]Hit, error) {
	vec, err := m.embedder.Embed(ctx, q.Raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "embedding query text")
	}

	neighbors, err := m.searcher.Nearest(ctx, vec, m.topK, m.level)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(neighbors))
	for _, nb := range neighbors {
		entry, ok := snap.LookupByEmbedding(nb.EmbeddingID)
		if !ok {
			continue
		}
		sim := nb.Similarity
		if sim < 0 {
			sim = 0
		}
		hits = append(hits, Hit{Code: entry.Code, RawScore: sim})
	}
	return hits, nil
}

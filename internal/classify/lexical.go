package classify

import (
	"context"
	"sort"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// LexicalMatcher scores the query tokens against every catalog description
// with a fuzzy scorer and keeps the top K hits.  It works entirely on the
// pinned snapshot, so it needs no external service.
type LexicalMatcher struct {
	scorer FuzzyScorer
	topK   int
}

// NewLexicalMatcher wires an in-process lexical matcher.
func NewLexicalMatcher(scorer FuzzyScorer, topK int) (*LexicalMatcher, error) {
	if scorer == nil {
		return nil, errors.New(errors.ErrCodeInternal, "fuzzy scorer is required")
	}
	if topK <= 0 {
		return nil, errors.New(errors.ErrCodeInternal, "lexical top-k must be positive")
	}
	return &LexicalMatcher{scorer: scorer, topK: topK}, nil
}

func (m *LexicalMatcher) Name() Method { return MethodLexical }

// Match scans all levels of the snapshot.  Zero-score entries are dropped.
func (m *LexicalMatcher) Match(ctx context.Context, snap *catalog.Snapshot, q *Query) ([]Hit, error) {
	entries := snap.All()
	hits := make([]Hit, 0, m.topK)
	for i := range entries {
		if i%512 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		score := m.scorer.Score(q.Tokens, entries[i].Description)
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{Code: entries[i].Code, RawScore: score})
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].RawScore != hits[b].RawScore {
			return hits[a].RawScore > hits[b].RawScore
		}
		return hits[a].Code < hits[b].Code
	})
	if len(hits) > m.topK {
		hits = hits[:m.topK]
	}
	return hits, nil
}

// IndexLexicalMatcher delegates lexical retrieval to a full-text search
// backend instead of scanning the snapshot in process.
type IndexLexicalMatcher struct {
	searcher IndexSearcher
	topK     int
}

// NewIndexLexicalMatcher wires a search-backed lexical matcher.
func NewIndexLexicalMatcher(searcher IndexSearcher, topK int) (*IndexLexicalMatcher, error) {
	if searcher == nil {
		return nil, errors.New(errors.ErrCodeInternal, "index searcher is required")
	}
	if topK <= 0 {
		return nil, errors.New(errors.ErrCodeInternal, "lexical top-k must be positive")
	}
	return &IndexLexicalMatcher{searcher: searcher, topK: topK}, nil
}

func (m *IndexLexicalMatcher) Name() Method { return MethodLexical }

// Match queries the backend and drops hits whose codes are unknown to the
// pinned snapshot, which can happen while index and catalog versions drift
// during re-ingestion.
func (m *IndexLexicalMatcher) Match(ctx context.Context, snap *catalog.Snapshot, q *Query) ([]Hit, error) {
	raw, err := m.searcher.SearchDescriptions(ctx, snap.Version(), q.Tokens, m.topK)
	if err != nil {
		return nil, err
	}
	hits := raw[:0]
	for _, h := range raw {
		if _, ok := snap.Lookup(h.Code); ok {
			hits = append(hits, h)
		}
	}
	return hits, nil
}

package classify

import (
	"context"
	"sort"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
)

// StructuredMatcher matches declared attributes against catalog attribute
// tags by exact predicate.  It contributes a fixed signal, not a gradient:
// every hit carries the same raw score, and the merger applies the
// structured weight as a flat bonus.
type StructuredMatcher struct{}

// NewStructuredMatcher wires the structured matcher.
func NewStructuredMatcher() *StructuredMatcher { return &StructuredMatcher{} }

func (m *StructuredMatcher) Name() Method { return MethodStructured }

// Match returns every entry carrying at least one predicate derived from the
// query's attributes.  With no usable attributes it returns no hits, which
// the merger treats as "no structured signal", not as a failure.
func (m *StructuredMatcher) Match(ctx context.Context, snap *catalog.Snapshot, q *Query) ([]Hit, error) {
	preds := buildPredicates(q)
	if len(preds) == 0 {
		return nil, nil
	}

	var hits []Hit
	for _, e := range snap.All() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for _, p := range preds {
			if e.HasTag(p) {
				hits = append(hits, Hit{Code: e.Code, RawScore: 1})
				break
			}
		}
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].Code < hits[b].Code })
	return hits, nil
}

// buildPredicates maps query attributes and recognized dictionary terms to
// the tag vocabulary used by catalog entries.
func buildPredicates(q *Query) []string {
	seen := map[string]struct{}{}
	var preds []string
	add := func(p string) {
		if _, dup := seen[p]; !dup {
			seen[p] = struct{}{}
			preds = append(preds, p)
		}
	}
	for _, mat := range q.Materials {
		add("material:" + mat)
	}
	for _, use := range q.Uses {
		add("use:" + use)
	}
	return preds
}

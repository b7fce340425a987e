package classify

import (
	"sort"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// Ranker assembles the final candidate list: the rule-selected winner first
// at full confidence, then the merged candidates in score order.
type Ranker struct {
	cap int
}

// NewRanker wires a ranker with a positive cap on the ranked list.
func NewRanker(cap int) (*Ranker, error) {
	if cap <= 0 {
		return nil, errors.New(errors.ErrCodeInternal, "ranked list cap must be positive")
	}
	return &Ranker{cap: cap}, nil
}

// Rank returns the winner followed by the remaining merged candidates
// ordered by score descending, contributing-method count descending, then
// code ascending.  A merged candidate for the winning code is absorbed into
// the winner and keeps its contributing methods.
func (r *Ranker) Rank(snap *catalog.Snapshot, sel *Selection, merged []*Candidate) []*Candidate {
	winner := &Candidate{
		Code:      sel.Code,
		Score:     100,
		Method:    MethodRule,
		Methods:   []Method{MethodRule},
		RuleTrace: sel.Trace,
	}
	if e, ok := snap.Lookup(sel.Code); ok {
		winner.Description = e.Description
	}

	rest := make([]*Candidate, 0, len(merged))
	for _, c := range merged {
		if c.Code == sel.Code {
			winner.Methods = append(winner.Methods, c.Methods...)
			continue
		}
		rest = append(rest, c)
	}

	sort.SliceStable(rest, func(a, b int) bool {
		if rest[a].Score != rest[b].Score {
			return rest[a].Score > rest[b].Score
		}
		if len(rest[a].Methods) != len(rest[b].Methods) {
			return len(rest[a].Methods) > len(rest[b].Methods)
		}
		return rest[a].Code < rest[b].Code
	})

	ranked := append([]*Candidate{winner}, rest...)
	if len(ranked) > r.cap {
		ranked = ranked[:r.cap]
	}
	return ranked
}

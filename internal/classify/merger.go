package classify

import (
	"sort"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// Weights holds the per-method combination weights.  They must sum to 1.
type Weights struct {
	Semantic   float64
	Lexical    float64
	Structured float64
}

// weightFor returns the weight of a retrieval method.
func (w Weights) weightFor(m Method) float64 {
	switch m {
	case MethodSemantic:
		return w.Semantic
	case MethodLexical:
		return w.Lexical
	case MethodStructured:
		return w.Structured
	default:
		return 0
	}
}

// Validate checks the weights sum to 1 within float tolerance.
func (w Weights) Validate() error {
	sum := w.Semantic + w.Lexical + w.Structured
	if sum < 1-compositionTolerance || sum > 1+compositionTolerance {
		return errors.Validation("method weights must sum to 1.0")
	}
	if w.Semantic < 0 || w.Lexical < 0 || w.Structured < 0 {
		return errors.Validation("method weights must not be negative")
	}
	return nil
}

// mergeOrder fixes the method iteration order so merging is deterministic
// regardless of map iteration.
var mergeOrder = []Method{MethodSemantic, MethodLexical, MethodStructured}

// Merger unions per-method hits into a single scored candidate list.
type Merger struct {
	weights Weights
	cap     int
}

// NewMerger wires a merger with validated weights and a positive cap on the
// merged list size.
func NewMerger(weights Weights, cap int) (*Merger, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if cap <= 0 {
		return nil, errors.New(errors.ErrCodeInternal, "merged candidate cap must be positive")
	}
	return &Merger{weights: weights, cap: cap}, nil
}

// Merge normalizes each method's raw scores to [0, 100] by min-max within
// the method, unions hits by code, and combines via the weighted sum.  The
// structured method is a flat signal: its hits always contribute the full
// structured weight.  Output is sorted score descending, code ascending, and
// capped.
func (m *Merger) Merge(snap *catalog.Snapshot, hits map[Method][]Hit) []*Candidate {
	type accum struct {
		score      float64
		bestMethod Method
		bestPart   float64
		methods    []Method
	}
	byCode := map[string]*accum{}
	var order []string

	for _, method := range mergeOrder {
		methodHits := dedupeBest(hits[method])
		if len(methodHits) == 0 {
			continue
		}
		normalized := normalize(methodHits, method == MethodStructured)
		weight := m.weights.weightFor(method)
		for i, h := range methodHits {
			part := weight * normalized[i]
			acc, ok := byCode[h.Code]
			if !ok {
				acc = &accum{}
				byCode[h.Code] = acc
				order = append(order, h.Code)
			}
			acc.score += part
			acc.methods = append(acc.methods, method)
			if part > acc.bestPart {
				acc.bestPart = part
				acc.bestMethod = method
			}
		}
	}

	out := make([]*Candidate, 0, len(order))
	for _, code := range order {
		acc := byCode[code]
		score := acc.score
		if score > 100 {
			score = 100
		}
		desc := ""
		if e, ok := snap.Lookup(code); ok {
			desc = e.Description
		}
		out = append(out, &Candidate{
			Code:        code,
			Description: desc,
			Score:       score,
			Method:      acc.bestMethod,
			Methods:     acc.methods,
		})
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Code < out[b].Code
	})
	if len(out) > m.cap {
		out = out[:m.cap]
	}
	return out
}

// dedupeBest keeps the best raw score per code within one method.
func dedupeBest(hits []Hit) []Hit {
	if len(hits) == 0 {
		return nil
	}
	best := map[string]float64{}
	var order []string
	for _, h := range hits {
		if prev, ok := best[h.Code]; !ok {
			best[h.Code] = h.RawScore
			order = append(order, h.Code)
		} else if h.RawScore > prev {
			best[h.Code] = h.RawScore
		}
	}
	out := make([]Hit, len(order))
	for i, code := range order {
		out[i] = Hit{Code: code, RawScore: best[code]}
	}
	return out
}

// normalize min-max scales one method's raw scores to [0, 100].  A flat
// method, or a method where all raw scores coincide, maps every hit to 100.
func normalize(hits []Hit, flat bool) []float64 {
	out := make([]float64, len(hits))
	if flat {
		for i := range out {
			out[i] = 100
		}
		return out
	}
	min, max := hits[0].RawScore, hits[0].RawScore
	for _, h := range hits[1:] {
		if h.RawScore < min {
			min = h.RawScore
		}
		if h.RawScore > max {
			max = h.RawScore
		}
	}
	if max == min {
		for i := range out {
			out[i] = 100
		}
		return out
	}
	for i, h := range hits {
		out[i] = (h.RawScore - min) / (max - min) * 100
	}
	return out
}

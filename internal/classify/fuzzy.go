package classify

// FuzzyScorer scores the similarity between a tokenized query and a catalog
// description in [0, 1].
type FuzzyScorer interface {
	Score(queryTokens []string, description string) float64
}

// TokenSetScorer is the built-in fuzzy scorer.  It blends exact token-set
// overlap with per-token edit-distance similarity, so near-miss spellings
// ("aluminium" vs "aluminum") still contribute.
type TokenSetScorer struct {
	normalizer *Normalizer
}

// NewTokenSetScorer returns a scorer sharing the normalizer's tokenization.
func NewTokenSetScorer(n *Normalizer) *TokenSetScorer {
	if n == nil {
		n = NewNormalizer()
	}
	return &TokenSetScorer{normalizer: n}
}

// Score returns 0 when either side is empty.  Otherwise it averages Jaccard
// overlap with the mean best-pair token similarity, weighting exact overlap
// higher.
func (s *TokenSetScorer) Score(queryTokens []string, description string) float64 {
	docTokens := s.normalizer.Tokenize(description)
	if len(queryTokens) == 0 || len(docTokens) == 0 {
		return 0
	}

	docSet := make(map[string]struct{}, len(docTokens))
	for _, t := range docTokens {
		docSet[t] = struct{}{}
	}

	inter := 0
	fuzzySum := 0.0
	for _, qt := range queryTokens {
		if _, ok := docSet[qt]; ok {
			inter++
			fuzzySum += 1.0
			continue
		}
		best := 0.0
		for _, dt := range docTokens {
			if sim := tokenSimilarity(qt, dt); sim > best {
				best = sim
			}
		}
		// Below this a pairing is coincidence, not a near miss.
		if best >= 0.75 {
			fuzzySum += best
		}
	}

	union := len(queryTokens) + len(docTokens) - inter
	jaccard := float64(inter) / float64(union)
	coverage := fuzzySum / float64(len(queryTokens))

	return 0.6*coverage + 0.4*jaccard
}

// tokenSimilarity is normalized Levenshtein similarity in [0, 1].
func tokenSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	dist := levenshtein(a, b)
	max := la
	if lb > max {
		max = lb
	}
	return 1 - float64(dist)/float64(max)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[i] = minInt(curr[i-1]+1, prev[i]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// JaccardSimilarity is plain set overlap between two token slices, used by
// the rule engine's specificity comparison.
func JaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	inter := 0
	for _, t := range b {
		if _, dup := setB[t]; dup {
			continue
		}
		setB[t] = struct{}{}
		if _, ok := setA[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// containsAllTokens reports whether every needle is present in the haystack
// token set.
func containsAllTokens(haystack map[string]struct{}, needles []string) bool {
	for _, t := range needles {
		if _, ok := haystack[t]; !ok {
			return false
		}
	}
	return true
}

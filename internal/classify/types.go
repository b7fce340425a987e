// Package classify implements the hybrid classification pipeline: query
// normalization, concurrent candidate matching, score merging, rule-based
// selection, and final ranking.  The package owns the pipeline semantics and
// depends on infrastructure only through the small interfaces declared in
// matchers.go.
package classify

import (
	"time"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
)

// Method identifies the retrieval or selection path that produced a
// candidate score.
type Method string

const (
	MethodLexical    Method = "lexical"
	MethodSemantic   Method = "semantic"
	MethodStructured Method = "structured"
	MethodRule       Method = "rule"
)

// Attributes carries the optional structured description of the goods.
// A nil or zero Attributes means the caller supplied free text only.
type Attributes struct {
	// Material is the declared principal material, e.g. "cotton".
	Material string `json:"material,omitempty"`

	// Use is the declared function or use, e.g. "medical".
	Use string `json:"use,omitempty"`

	// Composition maps component material to its fraction of the whole.
	// Fractions must sum to at most 1.0.
	Composition map[string]float64 `json:"composition,omitempty"`

	// Completeness declares the article incomplete or unassembled but
	// already exhibiting the character of the finished article.
	Completeness string `json:"completeness,omitempty"`

	// PackagingSoldSeparately marks packaging presented on its own rather
	// than with the goods it normally accompanies.
	PackagingSoldSeparately bool `json:"packaging_sold_separately,omitempty"`
}

// IsZero reports whether no structured attribute was supplied.
func (a *Attributes) IsZero() bool {
	if a == nil {
		return true
	}
	return a.Material == "" && a.Use == "" && len(a.Composition) == 0 &&
		a.Completeness == "" && !a.PackagingSoldSeparately
}

// MajorityComponent returns the composition component with the largest
// fraction.  The second return is false when no composition was supplied or
// no component holds a strict maximum.
func (a *Attributes) MajorityComponent() (string, float64, bool) {
	if a == nil || len(a.Composition) == 0 {
		return "", 0, false
	}
	best, bestFrac, unique := "", -1.0, true
	for comp, frac := range a.Composition {
		switch {
		case frac > bestFrac:
			best, bestFrac, unique = comp, frac, true
		case frac == bestFrac:
			unique = false
		}
	}
	if !unique {
		return "", 0, false
	}
	return best, bestFrac, true
}

// Query is the normalized form of a classification request.  Produced by
// Normalizer; matchers read it but never mutate it.
type Query struct {
	// Raw is the description as submitted.
	Raw string

	// Tokens is the ordered, deduplicated token list after folding,
	// stopword removal, and lemmatization.
	Tokens []string

	// Materials lists material terms recognized in the text or declared in
	// the attributes, lemmatized.
	Materials []string

	// Uses lists function terms recognized in the text or declared in the
	// attributes, lemmatized.
	Uses []string

	// Attrs is the structured attribute set, nil when none was supplied.
	Attrs *Attributes
}

// TokenSet returns the query tokens as a membership set.
func (q *Query) TokenSet() map[string]struct{} {
	set := make(map[string]struct{}, len(q.Tokens))
	for _, t := range q.Tokens {
		set[t] = struct{}{}
	}
	return set
}

// Hit is one raw matcher result before merging.  RawScore is in the
// matcher's native scale; the merger normalizes per method.
type Hit struct {
	Code     string
	RawScore float64
}

// RuleApplication records one committed rule decision for the explanation
// trail.
type RuleApplication struct {
	Rule   string        `json:"rule"`
	Level  catalog.Level `json:"level"`
	Code   string        `json:"code"`
	Detail string        `json:"detail"`
}

// Candidate is one merged, scored classification candidate.
type Candidate struct {
	// Code is the catalog code, at any level during merging; the ranked
	// output carries the most granular committed code first.
	Code string `json:"code"`

	// Description is the catalog text for the code.
	Description string `json:"description"`

	// Score is the combined confidence in [0, 100].
	Score float64 `json:"score"`

	// Method is the highest-contributing retrieval method, or "rule" for
	// the rule-selected winner.
	Method Method `json:"method"`

	// Methods lists every method that contributed to the candidate.
	Methods []Method `json:"methods"`

	// RuleTrace is present only on the rule-selected winner.
	RuleTrace []RuleApplication `json:"rule_trace,omitempty"`
}

// Stats summarizes one classification call.
type Stats struct {
	CatalogVersion  string        `json:"catalog_version"`
	CandidateCount  int           `json:"candidate_count"`
	Elapsed         time.Duration `json:"elapsed"`
	Degraded        bool          `json:"degraded"`
	DegradedReasons []string      `json:"degraded_reasons,omitempty"`
}

// Result is the full outcome of one classification call.
type Result struct {
	// Best is the rule-selected candidate, always first in Ranked.
	Best *Candidate `json:"best"`

	// Ranked holds the winner followed by the remaining candidates in
	// confidence order, capped by the engine's ranked-list limit.
	Ranked []*Candidate `json:"ranked"`

	Stats Stats `json:"stats"`
}

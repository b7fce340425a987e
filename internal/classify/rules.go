package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// Rule identifiers as recorded in the explanation trail.
const (
	ruleLiteral      = "RGI1"  // heading text plus notes covers the goods
	ruleIncomplete   = "RGI2a" // incomplete article treated as complete
	ruleMixture      = "RGI2b" // material reference covers predominant mixtures
	ruleSpecificity  = "RGI3a" // most specific description wins
	ruleEssential    = "RGI3b" // essential character by composition
	ruleLastResort   = "RGI3c" // last code among equal contenders
	ruleAkin         = "RGI4"  // most akin by combined score
	rulePackaging    = "RGI5"  // packaging follows the goods unless sold separately
	ruleSubdivisions = "RGI6"  // descend level by level re-applying the rules
)

// contenderBand is the score distance from the leader within which
// candidates count as equally applicable for the comparison rules.
const contenderBand = 10.0

// packagingTag marks catalog entries covering packaging articles.
const packagingTag = "packaging"

// completenessMarkers are dropped from the query before the literal check
// when the goods are declared incomplete or unassembled.
var completenessMarkers = map[string]struct{}{
	"incomplete": {}, "unassembled": {}, "disassembled": {},
	"kit": {}, "part": {}, "unfinished": {},
}

// Selection is the committed outcome of the rule engine.
type Selection struct {
	// Code is the most granular committed code.
	Code string

	// Trace lists every committed rule application in order.
	Trace []RuleApplication
}

// RuleEngine selects one code from the merged candidates by applying the
// interpretation rules in strict order at the heading level, then descending
// through finer subdivisions.  The first rule whose precondition holds
// commits the decision at that level; later rules are never consulted.
type RuleEngine struct {
	normalizer *Normalizer
	scorer     FuzzyScorer
}

// NewRuleEngine wires a rule engine.  The scorer ranks subdivisions that the
// retrieval stage produced no score for.
func NewRuleEngine(normalizer *Normalizer, scorer FuzzyScorer) (*RuleEngine, error) {
	if normalizer == nil {
		return nil, errors.New(errors.ErrCodeInternal, "normalizer is required")
	}
	if scorer == nil {
		return nil, errors.New(errors.ErrCodeInternal, "fuzzy scorer is required")
	}
	return &RuleEngine{normalizer: normalizer, scorer: scorer}, nil
}

// levelCand is one candidate under consideration at a single level.
type levelCand struct {
	entry  *catalog.Entry
	score  float64
	tokens map[string]struct{}
}

// Select runs the full rule cascade.  It returns NoCandidate when the
// candidate set is empty before the heading stage or becomes empty after the
// packaging prefilter.
func (re *RuleEngine) Select(snap *catalog.Snapshot, q *Query, merged []*Candidate) (*Selection, error) {
	sel := &Selection{}

	working, dropped := re.packagingPrefilter(snap, q, merged)
	if dropped > 0 {
		sel.Trace = append(sel.Trace, RuleApplication{
			Rule:   rulePackaging,
			Level:  catalog.LevelHeading,
			Detail: fmt.Sprintf("excluded %d packaging candidates not sold separately", dropped),
		})
	}

	headings := re.projectToHeadings(snap, q, working)
	if len(headings) == 0 {
		return nil, errors.NoCandidate("no catalog heading matches the description")
	}

	chosen, app := re.applyCascade(q, headings, catalog.LevelHeading, true)
	sel.Trace = append(sel.Trace, app)
	sel.Code = chosen.entry.Code

	// Scores the retrieval stage produced, for reuse during descent.
	mergedScore := make(map[string]float64, len(merged))
	for _, c := range merged {
		mergedScore[c.Code] = c.Score
	}

	for !snap.IsLeaf(sel.Code) {
		children := snap.Children(sel.Code)
		cands := make([]*levelCand, 0, len(children))
		for _, child := range children {
			score, ok := mergedScore[child.Code]
			if !ok {
				score = re.scorer.Score(q.Tokens, child.Description) * 100
			}
			cands = append(cands, re.newLevelCand(snap, child, score))
		}
		level := children[0].Level
		sel.Trace = append(sel.Trace, RuleApplication{
			Rule:   ruleSubdivisions,
			Level:  level,
			Code:   sel.Code,
			Detail: fmt.Sprintf("comparing %d subdivisions of %s", len(cands), sel.Code),
		})

		chosen, app = re.applyCascade(q, cands, level, false)
		sel.Trace = append(sel.Trace, app)
		sel.Code = chosen.entry.Code
	}

	return sel, nil
}

// packagingPrefilter drops candidates tagged as packaging unless the request
// declares the packaging sold separately.
func (re *RuleEngine) packagingPrefilter(snap *catalog.Snapshot, q *Query, merged []*Candidate) ([]*Candidate, int) {
	if q.Attrs != nil && q.Attrs.PackagingSoldSeparately {
		return merged, 0
	}
	kept := make([]*Candidate, 0, len(merged))
	dropped := 0
	for _, c := range merged {
		if entry, ok := snap.Lookup(c.Code); ok && entry.HasTag(packagingTag) {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}

// projectToHeadings lifts every merged candidate to its heading ancestor,
// keeping the best score per heading.  Chapter-level candidates broaden into
// their child headings, scored on the fly.
func (re *RuleEngine) projectToHeadings(snap *catalog.Snapshot, q *Query, merged []*Candidate) []*levelCand {
	best := map[string]float64{}
	var order []string
	record := func(code string, score float64) {
		if prev, ok := best[code]; !ok {
			best[code] = score
			order = append(order, code)
		} else if score > prev {
			best[code] = score
		}
	}

	for _, c := range merged {
		entry, ok := snap.Lookup(c.Code)
		if !ok {
			continue
		}
		if entry.Level == catalog.LevelChapter {
			for _, h := range snap.Children(entry.Code) {
				record(h.Code, re.scorer.Score(q.Tokens, h.Description)*100)
			}
			continue
		}
		heading, ok := snap.Ancestor(c.Code, catalog.LevelHeading)
		if !ok {
			continue
		}
		record(heading.Code, c.Score)
	}

	sort.Strings(order)
	out := make([]*levelCand, 0, len(order))
	for _, code := range order {
		entry, _ := snap.Lookup(code)
		out = append(out, re.newLevelCand(snap, entry, best[code]))
	}
	return out
}

// newLevelCand bundles an entry with its combined score and the token set of
// its description plus directly attached notes.  Ancestor notes are left out:
// they are shared by every sibling and cannot distinguish between them.
func (re *RuleEngine) newLevelCand(snap *catalog.Snapshot, entry *catalog.Entry, score float64) *levelCand {
	text := entry.Description
	for _, note := range snap.NotesFor(entry.Code) {
		text += " " + note.Text
	}
	tokens := map[string]struct{}{}
	for _, t := range re.normalizer.Tokenize(text) {
		tokens[t] = struct{}{}
	}
	return &levelCand{entry: entry, score: score, tokens: tokens}
}

// applyCascade runs the rules in strict order over one level's candidates
// and returns the committed candidate with its trace entry.  cands must be
// non-empty.  The incomplete-article and mixture rules apply only at the
// heading stage.
func (re *RuleEngine) applyCascade(q *Query, cands []*levelCand, level catalog.Level, headingStage bool) (*levelCand, RuleApplication) {
	mk := func(rule string, c *levelCand, detail string) (*levelCand, RuleApplication) {
		return c, RuleApplication{Rule: rule, Level: level, Code: c.entry.Code, Detail: detail}
	}

	// narrowed is set once an earlier rule established which candidates are
	// actually applicable, as opposed to merely statistically retrieved.
	narrowed := false

	// Literal coverage: the candidate's text plus notes contains every
	// query term.  A unique literal match commits; several literal matches
	// narrow the contest and fall through to the comparison rules.
	literal := filterCands(cands, func(c *levelCand) bool {
		return containsAllTokens(c.tokens, q.Tokens)
	})
	if len(literal) == 1 {
		return mk(ruleLiteral, literal[0], "text and notes cover every query term")
	}
	if len(literal) > 1 {
		cands, narrowed = literal, true
	}

	if headingStage && q.Attrs != nil && q.Attrs.Completeness != "" {
		reduced := withoutMarkers(q.Tokens)
		complete := filterCands(cands, func(c *levelCand) bool {
			return containsAllTokens(c.tokens, reduced)
		})
		if len(reduced) > 0 && len(complete) == 1 {
			return mk(ruleIncomplete, complete[0],
				fmt.Sprintf("%s article treated as the complete article", q.Attrs.Completeness))
		}
		if len(complete) > 1 {
			cands, narrowed = complete, true
		}
	}

	// A heading scoped to a material also covers goods predominantly of
	// that material.  When exactly one candidate references any declared
	// component, the majority material resolves the heading outright;
	// headings for several components stay in contention for rule 3.
	if headingStage && q.Attrs != nil && len(q.Attrs.Composition) > 0 {
		mixture := filterCands(cands, func(c *levelCand) bool {
			for comp := range q.Attrs.Composition {
				if c.mentionsMaterial(Lemmatize(strings.ToLower(comp))) {
					return true
				}
			}
			return false
		})
		if comp, frac, ok := q.Attrs.MajorityComponent(); ok && frac > 0.5 && len(mixture) == 1 &&
			mixture[0].mentionsMaterial(Lemmatize(strings.ToLower(comp))) {
			return mk(ruleMixture, mixture[0],
				fmt.Sprintf("predominant material %s (%.0f%%) treated as the whole", comp, frac*100))
		}
		if len(mixture) > 1 {
			cands, narrowed = mixture, true
		}
	}

	// The comparison rules need an actual contest.  A narrowing rule makes
	// its survivors applicable outright; otherwise only candidates within
	// the contender band of the leading score qualify.
	contenders := cands
	if !narrowed {
		contenders = contendersOf(cands)
	}
	if len(contenders) >= 2 {
		if winner, ok := mostSpecific(contenders, q); ok {
			return mk(ruleSpecificity, winner, "most specific description among equal contenders")
		}
		if q.Attrs != nil {
			if comp, _, ok := q.Attrs.MajorityComponent(); ok {
				lemma := Lemmatize(strings.ToLower(comp))
				matching := filterCands(contenders, func(c *levelCand) bool {
					return c.mentionsMaterial(lemma)
				})
				if len(matching) == 1 {
					return mk(ruleEssential, matching[0],
						"essential character given by component "+comp)
				}
				if len(matching) > 1 {
					contenders = matching
				}
			}
		}
		last := contenders[0]
		for _, c := range contenders[1:] {
			if c.entry.Code > last.entry.Code {
				last = c
			}
		}
		return mk(ruleLastResort, last, "last code among equal contenders")
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.score > best.score || (c.score == best.score && c.entry.Code < best.entry.Code) {
			best = c
		}
	}
	return mk(ruleAkin, best, "most akin by combined retrieval score")
}

// mentionsMaterial reports whether the candidate's text tokens or attribute
// tags reference the material lemma.
func (c *levelCand) mentionsMaterial(lemma string) bool {
	if _, ok := c.tokens[lemma]; ok {
		return true
	}
	return c.entry.HasTag("material:" + lemma)
}

func filterCands(cands []*levelCand, keep func(*levelCand) bool) []*levelCand {
	var out []*levelCand
	for _, c := range cands {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// contendersOf returns the candidates within the contender band of the top
// score.
func contendersOf(cands []*levelCand) []*levelCand {
	top := cands[0].score
	for _, c := range cands[1:] {
		if c.score > top {
			top = c.score
		}
	}
	return filterCands(cands, func(c *levelCand) bool {
		return c.score >= top-contenderBand
	})
}

// mostSpecific returns the candidate whose text overlaps the query most, and
// false when the maximum is shared.
func mostSpecific(cands []*levelCand, q *Query) (*levelCand, bool) {
	var winner *levelCand
	bestSim, unique := -1.0, true
	for _, c := range cands {
		tokens := make([]string, 0, len(c.tokens))
		for t := range c.tokens {
			tokens = append(tokens, t)
		}
		sim := JaccardSimilarity(q.Tokens, tokens)
		switch {
		case sim > bestSim:
			winner, bestSim, unique = c, sim, true
		case sim == bestSim:
			unique = false
		}
	}
	if !unique || bestSim <= 0 {
		return nil, false
	}
	return winner, true
}

// withoutMarkers strips completeness vocabulary from the query tokens.
func withoutMarkers(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if _, marker := completenessMarkers[t]; !marker {
			out = append(out, t)
		}
	}
	return out
}

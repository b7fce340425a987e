package classify

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/aduanet/hs-classify/pkg/errors"
)

// compositionTolerance absorbs float accumulation error when checking that
// declared fractions do not exceed the whole.
const compositionTolerance = 1e-9

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}\s-]+`)

// defaultStopwords are dropped during tokenization.  The list covers the
// filler found in trade descriptions, not general prose.
var defaultStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "in": {}, "on": {}, "for": {},
	"with": {}, "and": {}, "or": {}, "to": {}, "by": {}, "from": {},
	"other": {}, "others": {}, "whether": {}, "not": {}, "than": {},
	"made": {}, "type": {}, "kind": {}, "item": {}, "items": {},
	"product": {}, "products": {}, "article": {}, "articles": {},
}

// defaultMaterials is the recognition dictionary for material terms, keyed
// by lemma.
var defaultMaterials = map[string]struct{}{
	"cotton": {}, "wool": {}, "silk": {}, "linen": {}, "jute": {},
	"polyester": {}, "nylon": {}, "acrylic": {}, "viscose": {},
	"leather": {}, "rubber": {}, "plastic": {}, "wood": {}, "bamboo": {},
	"paper": {}, "cardboard": {}, "glass": {}, "ceramic": {}, "porcelain": {},
	"steel": {}, "iron": {}, "aluminium": {}, "aluminum": {}, "copper": {},
	"brass": {}, "zinc": {}, "nickel": {}, "titanium": {}, "gold": {},
	"silver": {}, "chicken": {}, "pork": {}, "beef": {}, "fish": {},
}

// defaultUses is the recognition dictionary for function terms, keyed by
// lemma.
var defaultUses = map[string]struct{}{
	"medical": {}, "surgical": {}, "dental": {}, "veterinary": {},
	"industrial": {}, "agricultural": {}, "domestic": {}, "household": {},
	"electrical": {}, "electronic": {}, "mechanical": {}, "optical": {},
	"laboratory": {}, "kitchen": {}, "sport": {}, "decorative": {},
	"packaging": {}, "construction": {}, "automotive": {}, "textile": {},
}

// Normalizer turns raw descriptions and attributes into deterministic
// queries.  The zero value is not usable; construct with NewNormalizer.
type Normalizer struct {
	stopwords map[string]struct{}
	materials map[string]struct{}
	uses      map[string]struct{}
}

// NewNormalizer returns a Normalizer with the built-in dictionaries.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		stopwords: defaultStopwords,
		materials: defaultMaterials,
		uses:      defaultUses,
	}
}

// Normalize validates and normalizes one classification request.  The same
// input always yields the same Query.
func (n *Normalizer) Normalize(raw string, attrs *Attributes) (*Query, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.Validation("description must not be empty")
	}
	if err := validateAttributes(attrs); err != nil {
		return nil, err
	}

	tokens := n.Tokenize(raw)
	if len(tokens) == 0 {
		return nil, errors.Validation("description contains no classifiable terms")
	}

	q := &Query{Raw: raw, Tokens: tokens, Attrs: attrs}

	seenMat := map[string]struct{}{}
	seenUse := map[string]struct{}{}
	addMat := func(term string) {
		lemma := Lemmatize(strings.ToLower(term))
		if _, dup := seenMat[lemma]; lemma != "" && !dup {
			seenMat[lemma] = struct{}{}
			q.Materials = append(q.Materials, lemma)
		}
	}
	addUse := func(term string) {
		lemma := Lemmatize(strings.ToLower(term))
		if _, dup := seenUse[lemma]; lemma != "" && !dup {
			seenUse[lemma] = struct{}{}
			q.Uses = append(q.Uses, lemma)
		}
	}

	for _, t := range tokens {
		if _, ok := n.materials[t]; ok {
			addMat(t)
		}
		if _, ok := n.uses[t]; ok {
			addUse(t)
		}
	}
	if attrs != nil {
		if attrs.Material != "" {
			addMat(attrs.Material)
		}
		if attrs.Use != "" {
			addUse(attrs.Use)
		}
		comps := make([]string, 0, len(attrs.Composition))
		for comp := range attrs.Composition {
			comps = append(comps, comp)
		}
		sort.Strings(comps)
		for _, comp := range comps {
			addMat(comp)
		}
	}
	return q, nil
}

// Tokenize folds, strips, splits, filters, and lemmatizes the text.  Tokens
// keep first-occurrence order with duplicates removed.
func (n *Normalizer) Tokenize(text string) []string {
	folded := strings.ToLower(norm.NFKC.String(text))
	folded = nonWord.ReplaceAllString(folded, " ")

	var out []string
	seen := map[string]struct{}{}
	for _, tok := range strings.Fields(folded) {
		tok = strings.Trim(tok, "-")
		if tok == "" {
			continue
		}
		if _, stop := n.stopwords[tok]; stop {
			continue
		}
		tok = Lemmatize(tok)
		if tok == "" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// Lemmatize applies light English suffix reduction, enough to make plural
// and singular catalog terms meet.
func Lemmatize(tok string) string {
	switch {
	case len(tok) > 4 && strings.HasSuffix(tok, "ies"):
		return tok[:len(tok)-3] + "y"
	case len(tok) > 4 && (strings.HasSuffix(tok, "ches") || strings.HasSuffix(tok, "shes") ||
		strings.HasSuffix(tok, "xes") || strings.HasSuffix(tok, "zes") || strings.HasSuffix(tok, "sses")):
		return tok[:len(tok)-2]
	case len(tok) > 3 && strings.HasSuffix(tok, "s") &&
		!strings.HasSuffix(tok, "ss") && !strings.HasSuffix(tok, "us") && !strings.HasSuffix(tok, "is"):
		return tok[:len(tok)-1]
	default:
		return tok
	}
}

func validateAttributes(attrs *Attributes) error {
	if attrs == nil {
		return nil
	}
	if len(attrs.Composition) > 0 {
		sum := 0.0
		for comp, frac := range attrs.Composition {
			if comp == "" {
				return errors.Validation("composition component must not be empty")
			}
			if frac < 0 {
				return errors.Validation("composition fraction must not be negative: " + comp)
			}
			sum += frac
		}
		if sum > 1.0+compositionTolerance {
			return errors.Validation("composition fractions must sum to at most 1.0")
		}
	}
	switch attrs.Completeness {
	case "", "incomplete", "unassembled":
	default:
		return errors.Validation("completeness must be \"incomplete\" or \"unassembled\"")
	}
	return nil
}

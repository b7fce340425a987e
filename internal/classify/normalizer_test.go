package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aduanet/hs-classify/pkg/errors"
)

func TestNormalizeTokenizes(t *testing.T) {
	n := NewNormalizer()

	q, err := n.Normalize("Frozen, Boneless CHICKEN breasts (skin-on)!", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"frozen", "boneless", "chicken", "breast", "skin-on"}, q.Tokens)
	assert.Equal(t, []string{"chicken"}, q.Materials)
	assert.Empty(t, q.Uses)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := NewNormalizer()
	attrs := &Attributes{Material: "cotton", Use: "Medical"}

	first, err := n.Normalize("woven cotton bandages for medical use", attrs)
	require.NoError(t, err)
	second, err := n.Normalize("woven cotton bandages for medical use", attrs)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalizeDropsStopwordsAndDuplicates(t *testing.T) {
	n := NewNormalizer()

	q, err := n.Normalize("the fabric of the fabrics and other fabric articles", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"fabric"}, q.Tokens)
}

func TestNormalizeExtractsAttributeHints(t *testing.T) {
	n := NewNormalizer()
	attrs := &Attributes{
		Material:    "Polyester",
		Use:         "industrial",
		Composition: map[string]float64{"cotton": 0.3, "polyester": 0.7},
	}

	q, err := n.Normalize("woven blended fabric", attrs)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"polyester", "cotton"}, q.Materials)
	assert.Equal(t, []string{"industrial"}, q.Uses)
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name  string
		text  string
		attrs *Attributes
	}{
		{name: "empty", text: ""},
		{name: "whitespace only", text: "   \t\n"},
		{name: "punctuation only", text: "!!! ??? ..."},
		{
			name:  "fractions exceed whole",
			text:  "blended fabric",
			attrs: &Attributes{Composition: map[string]float64{"a": 0.7, "b": 0.5}},
		},
		{
			name:  "negative fraction",
			text:  "blended fabric",
			attrs: &Attributes{Composition: map[string]float64{"cotton": -0.1}},
		},
		{
			name:  "empty component",
			text:  "blended fabric",
			attrs: &Attributes{Composition: map[string]float64{"": 0.5}},
		},
		{
			name:  "unknown completeness",
			text:  "bicycle",
			attrs: &Attributes{Completeness: "partial"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.text, tt.attrs)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err), "got %v", err)
		})
	}
}

func TestNormalizeAcceptsExactWhole(t *testing.T) {
	n := NewNormalizer()
	attrs := &Attributes{Composition: map[string]float64{"cotton": 0.6, "polyester": 0.4}}

	_, err := n.Normalize("blended fabric", attrs)
	assert.NoError(t, err)
}

func TestLemmatize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"fabrics", "fabric"},
		{"boxes", "box"},
		{"berries", "berry"},
		{"glasses", "glass"},
		{"brass", "brass"},
		{"apparatus", "apparatus"},
		{"this", "this"},
		{"wing", "wing"},
		{"cuts", "cut"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Lemmatize(tt.in), "Lemmatize(%q)", tt.in)
	}
}

func TestMajorityComponent(t *testing.T) {
	attrs := &Attributes{Composition: map[string]float64{"cotton": 0.6, "polyester": 0.4}}
	comp, frac, ok := attrs.MajorityComponent()
	require.True(t, ok)
	assert.Equal(t, "cotton", comp)
	assert.InDelta(t, 0.6, frac, 1e-12)

	tied := &Attributes{Composition: map[string]float64{"a": 0.5, "b": 0.5}}
	_, _, ok = tied.MajorityComponent()
	assert.False(t, ok)

	var none *Attributes
	_, _, ok = none.MajorityComponent()
	assert.False(t, ok)
	assert.True(t, none.IsZero())
}

package classify

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/pkg/errors"
)

type stubMatcher struct {
	name  Method
	hits  []Hit
	err   error
	delay time.Duration
}

func (s *stubMatcher) Name() Method { return s.name }

func (s *stubMatcher) Match(ctx context.Context, _ *catalog.Snapshot, _ *Query) ([]Hit, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.hits, s.err
}

func testProvider(t *testing.T) *catalog.Provider {
	t.Helper()
	p := catalog.NewProvider()
	p.Swap(testSnapshot(t))
	return p
}

func poultryMatchers() []Matcher {
	return []Matcher{
		&stubMatcher{name: MethodLexical, hits: []Hit{
			{Code: "02071410", RawScore: 0.9},
			{Code: "02071420", RawScore: 0.6},
			{Code: "0208", RawScore: 0.3},
		}},
		&stubMatcher{name: MethodSemantic, hits: []Hit{
			{Code: "0207", RawScore: 0.85},
			{Code: "0208", RawScore: 0.4},
		}},
		&stubMatcher{name: MethodStructured, hits: []Hit{
			{Code: "02071410", RawScore: 1},
			{Code: "02071420", RawScore: 1},
		}},
	}
}

func TestClassifyPoultryScenario(t *testing.T) {
	e, err := NewEngine(testProvider(t), poultryMatchers())
	require.NoError(t, err)

	res, err := e.Classify(context.Background(), "frozen boneless chicken breast", nil)
	require.NoError(t, err)

	assert.Equal(t, "02071410", res.Best.Code)
	assert.Equal(t, float64(100), res.Best.Score)
	assert.Equal(t, MethodRule, res.Best.Method)
	assert.Contains(t, res.Best.Methods, MethodLexical)
	require.NotEmpty(t, res.Best.RuleTrace)
	assert.Equal(t, "RGI1", res.Best.RuleTrace[0].Rule)

	assert.False(t, res.Stats.Degraded)
	assert.Empty(t, res.Stats.DegradedReasons)
	assert.Equal(t, "2026-01", res.Stats.CatalogVersion)
	assert.Positive(t, res.Stats.CandidateCount)

	require.Equal(t, res.Best, res.Ranked[0])
	for i := 1; i < len(res.Ranked); i++ {
		assert.GreaterOrEqual(t, res.Ranked[i-1].Score, res.Ranked[i].Score,
			"ranked list must be score-ordered")
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	e, err := NewEngine(testProvider(t), poultryMatchers())
	require.NoError(t, err)

	first, err := e.Classify(context.Background(), "frozen boneless chicken breast", nil)
	require.NoError(t, err)
	second, err := e.Classify(context.Background(), "frozen boneless chicken breast", nil)
	require.NoError(t, err)

	assert.Equal(t, first.Ranked, second.Ranked)
	assert.Equal(t, first.Best.RuleTrace, second.Best.RuleTrace)
	assert.Equal(t, first.Stats.CandidateCount, second.Stats.CandidateCount)
}

func TestClassifyDegradesOnMatcherFailure(t *testing.T) {
	matchers := []Matcher{
		&stubMatcher{name: MethodLexical, hits: []Hit{
			{Code: "02071410", RawScore: 0.9},
			{Code: "0208", RawScore: 0.3},
		}},
		&stubMatcher{name: MethodSemantic, err: stderrors.New("vector index unreachable")},
	}
	e, err := NewEngine(testProvider(t), matchers)
	require.NoError(t, err)

	res, err := e.Classify(context.Background(), "frozen boneless chicken breast", nil)
	require.NoError(t, err, "soft failure must not abort the call")

	assert.True(t, res.Stats.Degraded)
	require.Len(t, res.Stats.DegradedReasons, 1)
	assert.Contains(t, res.Stats.DegradedReasons[0], "semantic")
	assert.Equal(t, "02071410", res.Best.Code)
}

func TestClassifyDegradesOnMatcherTimeout(t *testing.T) {
	matchers := []Matcher{
		&stubMatcher{name: MethodLexical, hits: []Hit{{Code: "0207", RawScore: 0.9}}},
		&stubMatcher{name: MethodSemantic, delay: 500 * time.Millisecond},
	}
	e, err := NewEngine(testProvider(t), matchers, WithMatcherTimeout(20*time.Millisecond))
	require.NoError(t, err)

	res, err := e.Classify(context.Background(), "frozen edible poultry offal meat", nil)
	require.NoError(t, err)

	assert.True(t, res.Stats.Degraded)
	require.Len(t, res.Stats.DegradedReasons, 1)
	assert.Contains(t, res.Stats.DegradedReasons[0], "semantic")
}

func TestClassifyValidationFailsBeforeMatchers(t *testing.T) {
	invoked := false
	spy := &stubMatcher{name: MethodLexical}
	matchers := []Matcher{matcherFunc(func(ctx context.Context, snap *catalog.Snapshot, q *Query) ([]Hit, error) {
		invoked = true
		return spy.Match(ctx, snap, q)
	})}

	e, err := NewEngine(testProvider(t), matchers)
	require.NoError(t, err)

	_, err = e.Classify(context.Background(), "   ", nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.False(t, invoked, "matchers must not run on invalid input")
}

type matcherFunc func(ctx context.Context, snap *catalog.Snapshot, q *Query) ([]Hit, error)

func (matcherFunc) Name() Method { return MethodLexical }

func (f matcherFunc) Match(ctx context.Context, snap *catalog.Snapshot, q *Query) ([]Hit, error) {
	return f(ctx, snap, q)
}

func TestClassifyNoCandidate(t *testing.T) {
	matchers := []Matcher{&stubMatcher{name: MethodLexical}}
	e, err := NewEngine(testProvider(t), matchers)
	require.NoError(t, err)

	_, err = e.Classify(context.Background(), "frozen chicken", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoCandidate))
}

func TestClassifyWithoutCatalogFails(t *testing.T) {
	e, err := NewEngine(catalog.NewProvider(), poultryMatchers())
	require.NoError(t, err)

	_, err = e.Classify(context.Background(), "frozen chicken", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeVersionNotFound))
}

func TestExplainReturnsRuleTrail(t *testing.T) {
	e, err := NewEngine(testProvider(t), poultryMatchers())
	require.NoError(t, err)

	trail, err := e.Explain(context.Background(), "frozen boneless chicken breast", nil)
	require.NoError(t, err)
	require.NotEmpty(t, trail)
	assert.Equal(t, "RGI1", trail[0].Rule)
	assert.Equal(t, "02071410", trail[len(trail)-1].Code)
}

func TestNewEngineValidatesDependencies(t *testing.T) {
	_, err := NewEngine(nil, poultryMatchers())
	assert.Error(t, err)

	_, err = NewEngine(catalog.NewProvider(), nil)
	assert.Error(t, err)

	_, err = NewEngine(catalog.NewProvider(), []Matcher{nil})
	assert.Error(t, err)

	_, err = NewEngine(catalog.NewProvider(), poultryMatchers(), WithMatcherTimeout(-time.Second))
	assert.Error(t, err)

	_, err = NewEngine(catalog.NewProvider(), poultryMatchers(), WithWeights(Weights{Semantic: 2}))
	assert.Error(t, err)
}

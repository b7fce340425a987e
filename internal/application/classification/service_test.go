package classification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aduanet/hs-classify/internal/classify"
	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/internal/infrastructure/messaging/kafka"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

type fakeEngine struct {
	result *classify.Result
	err    error
	calls  int
}

func (f *fakeEngine) Classify(ctx context.Context, description string, attrs *classify.Attributes) (*classify.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeEngine) Explain(ctx context.Context, description string, attrs *classify.Attributes) ([]classify.RuleApplication, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result.Best.RuleTrace, nil
}

type fakeCache struct {
	entries map[string][]byte
	getErr  error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.entries[key]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "cache miss")
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = raw
	f.sets++
	return nil
}

type fakeAudit struct {
	events []*kafka.AuditEvent
}

func (f *fakeAudit) PublishAsync(ev *kafka.AuditEvent) {
	f.events = append(f.events, ev)
}

type countingStats struct {
	hits, misses int
}

func (c *countingStats) CacheHit()  { c.hits++ }
func (c *countingStats) CacheMiss() { c.misses++ }

func poultryResult(degraded bool) *classify.Result {
	best := &classify.Candidate{
		Code:        "02071410",
		Description: "Frozen boneless chicken cuts",
		Score:       100,
		Method:      classify.MethodRule,
		Methods:     []classify.Method{classify.MethodRule, classify.MethodLexical},
		RuleTrace: []classify.RuleApplication{
			{Rule: "RGI1", Level: catalog.LevelHeading, Code: "0207", Detail: "literal coverage"},
			{Rule: "RGI6", Level: catalog.LevelSubheading, Code: "020714"},
		},
	}
	return &classify.Result{
		Best: best,
		Ranked: []*classify.Candidate{
			best,
			{Code: "0208", Description: "Other meat, frozen", Score: 41.2, Methods: []classify.Method{classify.MethodSemantic}},
		},
		Stats: classify.Stats{
			CatalogVersion: "2026-01",
			CandidateCount: 2,
			Elapsed:        42 * time.Millisecond,
			Degraded:       degraded,
		},
	}
}

func staticVersion() string { return "2026-01" }

func TestClassifyReturnsDTO(t *testing.T) {
	engine := &fakeEngine{result: poultryResult(false)}
	svc, err := NewService(engine, nil, nil, nil, logging.NewNopLogger())
	require.NoError(t, err)

	out, err := svc.Classify(context.Background(), &ClassifyInput{Description: "frozen boneless chicken cuts"})
	require.NoError(t, err)

	assert.Equal(t, "02071410", out.Code)
	assert.Equal(t, float64(100), out.Confidence)
	assert.Equal(t, []string{"rule", "lexical"}, out.Methods)
	assert.Equal(t, "2026-01", out.CatalogVersion)
	assert.False(t, out.Cached)
	require.Len(t, out.Alternatives, 1)
	assert.Equal(t, "0208", out.Alternatives[0].Code)
	require.Len(t, out.RuleTrail, 2)
	assert.Equal(t, "RGI1", out.RuleTrail[0].Rule)
	assert.Equal(t, "heading", out.RuleTrail[0].Level)
}

func TestClassifyCachesResult(t *testing.T) {
	engine := &fakeEngine{result: poultryResult(false)}
	cache := newFakeCache()
	stats := &countingStats{}
	svc, err := NewService(engine, cache, nil, staticVersion, logging.NewNopLogger(), WithCacheStats(stats))
	require.NoError(t, err)

	input := &ClassifyInput{Description: "frozen boneless chicken cuts"}

	first, err := svc.Classify(context.Background(), input)
	require.NoError(t, err)
	second, err := svc.Classify(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 1, stats.misses)
	assert.Equal(t, 1, stats.hits)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Code, second.Code)
}

func TestClassifyCacheKeyVariesWithAttributes(t *testing.T) {
	base := &ClassifyInput{Description: "woven fabric"}
	withAttrs := &ClassifyInput{
		Description: "woven fabric",
		Attributes:  &AttributesInput{Composition: map[string]float64{"cotton": 0.6, "polyester": 0.4}},
	}

	assert.NotEqual(t, cacheKey("2026-01", base), cacheKey("2026-01", withAttrs))
	assert.NotEqual(t, cacheKey("2026-01", base), cacheKey("2026-02", base))
	assert.Equal(t, cacheKey("2026-01", withAttrs), cacheKey("2026-01", withAttrs))
}

func TestClassifySkipCache(t *testing.T) {
	engine := &fakeEngine{result: poultryResult(false)}
	cache := newFakeCache()
	svc, err := NewService(engine, cache, nil, staticVersion, logging.NewNopLogger())
	require.NoError(t, err)

	input := &ClassifyInput{Description: "frozen boneless chicken cuts", SkipCache: true}
	_, err = svc.Classify(context.Background(), input)
	require.NoError(t, err)
	_, err = svc.Classify(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 2, engine.calls)
	assert.Equal(t, 0, cache.sets)
}

func TestClassifyDegradedResultNotCached(t *testing.T) {
	engine := &fakeEngine{result: poultryResult(true)}
	cache := newFakeCache()
	svc, err := NewService(engine, cache, nil, staticVersion, logging.NewNopLogger())
	require.NoError(t, err)

	out, err := svc.Classify(context.Background(), &ClassifyInput{Description: "frozen boneless chicken cuts"})
	require.NoError(t, err)

	assert.True(t, out.Degraded)
	assert.Equal(t, 0, cache.sets)
}

func TestClassifyCacheFailureDoesNotFailRequest(t *testing.T) {
	engine := &fakeEngine{result: poultryResult(false)}
	cache := newFakeCache()
	cache.getErr = errors.Unavailable("redis down")
	svc, err := NewService(engine, cache, nil, staticVersion, logging.NewNopLogger())
	require.NoError(t, err)

	out, err := svc.Classify(context.Background(), &ClassifyInput{Description: "frozen boneless chicken cuts"})
	require.NoError(t, err)
	assert.Equal(t, "02071410", out.Code)
}

func TestClassifyPublishesAudit(t *testing.T) {
	engine := &fakeEngine{result: poultryResult(false)}
	audit := &fakeAudit{}
	svc, err := NewService(engine, nil, audit, nil, logging.NewNopLogger())
	require.NoError(t, err)

	_, err = svc.Classify(context.Background(), &ClassifyInput{Description: "frozen boneless chicken cuts"})
	require.NoError(t, err)

	require.Len(t, audit.events, 1)
	ev := audit.events[0]
	assert.Equal(t, "02071410", ev.Code)
	assert.Equal(t, "2026-01", ev.CatalogVersion)
	assert.Equal(t, []string{"RGI1@heading:0207", "RGI6@subheading:020714"}, ev.RuleTrail)
}

func TestClassifyEngineErrorPropagates(t *testing.T) {
	engine := &fakeEngine{err: errors.Validation("empty description")}
	svc, err := NewService(engine, nil, nil, nil, logging.NewNopLogger())
	require.NoError(t, err)

	_, err = svc.Classify(context.Background(), &ClassifyInput{Description: ""})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestExplain(t *testing.T) {
	engine := &fakeEngine{result: poultryResult(false)}
	svc, err := NewService(engine, nil, nil, nil, logging.NewNopLogger())
	require.NoError(t, err)

	exp, err := svc.Explain(context.Background(), &ClassifyInput{Description: "frozen boneless chicken cuts"})
	require.NoError(t, err)

	assert.Equal(t, "02071410", exp.Code)
	assert.Equal(t, "2026-01", exp.CatalogVersion)
	require.Len(t, exp.RuleTrail, 2)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, logging.NewNopLogger())
	require.Error(t, err)

	_, err = NewService(&fakeEngine{}, nil, nil, nil, nil)
	require.Error(t, err)

	_, err = NewService(&fakeEngine{}, newFakeCache(), nil, nil, logging.NewNopLogger())
	require.Error(t, err)
}

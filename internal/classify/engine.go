package classify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

const (
	defaultMatcherTimeout = 2 * time.Second
	defaultMergedCap      = 100
	defaultRankedCap      = 10
)

// DefaultWeights is the standard method weighting.
var DefaultWeights = Weights{Semantic: 0.5, Lexical: 0.3, Structured: 0.2}

// Metrics receives pipeline observations.  The monitoring package provides
// the production implementation; NopMetrics discards everything.
type Metrics interface {
	ObserveClassification(elapsed time.Duration, candidates int, degraded bool)
	ObserveMatcher(method Method, elapsed time.Duration, hits int, failed bool)
}

type nopMetrics struct{}

func (nopMetrics) ObserveClassification(time.Duration, int, bool) {}
func (nopMetrics) ObserveMatcher(Method, time.Duration, int, bool) {}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }

// Engine runs the full pipeline: normalize, match concurrently, merge,
// apply the interpretation rules, rank.  Safe for concurrent use.
type Engine struct {
	provider   *catalog.Provider
	normalizer *Normalizer
	matchers   []Matcher
	merger     *Merger
	rules      *RuleEngine
	ranker     *Ranker

	matcherTimeout time.Duration
	logger         logging.Logger
	metrics        Metrics
}

// Option customizes an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	weights        Weights
	mergedCap      int
	rankedCap      int
	matcherTimeout time.Duration
	scorer         FuzzyScorer
	logger         logging.Logger
	metrics        Metrics
}

// WithWeights overrides the method combination weights.
func WithWeights(w Weights) Option { return func(c *engineConfig) { c.weights = w } }

// WithMergedCap overrides the merged candidate list cap.
func WithMergedCap(n int) Option { return func(c *engineConfig) { c.mergedCap = n } }

// WithRankedCap overrides the ranked output cap.
func WithRankedCap(n int) Option { return func(c *engineConfig) { c.rankedCap = n } }

// WithMatcherTimeout overrides the per-matcher deadline.
func WithMatcherTimeout(d time.Duration) Option {
	return func(c *engineConfig) { c.matcherTimeout = d }
}

// WithScorer overrides the fuzzy scorer used by the rule engine's descent.
func WithScorer(s FuzzyScorer) Option { return func(c *engineConfig) { c.scorer = s } }

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) Option { return func(c *engineConfig) { c.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option { return func(c *engineConfig) { c.metrics = m } }

// NewEngine wires an engine over the given catalog provider and matchers.
// At least one matcher is required; nil matchers are rejected.
func NewEngine(provider *catalog.Provider, matchers []Matcher, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, errors.New(errors.ErrCodeInternal, "catalog provider is required")
	}
	if len(matchers) == 0 {
		return nil, errors.New(errors.ErrCodeInternal, "at least one matcher is required")
	}
	for _, m := range matchers {
		if m == nil {
			return nil, errors.New(errors.ErrCodeInternal, "nil matcher")
		}
	}

	normalizer := NewNormalizer()
	cfg := engineConfig{
		weights:        DefaultWeights,
		mergedCap:      defaultMergedCap,
		rankedCap:      defaultRankedCap,
		matcherTimeout: defaultMatcherTimeout,
		scorer:         NewTokenSetScorer(normalizer),
		logger:         logging.NewNopLogger(),
		metrics:        NopMetrics(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.matcherTimeout <= 0 {
		return nil, errors.New(errors.ErrCodeInternal, "matcher timeout must be positive")
	}

	merger, err := NewMerger(cfg.weights, cfg.mergedCap)
	if err != nil {
		return nil, err
	}
	rules, err := NewRuleEngine(normalizer, cfg.scorer)
	if err != nil {
		return nil, err
	}
	ranker, err := NewRanker(cfg.rankedCap)
	if err != nil {
		return nil, err
	}

	return &Engine{
		provider:       provider,
		normalizer:     normalizer,
		matchers:       matchers,
		merger:         merger,
		rules:          rules,
		ranker:         ranker,
		matcherTimeout: cfg.matcherTimeout,
		logger:         cfg.logger.Named("classify.engine"),
		metrics:        cfg.metrics,
	}, nil
}

// Classify runs one classification.  Matcher failures degrade the result
// instead of failing it; the caller sees Degraded and the reasons in Stats.
// It returns a validation error for unusable input and NoCandidate when no
// catalog code can be matched at all.
func (e *Engine) Classify(ctx context.Context, description string, attrs *Attributes) (*Result, error) {
	start := time.Now()

	snap, err := e.provider.Pin()
	if err != nil {
		return nil, err
	}
	q, err := e.normalizer.Normalize(description, attrs)
	if err != nil {
		return nil, err
	}

	hits, reasons := e.fanOut(ctx, snap, q)
	merged := e.merger.Merge(snap, hits)

	sel, err := e.rules.Select(snap, q, merged)
	if err != nil {
		e.metrics.ObserveClassification(time.Since(start), 0, len(reasons) > 0)
		return nil, err
	}
	ranked := e.ranker.Rank(snap, sel, merged)

	res := &Result{
		Best:   ranked[0],
		Ranked: ranked,
		Stats: Stats{
			CatalogVersion:  snap.Version(),
			CandidateCount:  len(merged),
			Elapsed:         time.Since(start),
			Degraded:        len(reasons) > 0,
			DegradedReasons: reasons,
		},
	}

	e.metrics.ObserveClassification(res.Stats.Elapsed, len(merged), res.Stats.Degraded)
	e.logger.Info("classification completed",
		logging.String("code", res.Best.Code),
		logging.String("catalog_version", snap.Version()),
		logging.Int("candidates", len(merged)),
		logging.Bool("degraded", res.Stats.Degraded),
		logging.Duration("elapsed", res.Stats.Elapsed),
	)
	return res, nil
}

// Explain classifies and returns only the winner's rule trail.
func (e *Engine) Explain(ctx context.Context, description string, attrs *Attributes) ([]RuleApplication, error) {
	res, err := e.Classify(ctx, description, attrs)
	if err != nil {
		return nil, err
	}
	return res.Best.RuleTrace, nil
}

// matcherResult carries one matcher's outcome across the fan-out boundary.
type matcherResult struct {
	method Method
	hits   []Hit
	err    error
}

// fanOut runs every matcher concurrently under its own deadline.  A failed
// or timed-out matcher contributes no hits and a degradation reason; it
// never fails the classification.
func (e *Engine) fanOut(ctx context.Context, snap *catalog.Snapshot, q *Query) (map[Method][]Hit, []string) {
	results := make(chan matcherResult, len(e.matchers))
	var wg sync.WaitGroup

	for _, m := range e.matchers {
		wg.Add(1)
		go func(m Matcher) {
			defer wg.Done()
			mctx, cancel := context.WithTimeout(ctx, e.matcherTimeout)
			defer cancel()

			mstart := time.Now()
			hits, err := m.Match(mctx, snap, q)
			if err != nil {
				if mctx.Err() == context.DeadlineExceeded {
					err = errors.MatcherTimeout(string(m.Name()))
				} else {
					err = errors.MatcherUnavailable(string(m.Name()), err)
				}
			}
			e.metrics.ObserveMatcher(m.Name(), time.Since(mstart), len(hits), err != nil)
			results <- matcherResult{method: m.Name(), hits: hits, err: err}
		}(m)
	}
	wg.Wait()
	close(results)

	hits := make(map[Method][]Hit, len(e.matchers))
	var reasons []string
	for r := range results {
		if r.err != nil {
			e.logger.Warn("matcher degraded",
				logging.String("matcher", string(r.method)),
				logging.Err(r.err),
			)
			reasons = append(reasons, r.err.Error())
			continue
		}
		hits[r.method] = append(hits[r.method], r.hits...)
	}
	sort.Strings(reasons)
	return hits, reasons
}

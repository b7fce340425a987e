// Package classification provides the application-level service for
// classification requests. It sits between the HTTP handlers and the
// classification engine, adding result caching and audit publication.
package classification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aduanet/hs-classify/internal/classify"
	"github.com/aduanet/hs-classify/internal/infrastructure/messaging/kafka"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

const defaultResultTTL = 15 * time.Minute

// Service defines classification application operations.
type Service interface {
	Classify(ctx context.Context, input *ClassifyInput) (*Classification, error)
	Explain(ctx context.Context, input *ClassifyInput) (*Explanation, error)
}

// Engine is the slice of the classification engine the service uses.
type Engine interface {
	Classify(ctx context.Context, description string, attrs *classify.Attributes) (*classify.Result, error)
	Explain(ctx context.Context, description string, attrs *classify.Attributes) ([]classify.RuleApplication, error)
}

// Cache stores serialized classification results.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// AuditPublisher emits classification audit events.
type AuditPublisher interface {
	PublishAsync(ev *kafka.AuditEvent)
}

// ClassifyInput contains input for a classification request.
type ClassifyInput struct {
	Description string
	Attributes  *AttributesInput
	SkipCache   bool
}

// AttributesInput carries optional structured product attributes.
type AttributesInput struct {
	Material                string             `json:"material,omitempty"`
	Use                     string             `json:"use,omitempty"`
	Composition             map[string]float64 `json:"composition,omitempty"`
	Completeness            string             `json:"completeness,omitempty"`
	PackagingSoldSeparately bool               `json:"packaging_sold_separately,omitempty"`
}

// RuleStep is one entry of the explanation trail.
type RuleStep struct {
	Rule   string `json:"rule"`
	Level  string `json:"level"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// Alternative is a non-winning ranked candidate.
type Alternative struct {
	Code        string   `json:"code"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	Methods     []string `json:"methods"`
}

// Classification is the application-level classification DTO.
type Classification struct {
	Code            string        `json:"code"`
	Description     string        `json:"description"`
	Confidence      float64       `json:"confidence"`
	Methods         []string      `json:"methods"`
	RuleTrail       []RuleStep    `json:"rule_trail"`
	Alternatives    []Alternative `json:"alternatives,omitempty"`
	CatalogVersion  string        `json:"catalog_version"`
	Degraded        bool          `json:"degraded"`
	DegradedReasons []string      `json:"degraded_reasons,omitempty"`
	Cached          bool          `json:"cached"`
	ElapsedMs       int64         `json:"elapsed_ms"`
}

// Explanation is the rule trail for a classification without the
// surrounding candidate list.
type Explanation struct {
	Code           string     `json:"code"`
	RuleTrail      []RuleStep `json:"rule_trail"`
	CatalogVersion string     `json:"catalog_version"`
}

// CacheStats receives cache hit and miss observations.
type CacheStats interface {
	CacheHit()
	CacheMiss()
}

type nopCacheStats struct{}

func (nopCacheStats) CacheHit()  {}
func (nopCacheStats) CacheMiss() {}

type serviceImpl struct {
	engine  Engine
	cache   Cache
	audit   AuditPublisher
	stats   CacheStats
	ttl     time.Duration
	version func() string
	logger  logging.Logger
}

// ServiceOption tunes the service.
type ServiceOption func(*serviceImpl)

// WithResultTTL overrides the cached result lifetime.
func WithResultTTL(ttl time.Duration) ServiceOption {
	return func(s *serviceImpl) { s.ttl = ttl }
}

// WithCacheStats wires cache hit/miss counters.
func WithCacheStats(stats CacheStats) ServiceOption {
	return func(s *serviceImpl) { s.stats = stats }
}

// NewService creates the classification application service. cache and
// audit may be nil; the service then classifies without caching or
// audit events. version reports the active catalog version for cache
// key derivation and may be nil when cache is nil.
func NewService(engine Engine, cache Cache, audit AuditPublisher, version func() string, logger logging.Logger, opts ...ServiceOption) (Service, error) {
	if engine == nil {
		return nil, errors.Internal("classification engine is required")
	}
	if logger == nil {
		return nil, errors.Internal("logger is required")
	}
	if cache != nil && version == nil {
		return nil, errors.Internal("catalog version source is required when caching")
	}

	s := &serviceImpl{
		engine:  engine,
		cache:   cache,
		audit:   audit,
		stats:   nopCacheStats{},
		ttl:     defaultResultTTL,
		version: version,
		logger:  logger.Named("classification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *serviceImpl) Classify(ctx context.Context, input *ClassifyInput) (*Classification, error) {
	if input == nil {
		return nil, errors.Validation("classification input is required")
	}

	var key string
	if s.cache != nil && !input.SkipCache {
		key = cacheKey(s.version(), input)
		var cached Classification
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			s.stats.CacheHit()
			cached.Cached = true
			return &cached, nil
		}
		s.stats.CacheMiss()
		if !errors.IsCode(err, errors.ErrCodeNotFound) {
			s.logger.Warn("result cache read failed", logging.Err(err))
		}
	}

	result, err := s.engine.Classify(ctx, input.Description, toAttributes(input.Attributes))
	if err != nil {
		return nil, err
	}

	out := toDTO(result)

	// Degraded results reflect a partial retrieval pass and are not
	// cached so a healthy pass can replace them.
	if key != "" && !result.Stats.Degraded {
		if err := s.cache.Set(ctx, key, out, s.ttl); err != nil {
			s.logger.Warn("result cache write failed", logging.Err(err))
		}
	}

	s.publishAudit(input, result)
	return out, nil
}

func (s *serviceImpl) Explain(ctx context.Context, input *ClassifyInput) (*Explanation, error) {
	if input == nil {
		return nil, errors.Validation("classification input is required")
	}

	result, err := s.engine.Classify(ctx, input.Description, toAttributes(input.Attributes))
	if err != nil {
		return nil, err
	}
	return &Explanation{
		Code:           result.Best.Code,
		RuleTrail:      toRuleSteps(result.Best.RuleTrace),
		CatalogVersion: result.Stats.CatalogVersion,
	}, nil
}

func (s *serviceImpl) publishAudit(input *ClassifyInput, result *classify.Result) {
	if s.audit == nil {
		return
	}
	trail := make([]string, 0, len(result.Best.RuleTrace))
	for _, step := range result.Best.RuleTrace {
		trail = append(trail, fmt.Sprintf("%s@%s:%s", step.Rule, step.Level, step.Code))
	}
	s.audit.PublishAsync(&kafka.AuditEvent{
		CatalogVersion: result.Stats.CatalogVersion,
		Query:          input.Description,
		Code:           result.Best.Code,
		Score:          result.Best.Score,
		RuleTrail:      trail,
		Degraded:       result.Stats.Degraded,
		ElapsedMs:      result.Stats.Elapsed.Milliseconds(),
	})
}

// cacheKey derives a stable key from the catalog version and the full
// request. Attribute maps serialize with sorted keys under
// encoding/json, so equal inputs produce equal keys.
func cacheKey(version string, input *ClassifyInput) string {
	h := sha256.New()
	h.Write([]byte(version))
	h.Write([]byte{0})
	h.Write([]byte(input.Description))
	if input.Attributes != nil {
		h.Write([]byte{0})
		raw, _ := json.Marshal(input.Attributes)
		h.Write(raw)
	}
	return "classify:" + hex.EncodeToString(h.Sum(nil))
}

func toAttributes(in *AttributesInput) *classify.Attributes {
	if in == nil {
		return nil
	}
	return &classify.Attributes{
		Material:                in.Material,
		Use:                     in.Use,
		Composition:             in.Composition,
		Completeness:            in.Completeness,
		PackagingSoldSeparately: in.PackagingSoldSeparately,
	}
}

func toRuleSteps(trace []classify.RuleApplication) []RuleStep {
	steps := make([]RuleStep, 0, len(trace))
	for _, r := range trace {
		steps = append(steps, RuleStep{
			Rule:   r.Rule,
			Level:  string(r.Level),
			Code:   r.Code,
			Detail: r.Detail,
		})
	}
	return steps
}

func toMethodNames(methods []classify.Method) []string {
	names := make([]string, 0, len(methods))
	for _, m := range methods {
		names = append(names, string(m))
	}
	return names
}

func toDTO(result *classify.Result) *Classification {
	alts := make([]Alternative, 0, len(result.Ranked))
	for _, c := range result.Ranked[1:] {
		alts = append(alts, Alternative{
			Code:        c.Code,
			Description: c.Description,
			Confidence:  c.Score,
			Methods:     toMethodNames(c.Methods),
		})
	}
	return &Classification{
		Code:            result.Best.Code,
		Description:     result.Best.Description,
		Confidence:      result.Best.Score,
		Methods:         toMethodNames(result.Best.Methods),
		RuleTrail:       toRuleSteps(result.Best.RuleTrace),
		Alternatives:    alts,
		CatalogVersion:  result.Stats.CatalogVersion,
		Degraded:        result.Stats.Degraded,
		DegradedReasons: result.Stats.DegradedReasons,
		ElapsedMs:       result.Stats.Elapsed.Milliseconds(),
	}
}

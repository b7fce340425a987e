package prometheus

import (
	"strconv"
	"time"

	"github.com/aduanet/hs-classify/internal/classify"
)

// Histogram buckets.
var (
	httpDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	classifyDurationBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2, 5}
	ingestDurationBuckets   = []float64{.1, .5, 1, 5, 10, 30, 60, 120}
	candidateCountBuckets   = []float64{0, 1, 5, 10, 25, 50, 100, 250}
)

// AppMetrics holds the application's metric vectors.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Classification pipeline
	ClassificationsTotal   CounterVec
	ClassificationDuration HistogramVec
	CandidateCount         HistogramVec
	MatcherDuration        HistogramVec
	MatcherHits            HistogramVec
	MatcherFailuresTotal   CounterVec

	// Catalog
	CatalogIngestTotal    CounterVec
	CatalogIngestDuration HistogramVec
	CatalogEntriesTotal   GaugeVec

	// Cache and messaging
	CacheHitsTotal    CounterVec
	CacheMissesTotal  CounterVec
	AuditPublishTotal CounterVec
}

// NewAppMetrics registers all application metrics on the collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", httpDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	m.ClassificationsTotal = collector.RegisterCounter("classifications_total", "Classification requests", "outcome")
	m.ClassificationDuration = collector.RegisterHistogram("classification_duration_seconds", "End-to-end classification duration", classifyDurationBuckets)
	m.CandidateCount = collector.RegisterHistogram("classification_candidate_count", "Merged candidates per classification", candidateCountBuckets)
	m.MatcherDuration = collector.RegisterHistogram("matcher_duration_seconds", "Candidate matcher duration", classifyDurationBuckets, "method")
	m.MatcherHits = collector.RegisterHistogram("matcher_hit_count", "Hits returned per matcher run", candidateCountBuckets, "method")
	m.MatcherFailuresTotal = collector.RegisterCounter("matcher_failures_total", "Matcher runs that failed or timed out", "method")

	m.CatalogIngestTotal = collector.RegisterCounter("catalog_ingest_total", "Catalog ingest attempts", "status")
	m.CatalogIngestDuration = collector.RegisterHistogram("catalog_ingest_duration_seconds", "Catalog ingest duration", ingestDurationBuckets)
	m.CatalogEntriesTotal = collector.RegisterGauge("catalog_entries_total", "Entries in the active catalog snapshot", "version")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Classification cache hits")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Classification cache misses")
	m.AuditPublishTotal = collector.RegisterCounter("audit_publish_total", "Audit events published", "status")

	return m
}

// EngineMetrics adapts AppMetrics to the classification engine's
// metrics hook.
type EngineMetrics struct {
	app *AppMetrics
}

var _ classify.Metrics = (*EngineMetrics)(nil)

func NewEngineMetrics(app *AppMetrics) *EngineMetrics {
	return &EngineMetrics{app: app}
}

func (m *EngineMetrics) ObserveClassification(elapsed time.Duration, candidates int, degraded bool) {
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	m.app.ClassificationsTotal.WithLabelValues(outcome).Inc()
	m.app.ClassificationDuration.WithLabelValues().Observe(elapsed.Seconds())
	m.app.CandidateCount.WithLabelValues().Observe(float64(candidates))
}

func (m *EngineMetrics) ObserveMatcher(method classify.Method, elapsed time.Duration, hits int, failed bool) {
	name := string(method)
	m.app.MatcherDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if failed {
		m.app.MatcherFailuresTotal.WithLabelValues(name).Inc()
		return
	}
	m.app.MatcherHits.WithLabelValues(name).Observe(float64(hits))
}

// CacheHit counts one classification cache hit.
func (m *AppMetrics) CacheHit() { m.CacheHitsTotal.WithLabelValues().Inc() }

// CacheMiss counts one classification cache miss.
func (m *AppMetrics) CacheMiss() { m.CacheMissesTotal.WithLabelValues().Inc() }

// ObserveHTTPRequest records one completed HTTP request.
func (m *AppMetrics) ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ObserveIngest records a catalog ingest attempt.
func (m *AppMetrics) ObserveIngest(version string, entries int, elapsed time.Duration, err error) {
	if err != nil {
		m.CatalogIngestTotal.WithLabelValues("error").Inc()
		return
	}
	m.CatalogIngestTotal.WithLabelValues("ok").Inc()
	m.CatalogIngestDuration.WithLabelValues().Observe(elapsed.Seconds())
	m.CatalogEntriesTotal.WithLabelValues(version).Set(float64(entries))
}

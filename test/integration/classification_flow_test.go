// Package integration exercises the full request path: SDK client, HTTP
// router, application services, classification engine, and a published
// catalog snapshot. No external infrastructure is required; retrieval runs
// on the in-process lexical and structured matchers.
package integration

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcatalog "github.com/aduanet/hs-classify/internal/application/catalog"
	"github.com/aduanet/hs-classify/internal/application/classification"
	"github.com/aduanet/hs-classify/internal/classify"
	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	httpserver "github.com/aduanet/hs-classify/internal/interfaces/http"
	"github.com/aduanet/hs-classify/internal/interfaces/http/handlers"
	"github.com/aduanet/hs-classify/pkg/client"
	"github.com/aduanet/hs-classify/pkg/errors"
)

func testEntries() []catalog.Entry {
	return []catalog.Entry{
		{Code: "02", Level: catalog.LevelChapter, Description: "Meat and edible meat offal"},
		{Code: "0207", Level: catalog.LevelHeading, ParentCode: "02", Description: "Meat and edible offal of poultry, fresh, chilled or frozen"},
		{Code: "020714", Level: catalog.LevelSubheading, ParentCode: "0207", Description: "Cuts and offal of fowls, frozen"},
		{Code: "02071410", Level: catalog.LevelNational, ParentCode: "020714", Description: "Cuts of fowls, frozen, with bone in"},
		{Code: "02071420", Level: catalog.LevelNational, ParentCode: "020714", Description: "Boneless cuts of fowls, frozen"},
		{Code: "0208", Level: catalog.LevelHeading, ParentCode: "02", Description: "Other meat and edible meat offal, fresh, chilled or frozen"},
		{Code: "020810", Level: catalog.LevelSubheading, ParentCode: "0208", Description: "Of rabbits or hares"},
		{Code: "52", Level: catalog.LevelChapter, Description: "Cotton"},
		{Code: "5201", Level: catalog.LevelHeading, ParentCode: "52", Description: "Cotton, not carded or combed", AttributeTags: []string{"material:cotton"}},
		{Code: "520100", Level: catalog.LevelSubheading, ParentCode: "5201", Description: "Cotton, not carded or combed"},
	}
}

func testNotes() []catalog.LegalNote {
	return []catalog.LegalNote{
		{Code: "02", Priority: 1, Text: "This chapter does not cover insects."},
		{Code: "0207", Priority: 1, Text: "Applies only to poultry of heading 0105."},
	}
}

// staticSource serves a fixed release so the ingest endpoint can be
// exercised without a database.
type staticSource struct {
	version string
	entries []catalog.Entry
	notes   []catalog.LegalNote
}

func (s *staticSource) LatestVersion(context.Context) (string, error) { return s.version, nil }
func (s *staticSource) LoadEntries(_ context.Context, _ string) ([]catalog.Entry, error) {
	return s.entries, nil
}
func (s *staticSource) LoadNotes(_ context.Context, _ string) ([]catalog.LegalNote, error) {
	return s.notes, nil
}

// memCache is a JSON-marshaling in-memory stand-in for the redis cache.
type memCache struct {
	values map[string][]byte
}

func newMemCache() *memCache { return &memCache{values: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "cache miss")
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

func newTestStack(t *testing.T) (*client.Client, *catalog.Provider) {
	t.Helper()
	logger := logging.NewNopLogger()

	source := &staticSource{version: "2026-01", entries: testEntries(), notes: testNotes()}
	provider := catalog.NewProvider()
	ingestor, err := catalog.NewIngestor(source, provider, logger)
	require.NoError(t, err)
	_, err = ingestor.Ingest(context.Background(), "")
	require.NoError(t, err)

	lexical, err := classify.NewLexicalMatcher(classify.NewTokenSetScorer(classify.NewNormalizer()), 20)
	require.NoError(t, err)

	engine, err := classify.NewEngine(provider,
		[]classify.Matcher{lexical, classify.NewStructuredMatcher()},
		classify.WithLogger(logger),
	)
	require.NoError(t, err)

	classifySvc, err := classification.NewService(engine, newMemCache(), nil,
		func() string {
			snap, err := provider.Pin()
			if err != nil {
				return ""
			}
			return snap.Version()
		},
		logger,
	)
	require.NoError(t, err)

	catalogSvc, err := appcatalog.NewService(provider, ingestor, nil, logger)
	require.NoError(t, err)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		ClassifyHandler: handlers.NewClassifyHandler(classifySvc),
		CatalogHandler:  handlers.NewCatalogHandler(catalogSvc),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Checker{
			"catalog": func(context.Context) error {
				_, err := provider.Pin()
				return err
			},
		}),
		Logger: logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	sdk, err := client.NewClient(srv.URL)
	require.NoError(t, err)
	return sdk, provider
}

func TestClassifyEndToEnd(t *testing.T) {
	sdk, _ := newTestStack(t)
	ctx := context.Background()

	res, err := sdk.Classify().Classify(ctx, &client.ClassifyRequest{
		Description: "frozen cuts of fowls with bone in",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Code, "0207"), "expected a poultry code, got %s", res.Code)
	assert.Equal(t, "2026-01", res.CatalogVersion)
	assert.NotEmpty(t, res.RuleTrail)
	assert.Greater(t, res.Confidence, 0.0)
	assert.False(t, res.Cached)
	assert.False(t, res.Degraded)
}

func TestClassifySecondCallServedFromCache(t *testing.T) {
	sdk, _ := newTestStack(t)
	ctx := context.Background()
	req := &client.ClassifyRequest{Description: "frozen cuts of fowls with bone in"}

	first, err := sdk.Classify().Classify(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := sdk.Classify().Classify(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Code, second.Code)
}

func TestClassifyWithStructuredAttributes(t *testing.T) {
	sdk, _ := newTestStack(t)

	res, err := sdk.Classify().Classify(context.Background(), &client.ClassifyRequest{
		Description: "raw cotton bales, not carded",
		Attributes:  &client.Attributes{Material: "cotton"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Code, "52"), "expected a cotton code, got %s", res.Code)
}

func TestExplainEndToEnd(t *testing.T) {
	sdk, _ := newTestStack(t)

	exp, err := sdk.Classify().Explain(context.Background(), &client.ClassifyRequest{
		Description: "frozen cuts of fowls",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, exp.Code)
	assert.NotEmpty(t, exp.RuleTrail)
	assert.Equal(t, "2026-01", exp.CatalogVersion)
}

func TestClassifyValidationError(t *testing.T) {
	sdk, _ := newTestStack(t)

	_, err := sdk.Classify().Classify(context.Background(), &client.ClassifyRequest{
		Description: "gift set",
		Attributes:  &client.Attributes{Composition: map[string]float64{"perfume": 0.8, "soap": 0.5}},
	})
	require.Error(t, err)

	apiErr, ok := err.(*client.APIError)
	require.True(t, ok)
	assert.True(t, apiErr.IsValidation())
}

func TestCatalogBrowseEndToEnd(t *testing.T) {
	sdk, _ := newTestStack(t)
	ctx := context.Background()

	chapters, err := sdk.Catalog().Chapters(ctx)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "02", chapters[0].Code)
	assert.Equal(t, "52", chapters[1].Code)

	detail, err := sdk.Catalog().Get(ctx, "020714")
	require.NoError(t, err)
	assert.Equal(t, "0207", detail.ParentCode)
	// Inherited notes arrive outermost first.
	require.Len(t, detail.Notes, 2)
	assert.Equal(t, "02", detail.Notes[0].Code)
	assert.Equal(t, "0207", detail.Notes[1].Code)

	children, err := sdk.Catalog().Children(ctx, "020714")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "02071410", children[0].Code)

	_, err = sdk.Catalog().Get(ctx, "99999999")
	require.Error(t, err)
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok)
	assert.True(t, apiErr.IsNotFound())
}

func TestCatalogIngestEndToEnd(t *testing.T) {
	sdk, provider := newTestStack(t)

	info, err := sdk.Catalog().Ingest(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2026-01", info.Version)
	assert.Equal(t, len(testEntries()), info.Entries)

	snap, err := provider.Pin()
	require.NoError(t, err)
	assert.Equal(t, "2026-01", snap.Version())
}

func TestReadinessEndToEnd(t *testing.T) {
	sdk, _ := newTestStack(t)
	assert.NoError(t, sdk.Healthy(context.Background()))
}

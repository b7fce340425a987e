package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, WithRetry(2, time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)
	return c, srv
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)

	_, err = NewClient("ftp://example.com")
	assert.Error(t, err)

	c, err := NewClient("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.baseURL)
}

func TestClassify(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/classify", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req ClassifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "frozen chicken cuts, bone in", req.Description)
		require.NotNil(t, req.Attributes)
		assert.Equal(t, "poultry", req.Attributes.Material)

		json.NewEncoder(w).Encode(Classification{
			Code:           "02071410",
			Description:    "Cuts of fowls, frozen, with bone in",
			Confidence:     0.93,
			Methods:        []string{"lexical", "semantic"},
			RuleTrail:      []RuleStep{{Rule: "RGI1", Level: "heading", Code: "0207"}},
			CatalogVersion: "2026-01",
		})
	}))

	res, err := c.Classify().Classify(context.Background(), &ClassifyRequest{
		Description: "frozen chicken cuts, bone in",
		Attributes:  &Attributes{Material: "poultry"},
	})
	require.NoError(t, err)
	assert.Equal(t, "02071410", res.Code)
	assert.Equal(t, 0.93, res.Confidence)
	require.Len(t, res.RuleTrail, 1)
	assert.Equal(t, "RGI1", res.RuleTrail[0].Rule)
}

func TestClassifyRequiresDescription(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))

	_, err := c.Classify().Classify(context.Background(), &ClassifyRequest{Description: "  "})
	assert.Error(t, err)

	_, err = c.Classify().Classify(context.Background(), nil)
	assert.Error(t, err)
}

func TestExplain(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/classify/explain", r.URL.Path)
		json.NewEncoder(w).Encode(Explanation{
			Code:           "02071410",
			RuleTrail:      []RuleStep{{Rule: "RGI6", Level: "subheading", Code: "020714"}},
			CatalogVersion: "2026-01",
		})
	}))

	exp, err := c.Classify().Explain(context.Background(), &ClassifyRequest{Description: "frozen chicken cuts"})
	require.NoError(t, err)
	assert.Equal(t, "02071410", exp.Code)
	require.Len(t, exp.RuleTrail, 1)
	assert.Equal(t, "RGI6", exp.RuleTrail[0].Rule)
}

func TestAPIErrorMapping(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "CAT_001",
			"message": "catalog entry 99999999 not found",
		})
	}))

	_, err := c.Catalog().Get(context.Background(), "99999999")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "CAT_001", apiErr.Code)
	assert.Contains(t, apiErr.Message, "99999999")
	assert.NotEmpty(t, apiErr.RequestID)
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(VersionInfo{Version: "2026-01", Entries: 12841})
	}))

	info, err := c.Catalog().Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-01", info.Version)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"code": "CLS_001", "message": "description is required"})
	}))

	_, err := c.Classify().Classify(context.Background(), &ClassifyRequest{Description: "x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.True(t, apiErr.IsValidation())
}

func TestCatalogBrowse(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/catalog/chapters":
			json.NewEncoder(w).Encode(map[string][]*EntrySummary{
				"chapters": {{Code: "02", Level: "chapter", Description: "Meat and edible meat offal"}},
			})
		case "/api/v1/catalog/codes/0207":
			json.NewEncoder(w).Encode(EntryDetail{
				EntrySummary: EntrySummary{Code: "0207", Level: "heading", Description: "Meat of poultry"},
				ParentCode:   "02",
				Notes:        []NoteView{{Code: "02", Priority: 1, Text: "This chapter does not cover insects."}},
			})
		case "/api/v1/catalog/codes/0207/children":
			json.NewEncoder(w).Encode(map[string][]*EntrySummary{
				"children": {{Code: "020714", Level: "subheading", Description: "Cuts and offal, frozen"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()

	chapters, err := c.Catalog().Chapters(ctx)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, "02", chapters[0].Code)

	detail, err := c.Catalog().Get(ctx, "0207")
	require.NoError(t, err)
	assert.Equal(t, "02", detail.ParentCode)
	require.Len(t, detail.Notes, 1)

	children, err := c.Catalog().Children(ctx, "0207")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "020714", children[0].Code)
}

func TestCatalogIngest(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/catalog/ingest", r.URL.Path)

		var body map[string]string
		if r.ContentLength > 0 {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		}
		version := body["version"]
		if version == "" {
			version = "2026-02"
		}
		json.NewEncoder(w).Encode(VersionInfo{Version: version, Entries: 12903})
	}))

	info, err := c.Catalog().Ingest(context.Background(), "2026-02")
	require.NoError(t, err)
	assert.Equal(t, "2026-02", info.Version)

	info, err = c.Catalog().Ingest(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2026-02", info.Version)
}

func TestHealthy(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/readyz", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	assert.NoError(t, c.Healthy(context.Background()))
}

package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aduanet/hs-classify/pkg/client"
)

func newClassifyServer(t *testing.T, capture *client.ClassifyRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/classify":
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
			json.NewEncoder(w).Encode(client.Classification{
				Code:           "02071410",
				Description:    "Cuts of fowls, frozen, with bone in",
				Confidence:     0.93,
				Methods:        []string{"lexical", "semantic"},
				RuleTrail:      []client.RuleStep{{Rule: "RGI1", Level: "heading", Code: "0207"}},
				CatalogVersion: "2026-01",
			})
		case "/api/v1/classify/explain":
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
			json.NewEncoder(w).Encode(client.Explanation{
				Code:           "02071410",
				RuleTrail:      []client.RuleStep{{Rule: "RGI6", Level: "subheading", Code: "020714"}},
				CatalogVersion: "2026-01",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClassifyCommand(t *testing.T) {
	var captured client.ClassifyRequest
	srv := newClassifyServer(t, &captured)

	out, err := runCommand(t, srv.URL, "classify", "frozen", "chicken", "cuts")
	require.NoError(t, err)

	assert.Equal(t, "frozen chicken cuts", captured.Description)
	assert.Nil(t, captured.Attributes)
	assert.Contains(t, out, "02071410")
	assert.Contains(t, out, "0.93")
	assert.Contains(t, out, "RGI1 at heading -> 0207")
}

func TestClassifyCommandWithAttributes(t *testing.T) {
	var captured client.ClassifyRequest
	srv := newClassifyServer(t, &captured)

	_, err := runCommand(t, srv.URL, "classify", "gift set",
		"--composition", "perfume=0.6,soap=0.4",
		"--material", "mixed",
		"--skip-cache",
	)
	require.NoError(t, err)

	require.NotNil(t, captured.Attributes)
	assert.Equal(t, "mixed", captured.Attributes.Material)
	assert.Equal(t, 0.6, captured.Attributes.Composition["perfume"])
	assert.Equal(t, 0.4, captured.Attributes.Composition["soap"])
	assert.True(t, captured.SkipCache)
}

func TestClassifyCommandInvalidComposition(t *testing.T) {
	srv := newClassifyServer(t, &client.ClassifyRequest{})

	_, err := runCommand(t, srv.URL, "classify", "gift set", "--composition", "perfume=lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "perfume")
}

func TestClassifyCommandExplain(t *testing.T) {
	var captured client.ClassifyRequest
	srv := newClassifyServer(t, &captured)

	out, err := runCommand(t, srv.URL, "classify", "frozen chicken cuts", "--explain")
	require.NoError(t, err)
	assert.Contains(t, out, "RGI6 at subheading -> 020714")
}

func TestClassifyCommandRequiresDescription(t *testing.T) {
	srv := newClassifyServer(t, &client.ClassifyRequest{})

	_, err := runCommand(t, srv.URL, "classify")
	assert.Error(t, err)
}

func TestClassifyCommandTableOutput(t *testing.T) {
	var captured client.ClassifyRequest
	srv := newClassifyServer(t, &captured)

	out, err := runCommand(t, srv.URL, "classify", "frozen chicken cuts", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "CODE")
	assert.Contains(t, out, "02071410")
}

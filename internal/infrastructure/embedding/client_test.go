package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{BaseURL: srv.URL, APIKey: "test-key"}, logging.NewNopLogger())
	require.NoError(t, err)
	return client, srv
}

func TestClientEmbed(t *testing.T) {
	var gotAuth string
	var gotReq embedRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3],"index":0}]}`))
	})

	vec, err := client.Embed(context.Background(), "frozen chicken cuts")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, []string{"frozen chicken cuts"}, gotReq.Input)
	assert.Equal(t, "multilingual-e5-base", gotReq.Model)
}

func TestClientEmbedServiceError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	})

	_, err := client.Embed(context.Background(), "woven fabrics")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingFailed))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestClientEmbedEmptyVector(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := client.Embed(context.Background(), "woven fabrics")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingFailed))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(&Config{}, logging.NewNopLogger())
	require.Error(t, err)

	_, err = NewClient(nil, logging.NewNopLogger())
	require.Error(t, err)

	_, err = NewClient(&Config{BaseURL: "http://localhost"}, nil)
	require.Error(t, err)
}

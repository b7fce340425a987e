package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aduanet/hs-classify/pkg/errors"
)

func newHealthRouter(checkers map[string]Checker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHealthHandler(checkers)
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	return r
}

func TestLiveness(t *testing.T) {
	r := newHealthRouter(nil)

	rec := get(r, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessAllHealthy(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	r := newHealthRouter(map[string]Checker{"catalog": ok, "redis": ok})

	rec := get(r, "/readyz")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["catalog"])
	assert.Equal(t, "ok", body.Checks["redis"])
}

func TestReadinessDependencyDown(t *testing.T) {
	r := newHealthRouter(map[string]Checker{
		"catalog": func(ctx context.Context) error { return nil },
		"redis":   func(ctx context.Context) error { return errors.Unavailable("connection refused") },
	})

	rec := get(r, "/readyz")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "ok", body.Checks["catalog"])
	assert.Contains(t, body.Checks["redis"], "connection refused")
}

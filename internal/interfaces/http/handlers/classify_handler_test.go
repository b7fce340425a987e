package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aduanet/hs-classify/internal/application/classification"
	"github.com/aduanet/hs-classify/pkg/errors"
)

type fakeClassificationService struct {
	result    *classification.Classification
	expl      *classification.Explanation
	err       error
	lastInput *classification.ClassifyInput
}

func (f *fakeClassificationService) Classify(ctx context.Context, input *classification.ClassifyInput) (*classification.Classification, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeClassificationService) Explain(ctx context.Context, input *classification.ClassifyInput) (*classification.Explanation, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return f.expl, nil
}

func newClassifyRouter(svc classification.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewClassifyHandler(svc)
	r.POST("/api/v1/classify", h.Classify)
	r.POST("/api/v1/classify/explain", h.Explain)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	return rec
}

func TestClassifyEndpoint(t *testing.T) {
	svc := &fakeClassificationService{
		result: &classification.Classification{
			Code:           "02071410",
			Description:    "Frozen boneless chicken cuts",
			Confidence:     100,
			Methods:        []string{"rule", "lexical"},
			CatalogVersion: "2026-01",
		},
	}
	r := newClassifyRouter(svc)

	body := `{"description":"frozen boneless chicken cuts","attributes":{"composition":{"chicken":1.0}}}`
	rec := post(r, "/api/v1/classify", body)

	require.Equal(t, http.StatusOK, rec.Code)
	var got classification.Classification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "02071410", got.Code)
	assert.Equal(t, float64(100), got.Confidence)

	require.NotNil(t, svc.lastInput)
	assert.Equal(t, "frozen boneless chicken cuts", svc.lastInput.Description)
	require.NotNil(t, svc.lastInput.Attributes)
	assert.Equal(t, 1.0, svc.lastInput.Attributes.Composition["chicken"])
}

func TestClassifyMalformedBody(t *testing.T) {
	r := newClassifyRouter(&fakeClassificationService{})

	rec := post(r, "/api/v1/classify", `{"description":`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(errors.ErrCodeBadRequest), resp.Code)
}

func TestClassifyValidationError(t *testing.T) {
	svc := &fakeClassificationService{err: errors.Validation("description must not be empty")}
	r := newClassifyRouter(svc)

	rec := post(r, "/api/v1/classify", `{"description":""}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(errors.ErrCodeValidation), resp.Code)
}

func TestClassifyNoCandidate(t *testing.T) {
	svc := &fakeClassificationService{err: errors.NoCandidate("no heading matched")}
	r := newClassifyRouter(svc)

	rec := post(r, "/api/v1/classify", `{"description":"unclassifiable"}`)

	assert.Equal(t, errors.ErrCodeNoCandidate.HTTPStatus(), rec.Code)
}

func TestClassifyInternalErrorMasked(t *testing.T) {
	svc := &fakeClassificationService{
		err: errors.Internal("snapshot pointer corrupt").WithDetail("version=2026-01"),
	}
	r := newClassifyRouter(svc)

	rec := post(r, "/api/v1/classify", `{"description":"anything"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Detail)
}

func TestExplainEndpoint(t *testing.T) {
	svc := &fakeClassificationService{
		expl: &classification.Explanation{
			Code:           "520811",
			CatalogVersion: "2026-01",
			RuleTrail: []classification.RuleStep{
				{Rule: "RGI3b", Level: "heading", Code: "5208"},
			},
		},
	}
	r := newClassifyRouter(svc)

	rec := post(r, "/api/v1/classify/explain", `{"description":"woven fabric 60% cotton 40% polyester"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var got classification.Explanation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "520811", got.Code)
	require.Len(t, got.RuleTrail, 1)
	assert.Equal(t, "RGI3b", got.RuleTrail[0].Rule)
}

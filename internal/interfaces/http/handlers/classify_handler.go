package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aduanet/hs-classify/internal/application/classification"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// ClassifyHandler serves the classification endpoints.
type ClassifyHandler struct {
	service classification.Service
}

// NewClassifyHandler wires a ClassifyHandler.
func NewClassifyHandler(service classification.Service) *ClassifyHandler {
	return &ClassifyHandler{service: service}
}

// ClassifyRequest is the request body for POST /classify.
type ClassifyRequest struct {
	Description string             `json:"description"`
	Attributes  *AttributesRequest `json:"attributes,omitempty"`
	SkipCache   bool               `json:"skip_cache,omitempty"`
}

// AttributesRequest carries optional structured product attributes.
type AttributesRequest struct {
	Material                string             `json:"material,omitempty"`
	Use                     string             `json:"use,omitempty"`
	Composition             map[string]float64 `json:"composition,omitempty"`
	Completeness            string             `json:"completeness,omitempty"`
	PackagingSoldSeparately bool               `json:"packaging_sold_separately,omitempty"`
}

func (r *ClassifyRequest) toInput() *classification.ClassifyInput {
	input := &classification.ClassifyInput{
		Description: r.Description,
		SkipCache:   r.SkipCache,
	}
	if r.Attributes != nil {
		input.Attributes = &classification.AttributesInput{
			Material:                r.Attributes.Material,
			Use:                     r.Attributes.Use,
			Composition:             r.Attributes.Composition,
			Completeness:            r.Attributes.Completeness,
			PackagingSoldSeparately: r.Attributes.PackagingSoldSeparately,
		}
	}
	return input
}

// Classify handles POST /api/v1/classify.
func (h *ClassifyHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("malformed request body").WithCause(err))
		return
	}

	result, err := h.service.Classify(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Explain handles POST /api/v1/classify/explain.
func (h *ClassifyHandler) Explain(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("malformed request body").WithCause(err))
		return
	}

	explanation, err := h.service.Explain(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, explanation)
}

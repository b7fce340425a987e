package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appcatalog "github.com/aduanet/hs-classify/internal/application/catalog"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// CatalogHandler serves catalog browsing and ingest endpoints.
type CatalogHandler struct {
	service appcatalog.Service
}

// NewCatalogHandler wires a CatalogHandler.
func NewCatalogHandler(service appcatalog.Service) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// Chapters handles GET /api/v1/catalog/chapters.
func (h *CatalogHandler) Chapters(c *gin.Context) {
	chapters, err := h.service.Chapters(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapters": chapters})
}

// Get handles GET /api/v1/catalog/codes/:code.
func (h *CatalogHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Children handles GET /api/v1/catalog/codes/:code/children.
func (h *CatalogHandler) Children(c *gin.Context) {
	children, err := h.service.Children(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"children": children})
}

// Version handles GET /api/v1/catalog/version.
func (h *CatalogHandler) Version(c *gin.Context) {
	info, err := h.service.Version(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// IngestRequest is the request body for POST /catalog/ingest. An empty
// version ingests the latest published release.
type IngestRequest struct {
	Version string `json:"version,omitempty"`
}

// Ingest handles POST /api/v1/catalog/ingest.
func (h *CatalogHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errors.InvalidParam("malformed request body").WithCause(err))
			return
		}
	}

	info, err := h.service.Ingest(c.Request.Context(), req.Version)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

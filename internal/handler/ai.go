package handler

import (
	"net/http"
	"strconv"

	"ledger/internal/apperr"
	"ledger/internal/model"
	"ledger/internal/service"

	"github.com/gin-gonic/gin"
)

// AIHandler handles provider-catalog and connectivity-test requests
type AIHandler struct {
	catalog *service.Catalog
	prober  *service.Prober
}

// NewAIHandler creates a new AI catalog handler
func NewAIHandler(catalog *service.Catalog, prober *service.Prober) *AIHandler {
	return &AIHandler{catalog: catalog, prober: prober}
}

// ListProviders handles GET /api/ai/providers
func (h *AIHandler) ListProviders(c *gin.Context) {
	providers, err := h.catalog.ListProviders(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": providers})
}

// CreateProvider handles POST /api/ai/providers
func (h *AIHandler) CreateProvider(c *gin.Context) {
	var req model.CreateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	provider, err := h.catalog.CreateProvider(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": provider})
}

// UpdateProvider handles PATCH /api/ai/providers/:id
func (h *AIHandler) UpdateProvider(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid provider id"})
		return
	}

	var req model.UpdateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	provider, err := h.catalog.UpdateProvider(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": provider})
}

// CreateModel handles POST /api/ai/models
func (h *AIHandler) CreateModel(c *gin.Context) {
	var req model.CreateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	m, err := h.catalog.CreateModel(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": m})
}

// GetSettings handles GET /api/ai/settings
func (h *AIHandler) GetSettings(c *gin.Context) {
	settings, err := h.catalog.GetSettings(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

// SaveSettings handles PUT /api/ai/settings
func (h *AIHandler) SaveSettings(c *gin.Context) {
	var req model.SaveSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	settings, err := h.catalog.SaveSettings(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

// probeRequest is the connectivity-test payload
type probeRequest struct {
	ProviderID int64 `json:"provider_id"`
	ModelID    int64 `json:"model_id"`
}

// Probe handles POST /api/ai/test
func (h *AIHandler) Probe(c *gin.Context) {
	var req probeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.New(apperr.Validation, "provider_id and model_id required"))
		return
	}

	result, err := h.prober.Probe(c.Request.Context(), req.ProviderID, req.ModelID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

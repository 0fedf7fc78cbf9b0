package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/internal/apperr"
	"mailroom/internal/model"
	"mailroom/internal/service/labels"
)

type LabelHandler struct {
	registry *labels.Registry
	logger   *zap.Logger
}

func NewLabelHandler(registry *labels.Registry, logger *zap.Logger) *LabelHandler {
	return &LabelHandler{registry: registry, logger: logger}
}

// ListProviderLabels returns the mailbox's user-defined labels.
func (h *LabelHandler) ListProviderLabels(c *gin.Context) {
	providerLabels, err := h.registry.ListProviderLabels(c.Request.Context())
	if err != nil {
		if apperr.IsConfig(err) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("ListProviderLabels: failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list labels"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"labels": providerLabels})
}

// GetMapping returns the current semantic-to-provider mapping.
func (h *LabelHandler) GetMapping(c *gin.Context) {
	mapping, err := h.registry.GetMapping(c.Request.Context())
	if err != nil {
		h.logger.Error("GetMapping: failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load mapping"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mapping": mapping})
}

// SetMapping replaces the mapping with the submitted one.
func (h *LabelHandler) SetMapping(c *gin.Context) {
	var mapping model.LabelMapping
	if err := c.ShouldBindJSON(&mapping); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mapping body"})
		return
	}

	if err := h.registry.SetMapping(c.Request.Context(), mapping); err != nil {
		if apperr.IsConfig(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("SetMapping: failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store mapping"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mapping": mapping})
}

// AutoProvision creates provider labels for every unmapped semantic label.
func (h *LabelHandler) AutoProvision(c *gin.Context) {
	mapping, err := h.registry.AutoProvision(c.Request.Context())
	if err != nil {
		if apperr.IsConfig(err) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("AutoProvision: failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to provision labels"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mapping": mapping})
}

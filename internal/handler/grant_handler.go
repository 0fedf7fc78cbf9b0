package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/internal/apperr"
	"mailroom/internal/service/grants"
)

type GrantHandler struct {
	grants *grants.Service
	logger *zap.Logger
}

func NewGrantHandler(grants *grants.Service, logger *zap.Logger) *GrantHandler {
	return &GrantHandler{grants: grants, logger: logger}
}

// AuthURL returns the consent URL to grant the mailbox account.
func (h *GrantHandler) AuthURL(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"url": h.grants.AuthURL()})
}

type grantRequest struct {
	Code string `json:"code" binding:"required"`
}

// Grant redeems an authorization code and binds the mailbox account.
func (h *GrantHandler) Grant(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code required"})
		return
	}

	email, err := h.grants.Grant(c.Request.Context(), req.Code)
	if err != nil {
		if apperr.IsAuth(err) {
			h.logger.Warn("Grant: rejected", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Grant: failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "grant failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": email})
}

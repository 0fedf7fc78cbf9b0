package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/internal/apperr"
	sync "mailroom/internal/service/sync"
)

type SyncHandler struct {
	engine *sync.Engine
	logger *zap.Logger
}

func NewSyncHandler(engine *sync.Engine, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, logger: logger}
}

// Trigger runs a sync pass immediately instead of waiting for the scheduler.
func (h *SyncHandler) Trigger(c *gin.Context) {
	result, err := h.engine.RunPass(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrSyncInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case apperr.IsConfig(err):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Trigger: sync pass failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sync pass failed"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

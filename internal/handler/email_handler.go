package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/internal/repository"
)

type EmailHandler struct {
	repo   *repository.EmailRepository
	logger *zap.Logger
}

func NewEmailHandler(repo *repository.EmailRepository, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{repo: repo, logger: logger}
}

// ListEmails returns stored messages, newest first.
func (h *EmailHandler) ListEmails(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	emails, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("ListEmails: failed to fetch emails", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch emails"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"emails": emails})
}

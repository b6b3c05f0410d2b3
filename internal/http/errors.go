package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"account-service/internal/domain"
	"account-service/internal/service"
)

// writeError maps service failures to status codes. Unknown errors are logged and hidden.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, body := h.errorResponse(c, err)
	c.JSON(status, body)
}

func (h *Handler) abortWithError(c *gin.Context, err error) {
	status, body := h.errorResponse(c, err)
	c.AbortWithStatusJSON(status, body)
}

func (h *Handler) errorResponse(c *gin.Context, err error) (int, gin.H) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, gin.H{"error": domain.ErrConflict.Error()}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, gin.H{"error": domain.ErrInvalidCredentials.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": domain.ErrNotFound.Error()}
	case errors.Is(err, service.ErrArchiveDisabled):
		return http.StatusNotFound, gin.H{"error": service.ErrArchiveDisabled.Error()}
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("internal error")
		return http.StatusInternalServerError, gin.H{"error": "internal server error"}
	}
}

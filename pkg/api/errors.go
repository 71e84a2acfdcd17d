package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/praetorworks/praetor/pkg/services"
)

// mapServiceError writes the HTTP response for a service-layer error.
func (s *Server) mapServiceError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validErr.Error()})
		return
	}
	var deniedErr *services.DeniedError
	if errors.As(err, &deniedErr) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":        "request blocked",
			"abort_reason": deniedErr.Reason,
		})
		return
	}
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("unexpected service error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

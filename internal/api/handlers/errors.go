package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cimars/catalog/internal/models"
)

// respondError maps catalog errors to HTTP statuses. Anything unknown is a
// 500 and is logged with action for context.
func respondError(c *gin.Context, err error, action string) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, models.ErrInvalidIdentifier):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid identifier"})
	case errors.Is(err, models.ErrInvalidPage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
	case errors.Is(err, models.ErrInvalidLimit):
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
	default:
		_ = c.Error(err)
		slog.Error(action, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}

package handler

import (
	"errors"
	"net/http"
	"voice-relay/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// writeError maps a service failure onto the wire taxonomy. Unknown errors
// become a generic 500; the detail is logged, never sent to the client.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty file"})
	case errors.Is(err, service.ErrEmptyPatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No valid fields to update"})
	case errors.Is(err, service.ErrNotLinked):
		c.JSON(http.StatusBadRequest, gin.H{"error": "GitHub not linked"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Recording not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, service.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "GitHub OAuth not configured"})
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/telemed-api/pkg/errors"
)

// ErrorHandler is the safety net for errors attached via c.Error. Handlers
// normally respond directly; anything left over is logged and mapped to the
// wire error shape here.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("request error")
		}

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last().Err
		c.JSON(apperrors.HTTPStatus(lastErr), gin.H{"error": apperrors.Message(lastErr)})
	}
}

package handler

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/telemed-api/pkg/errors"
)

// Error writes the wire error shape {"error": "..."} with the status the
// taxonomy maps the error to.
func Error(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
}

// BindingError surfaces request validation failures verbatim.
func BindingError(c *gin.Context, err error) {
	Error(c, apperrors.Validation(err.Error()))
}

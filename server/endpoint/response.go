package endpoint

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/meshkit/errors"
)

// respondError derives the status and body from err through apperrors.From,
// so breaker, registry and client errors keep their own codes and anything
// else becomes a 500.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	c.JSON(appErr.HTTPStatus, appErr.ToResponse())
}

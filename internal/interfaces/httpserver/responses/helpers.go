package responses

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"jan-server/services/listen-api/internal/utils/platformerrors"
)

// HandleError writes err as an HTTP error response. Platform errors keep
// their type and reason; anything else becomes an internal error.
func HandleError(c *gin.Context, err error) {
	logger := log.With().Str("path", c.Request.URL.Path).Logger()
	platformerrors.WriteError(c, err, logger)
}

// HandleBindError writes a validation error for a request body that failed
// to bind.
func HandleBindError(c *gin.Context, err error) {
	if errors.Is(err, io.EOF) {
		platformerrors.WriteValidationError(c, "request body is required")
		return
	}
	platformerrors.WriteValidationError(c, err.Error())
}

// HandleNewError creates and writes a new typed error response.
// Use this for route-level errors like validation or authorization failures.
func HandleNewError(c *gin.Context, errorType platformerrors.ErrorType, message string) {
	platformerrors.WriteHTTPError(c, platformerrors.NewError(c.Request.Context(), platformerrors.LayerHandler, errorType, message, nil, ""), log.Logger)
}

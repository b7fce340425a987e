// Package handlers holds the gin HTTP handlers for the API surface.
package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aduanet/hs-classify/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// respondError maps application errors to HTTP status codes. Unknown
// error types are masked as internal errors.
func respondError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    string(errors.ErrCodeInternal),
			Message: "internal server error",
		})
		return
	}

	status := appErr.Code.HTTPStatus()
	body := ErrorResponse{
		Code:    string(appErr.Code),
		Message: appErr.Message,
	}
	if status < http.StatusInternalServerError {
		body.Detail = appErr.Detail
	}
	c.JSON(status, body)
}

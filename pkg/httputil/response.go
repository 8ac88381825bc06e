package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/exchange-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError maps an application error to its HTTP status. Policy
// outcomes never travel this path; only genuine failures do.
func RespondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	if appErr, ok := err.(*errors.AppError); ok {
		message = appErr.Message
		switch appErr.Code {
		case errors.ErrNotFound:
			status = http.StatusNotFound
		case errors.ErrValidation:
			status = http.StatusBadRequest
		case errors.ErrIllegalTransition:
			status = http.StatusConflict
		case errors.ErrUnauthorized:
			status = http.StatusUnauthorized
		case errors.ErrCircuitOpen, errors.ErrStoreUnavailable:
			status = http.StatusServiceUnavailable
		case errors.ErrTransientNetwork:
			status = http.StatusBadGateway
		case errors.ErrIntegrity:
			status = http.StatusBadGateway
		}
	}

	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    status,
			Message: message,
		},
	})
}

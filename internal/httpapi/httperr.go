package httpapi

import (
	"net/http"

	"github.com/Sternrassler/pickup-client/internal/errs"
	"github.com/Sternrassler/pickup-client/pkg/cart"
	"github.com/Sternrassler/pickup-client/pkg/remote"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Status int `json:"-"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
	Detail any `json:"detail,omitempty"`
}

// abortWithError records err on the context for the logging middleware and
// writes the error body.
func abortWithError(c *gin.Context, status int, err error, msg string, detail any) {
	if err == nil {
		panic("abortWithError: err cannot be nil")
	}

	resp := ErrorResponse{Status: status}
	resp.Error.Message = msg
	resp.Detail = detail

	_ = c.Error(gin.Error{
		Err:  err,
		Type: gin.ErrorTypePublic,
		Meta: resp,
	})
	c.AbortWithStatusJSON(status, resp)
}

// abortWithClass maps an error class to its HTTP status.
func abortWithClass(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	abortWithError(c, status, err, msg, nil)
}

func statusFor(err error) int {
	switch {
	case errs.Is(err, cart.ErrValidationFailed):
		return http.StatusBadRequest
	case errs.Is(err, cart.ErrNotFound), errs.Is(err, cart.ErrUnknownCommand), errs.Is(err, remote.ErrNotFound):
		return http.StatusNotFound
	case errs.Is(err, cart.ErrInvalidTransition), errs.Is(err, remote.ErrStatusConflict):
		return http.StatusConflict
	case errs.Is(err, cart.ErrRemoteWriteFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

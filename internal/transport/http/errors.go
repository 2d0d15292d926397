package http

import (
	"errors"
	"net/http"

	"github.com/Africahassucceed/celebsbridgenew/internal/errs"
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

type errorResponse struct {
	Status int       `json:"-"`
	Error  errorBody `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidTransition), errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError answers with the status err maps to and keeps err on the context for the request log.
// Storage details never reach the client.
func abortWithError(c *gin.Context, err error) {
	resp := errorResponse{Status: statusFor(err)}
	resp.Error.Message = err.Error()

	var ve *errs.ValidationError
	var te *errs.InvalidTransitionError
	switch {
	case errors.As(err, &ve):
		resp.Error.Field = ve.Field
	case errors.As(err, &te):
		resp.Error.From, resp.Error.To = te.From, te.To
	}
	if resp.Status == http.StatusInternalServerError {
		resp.Error.Message = "internal server error"
	}
	abort(c, err, resp)
}

// abortWithStatus is for transport-level failures that have no place in the error taxonomy.
func abortWithStatus(c *gin.Context, status int, err error, msg string) {
	resp := errorResponse{Status: status}
	resp.Error.Message = msg
	abort(c, err, resp)
}

func abort(c *gin.Context, err error, resp errorResponse) {
	_ = c.Error(gin.Error{Err: err, Type: gin.ErrorTypePublic, Meta: resp})
	c.AbortWithStatusJSON(resp.Status, resp)
}

func badRequest(c *gin.Context, field, reason string) {
	abortWithError(c, errs.Validation(field, reason))
}

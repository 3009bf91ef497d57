package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/validator"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error is the structured failure carried by every error response.
type Error struct {
	Kind    errors.Kind `json:"kind"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// RespondCreated sends a 201 success response
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// RespondWithError sends an error response. Errors that are not AppErrors
// are reported as internal and their detail stays in the log.
func RespondWithError(c *gin.Context, err error) {
	appErr := errors.From(err)
	status := appErr.HTTPStatus()

	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
	}

	c.AbortWithStatusJSON(status, Response{
		Status:  StatusError,
		Message: appErr.Message,
		Error: &Error{
			Kind:    appErr.Kind,
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	})
}

// RespondWithBindError reports a request body or query that failed to bind.
// A body cut off by the size limit is reported as too large.
func RespondWithBindError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		RespondWithError(c, errors.TooLarge(maxErr.Limit))
		return
	}
	RespondWithError(c, errors.BadRequest(validator.Message(err), err))
}

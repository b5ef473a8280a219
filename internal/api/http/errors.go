package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeSessionNotFound = "session_not_found"
	CodePtyOpen         = "pty_open"
	CodeSpawnFailure    = "spawn_failure"
	CodeIO              = "io"
	CodeInvalidSize     = "invalid_size"
	CodeBadRequest      = "bad_request"
	CodeInternal        = "internal"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps a terminal error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, terminal.ErrSessionNotFound):
		return http.StatusNotFound, CodeSessionNotFound
	case errors.Is(err, terminal.ErrInvalidSize):
		return http.StatusBadRequest, CodeInvalidSize
	case errors.Is(err, terminal.ErrInvalidSegment):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, terminal.ErrPtyOpen):
		return http.StatusInternalServerError, CodePtyOpen
	case errors.Is(err, terminal.ErrSpawnFailure):
		return http.StatusInternalServerError, CodeSpawnFailure
	case errors.Is(err, terminal.ErrIO):
		return http.StatusBadGateway, CodeIO
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func respondError(c *gin.Context, err error) {
	status, code := classify(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeBadRequest})
}

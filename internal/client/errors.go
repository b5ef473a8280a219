package client

import (
	"errors"
	"fmt"

	apihttp "github.com/GriffinCanCode/ptyd/internal/api/http"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

var (
	// ErrUnavailable is returned without contacting the daemon while the
	// client's circuit breaker is open.
	ErrUnavailable = errors.New("ptyd unavailable")
	// ErrStreamClosed is returned by Stream.Next once the server has closed
	// the stream.
	ErrStreamClosed = errors.New("stream closed")
)

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ptyd: HTTP %d", e.Status)
	}
	return fmt.Sprintf("ptyd: %s (%s)", e.Message, e.Code)
}

// Unwrap maps the error code back to the terminal error kind, so callers
// can use errors.Is(err, terminal.ErrSessionNotFound) across the wire.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case apihttp.CodeSessionNotFound:
		return terminal.ErrSessionNotFound
	case apihttp.CodePtyOpen:
		return terminal.ErrPtyOpen
	case apihttp.CodeSpawnFailure:
		return terminal.ErrSpawnFailure
	case apihttp.CodeIO:
		return terminal.ErrIO
	case apihttp.CodeInvalidSize:
		return terminal.ErrInvalidSize
	}
	return nil
}

// countsAsFailure reports whether err says something about the daemon's
// health rather than about the request.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// 502 is a PTY i/o failure on one session, not a sick daemon.
		return apiErr.Status >= 500 && apiErr.Status != 502
	}
	return true
}

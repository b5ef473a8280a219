package http

import (
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

// CreateResponse is returned by both create endpoints.
type CreateResponse struct {
	SegmentID string `json:"segment_id"`
	Created   bool   `json:"created"`
}

// SpawnRequest is the optional body of a spawn call.
type SpawnRequest = terminal.SpawnOptions

// WriteRequest carries input for the shell.
type WriteRequest struct {
	Data string `json:"data"`
}

// WriteResponse reports how much input was accepted.
type WriteResponse struct {
	SegmentID string `json:"segment_id"`
	Bytes     int    `json:"bytes"`
}

// ResizeRequest carries new terminal dimensions.
type ResizeRequest = terminal.Winsize

// ListResponse is returned by the list endpoint.
type ListResponse struct {
	Sessions []terminal.SessionInfo `json:"sessions"`
	Count    int                    `json:"count"`
}

// BufferResponse holds the replayable output of a session.
type BufferResponse struct {
	SegmentID string `json:"segment_id"`
	Data      string `json:"data"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status   string              `json:"status"`
	Sessions int                 `json:"sessions"`
	Metrics  monitoring.Snapshot `json:"metrics"`
}

package http

import (
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyd/internal/stream"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

// Handlers serves the terminal command surface.
type Handlers struct {
	registry *terminal.Registry
	hub      *stream.Hub
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewHandlers creates a handler set.
func NewHandlers(registry *terminal.Registry, hub *stream.Hub, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		registry: registry,
		hub:      hub,
		metrics:  metrics,
		logger:   logger.Named("http"),
	}
}

// Register mounts every terminal route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	t := r.Group("/terminals")
	t.GET("", h.ListTerminals)
	t.POST("", h.CreateTerminal)
	t.PUT("/:segment", RequireSegmentID, h.PutTerminal)
	t.GET("/:segment", RequireSegmentID, h.GetTerminal)
	t.DELETE("/:segment", RequireSegmentID, h.CloseTerminal)
	t.POST("/:segment/spawn", RequireSegmentID, h.SpawnTerminal)
	t.POST("/:segment/write", RequireSegmentID, h.WriteTerminal)
	t.POST("/:segment/resize", RequireSegmentID, h.ResizeTerminal)
	t.GET("/:segment/buffer", RequireSegmentID, h.GetBuffer)
}


// Health reports liveness with a metrics summary.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Sessions: h.registry.Len(),
		Metrics:  h.metrics.Snapshot(),
	})
}

// CreateTerminal opens a PTY under a generated segment id.
func (h *Handlers) CreateTerminal(c *gin.Context) {
	segmentID := uuid.NewString()
	if _, _, err := h.registry.Create(segmentID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateResponse{SegmentID: segmentID, Created: true})
}

// PutTerminal opens a PTY for a client-chosen segment id. Repeating the
// call returns the existing session.
func (h *Handlers) PutTerminal(c *gin.Context) {
	segmentID := c.Param("segment")
	_, created, err := h.registry.Create(segmentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, CreateResponse{SegmentID: segmentID, Created: created})
}

// GetTerminal returns one session's info.
func (h *Handlers) GetTerminal(c *gin.Context) {
	s, err := h.registry.Get(c.Param("segment"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// ListTerminals returns every session sorted by segment id.
func (h *Handlers) ListTerminals(c *gin.Context) {
	sessions := h.registry.List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].SegmentID < sessions[j].SegmentID
	})
	c.JSON(http.StatusOK, ListResponse{Sessions: sessions, Count: len(sessions)})
}

// SpawnTerminal launches the shell. The body is optional.
func (h *Handlers) SpawnTerminal(c *gin.Context) {
	segmentID := c.Param("segment")

	var req SpawnRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.registry.Get(segmentID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.Spawn(req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// WriteTerminal sends input to the shell.
func (h *Handlers) WriteTerminal(c *gin.Context) {
	segmentID := c.Param("segment")

	var req WriteRequest
	if err := bind(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.registry.Write(segmentID, []byte(req.Data)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, WriteResponse{SegmentID: segmentID, Bytes: len(req.Data)})
}

// ResizeTerminal changes the PTY dimensions.
func (h *Handlers) ResizeTerminal(c *gin.Context) {
	segmentID := c.Param("segment")

	var req ResizeRequest
	if err := bind(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.registry.Get(segmentID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.Resize(req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// CloseTerminal tears a session down. Unknown ids succeed too.
func (h *Handlers) CloseTerminal(c *gin.Context) {
	h.registry.Close(c.Param("segment"))
	c.Status(http.StatusNoContent)
}

// GetBuffer returns the replayable recent output.
func (h *Handlers) GetBuffer(c *gin.Context) {
	segmentID := c.Param("segment")
	s, err := h.registry.Get(segmentID)
	if err != nil {
		respondError(c, err)
		return
	}
	data, _ := h.hub.Snapshot(s.Source())
	c.JSON(http.StatusOK, BufferResponse{SegmentID: segmentID, Data: data})
}

func bind(c *gin.Context, v any) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodySize)
	return c.ShouldBindJSON(v)
}

// bindOptional is bind that accepts an empty body.
func bindOptional(c *gin.Context, v any) error {
	if err := bind(c, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

package ws

import (
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/ptyd/internal/api/http"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyd/internal/stream"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

// Config tunes connection keepalive.
type Config struct {
	// PingInterval is how often the server pings; must be below PongWait.
	PingInterval time.Duration
	// PongWait is how long the connection may stay silent.
	PongWait time.Duration
	// WriteWait bounds a single frame write.
	WriteWait time.Duration
	// MaxMessageSize bounds client frames.
	MaxMessageSize int64
	// CloseGrace is how long to wait for the client's close reply.
	CloseGrace time.Duration
}

// DefaultConfig returns the keepalive settings used by the server.
func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 1 << 20,
		CloseGrace:     time.Second,
	}
}

// Handler streams one segment's events over a websocket and accepts input
// and resize frames.
type Handler struct {
	registry *terminal.Registry
	hub      *stream.Hub
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	cfg      Config
	upgrader websocket.Upgrader
}

// NewHandler creates a stream handler. checkOrigin may be nil to accept
// every origin.
func NewHandler(registry *terminal.Registry, hub *stream.Hub, metrics *monitoring.Metrics, logger *zap.Logger, checkOrigin func(*http.Request) bool) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		registry: registry,
		hub:      hub,
		metrics:  metrics,
		logger:   logger.Named("ws"),
		cfg:      DefaultConfig(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// WithConfig overrides keepalive settings.
func (h *Handler) WithConfig(cfg Config) *Handler {
	h.cfg = cfg
	return h
}

// Register mounts the stream route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/terminals/:segment/stream", apihttp.RequireSegmentID, h.Stream)
}

// Stream upgrades the request and serves the segment until the shell ends,
// the session is closed or the client goes away.
func (h *Handler) Stream(c *gin.Context) {
	segmentID := c.Param("segment")
	sess, err := h.registry.Get(segmentID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, apihttp.ErrorResponse{
			Error: err.Error(),
			Code:  apihttp.CodeSessionNotFound,
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", logging.Segment(segmentID), zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(sess.Source())
	defer sub.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	log := h.logger.With(logging.Segment(segmentID), logging.Subscriber(sub.ID))
	log.Info("Stream connected", zap.String("remote", c.ClientIP()))

	// The session may have been closed, or replaced, between the lookup and
	// Subscribe.
	if cur, err := h.registry.Get(segmentID); err != nil || cur != sess {
		h.closeWith(conn, websocket.CloseNormalClosure, ReasonSessionClosed)
		return
	}

	sc := &connection{
		Handler:    h,
		conn:       conn,
		segment:    segmentID,
		sub:        sub,
		log:        log,
		replies:    make(chan stream.Event, 16),
		readDone:   make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	go func() {
		defer close(sc.writerDone)
		sc.writeLoop()
		// Stop the reader soon if the client never answers.
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.CloseGrace))
	}()

	sc.readLoop()
	close(sc.readDone)
	<-sc.writerDone
	log.Info("Stream disconnected")
}

func (h *Handler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.cfg.WriteWait))
}

// connection is the state of one upgraded stream.
type connection struct {
	*Handler
	conn    *websocket.Conn
	segment string
	sub     *stream.Subscription
	log     *zap.Logger

	// replies carries frames produced by the read loop; only writeLoop
	// touches the socket for writing.
	replies    chan stream.Event
	readDone   chan struct{}
	writerDone chan struct{}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	if c.sub.Replay != "" {
		replay := stream.Event{
			Type:      stream.EventOutput,
			SegmentID: c.segment,
			Data:      c.sub.Replay,
			Seq:       c.sub.Seq,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := c.write(replay); err != nil {
			return
		}
	}

	for {
		select {
		case ev, ok := <-c.sub.Events():
			if !ok {
				c.finish(c.sub.Err())
				return
			}
			if err := c.write(ev); err != nil {
				return
			}
			if ev.Terminal() {
				c.finish(nil)
				return
			}

		case ev := <-c.replies:
			if err := c.write(ev); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}

		case <-c.readDone:
			return
		}
	}
}

// finish sends the close frame that matches why the stream ended.
func (c *connection) finish(reason error) {
	code, text := websocket.CloseNormalClosure, ReasonShellExited
	switch {
	case errors.Is(reason, stream.ErrSlowConsumer):
		code, text = websocket.ClosePolicyViolation, ReasonSlowConsumer
	case errors.Is(reason, stream.ErrReleased):
		text = ReasonSessionClosed
	}
	c.closeWith(c.conn, code, text)
}

func (c *connection) write(ev stream.Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		c.log.Error("Failed to encode event", zap.Error(err))
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug("Stream write failed", zap.Error(err))
		return err
	}
	c.metrics.RecordWSMessage("out", string(ev.Type))
	return nil
}

func (c *connection) readLoop() {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("Stream read ended", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

		var msg ClientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			c.reply(c.errorEvent("invalid message: " + err.Error()))
			continue
		}
		c.metrics.RecordWSMessage("in", msg.Type)
		c.dispatch(msg)
	}
}

func (c *connection) dispatch(msg ClientMessage) {
	switch msg.Type {
	case MessageInput:
		if err := c.registry.Write(c.segment, []byte(msg.Data)); err != nil {
			c.reply(c.errorEvent(err.Error()))
		}
	case MessageResize:
		if err := c.registry.Resize(c.segment, terminal.Winsize{Rows: msg.Rows, Cols: msg.Cols}); err != nil {
			c.reply(c.errorEvent(err.Error()))
		}
	case MessagePing:
		c.reply(stream.Event{Type: EventPong, SegmentID: c.segment, Timestamp: time.Now().UnixMilli()})
	default:
		c.reply(c.errorEvent("unknown message type: " + msg.Type))
	}
}

// reply queues a frame for the writer unless the writer is gone.
func (c *connection) reply(ev stream.Event) {
	select {
	case c.replies <- ev:
	case <-c.writerDone:
	}
}

func (c *connection) errorEvent(msg string) stream.Event {
	return stream.Event{
		Type:      stream.EventError,
		SegmentID: c.segment,
		Message:   msg,
		Timestamp: time.Now().UnixMilli(),
	}
}

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	apihttp "github.com/GriffinCanCode/ptyd/internal/api/http"
	"github.com/GriffinCanCode/ptyd/internal/api/ws"
	"github.com/GriffinCanCode/ptyd/internal/stream"
)

const writeWait = 10 * time.Second

// Stream is an attached websocket event stream for one segment.
type Stream struct {
	SegmentID string

	conn *websocket.Conn

	// gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// Attach opens the event stream for segmentID. The first event carries the
// segment's replayable output, if any.
func (c *Client) Attach(ctx context.Context, segmentID string) (*Stream, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += segmentPath(segmentID, "stream")

	header := http.Header{}
	header.Set("User-Agent", "ptyctl/1.0")

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			apiErr := &APIError{Status: resp.StatusCode}
			if resp.StatusCode == http.StatusNotFound {
				apiErr.Code = apihttp.CodeSessionNotFound
				apiErr.Message = "terminal session not found"
			}
			return nil, apiErr
		}
		return nil, fmt.Errorf("attach %s: %w", segmentID, err)
	}
	return &Stream{SegmentID: segmentID, conn: conn}, nil
}

// Next blocks for the next event. After the server closes the stream it
// returns an error wrapping ErrStreamClosed whose text carries the reason.
func (s *Stream) Next() (stream.Event, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return stream.Event{}, fmt.Errorf("%w: %s", ErrStreamClosed, ce.Text)
		}
		return stream.Event{}, err
	}
	var ev stream.Event
	if err := sonic.Unmarshal(data, &ev); err != nil {
		return stream.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// Input sends data to the shell.
func (s *Stream) Input(data string) error {
	return s.send(ws.ClientMessage{Type: ws.MessageInput, Data: data})
}

// Resize changes the terminal dimensions.
func (s *Stream) Resize(rows, cols uint16) error {
	return s.send(ws.ClientMessage{Type: ws.MessageResize, Rows: rows, Cols: cols})
}

// Ping asks the server for a pong event.
func (s *Stream) Ping() error {
	return s.send(ws.ClientMessage{Type: ws.MessagePing})
}

func (s *Stream) send(msg ws.ClientMessage) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close detaches from the stream. The session keeps running.
func (s *Stream) Close() error {
	s.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return s.conn.Close()
}

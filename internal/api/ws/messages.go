package ws

import "github.com/GriffinCanCode/ptyd/internal/stream"

// Client frame types.
const (
	MessageInput  = "input"
	MessageResize = "resize"
	MessagePing   = "ping"
)

// EventPong answers a client ping frame.
const EventPong stream.EventType = "pong"

// ClientMessage is a frame sent by the client.
type ClientMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
}

// Close reasons sent with the final close frame.
const (
	ReasonShellExited   = "shell exited"
	ReasonSessionClosed = "session closed"
	ReasonSlowConsumer  = "consumer too slow"
)

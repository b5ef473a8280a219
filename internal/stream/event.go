package stream

import "time"

// EventType discriminates stream events.
type EventType string

const (
	EventOutput EventType = "output"
	EventExit   EventType = "exit"
	EventError  EventType = "error"
)

// Event is one message on a segment's stream. Seq increases by one per
// event within a segment.
type Event struct {
	Type      EventType `json:"type"`
	SegmentID string    `json:"segment_id"`
	Data      string    `json:"data,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Message   string    `json:"message,omitempty"`
	Seq       uint64    `json:"seq"`
	Timestamp int64     `json:"timestamp"`
}

// Terminal reports whether no event can follow e on its segment.
func (e Event) Terminal() bool {
	return e.Type == EventExit || e.Type == EventError
}

func newEvent(typ EventType, segmentID string) Event {
	return Event{
		Type:      typ,
		SegmentID: segmentID,
		Timestamp: time.Now().UnixMilli(),
	}
}

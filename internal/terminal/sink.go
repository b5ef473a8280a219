package terminal

// Source identifies the session that produced an event. Segment ids are
// reused after close, so Generation tells one incarnation from the next; a
// later session always carries a larger generation.
type Source struct {
	SegmentID  string
	Generation uint64
}

// Sink receives everything a session's output pump produces. Calls for one
// source arrive from a single goroutine in read order. Implementations must
// return quickly; a slow sink stalls the shell behind it.
type Sink interface {
	// Output delivers a chunk of shell output as valid UTF-8.
	Output(src Source, chunk string)
	// Exit reports that the shell ended. code is -1 when unknown.
	Exit(src Source, code int)
	// Error reports a failure that ended the stream.
	Error(src Source, message string)
}

// Releaser is implemented by sinks that keep per-segment state. The registry
// calls Release after a session has been closed and its pump has stopped.
// Calls may arrive after a newer session on the same segment id has started
// producing output; implementations must ignore sources older than the state
// they hold.
type Releaser interface {
	Release(src Source)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Output(Source, string) {}
func (NopSink) Exit(Source, int)      {}
func (NopSink) Error(Source, string)  {}

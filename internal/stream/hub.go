package stream

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyd/internal/shared/id"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

// Reasons a subscription ends other than its owner closing it.
var (
	ErrSlowConsumer = errors.New("consumer too slow")
	ErrReleased     = errors.New("session closed")
)

const (
	DefaultReplayBytes = 256 * 1024
	DefaultQueueSize   = 256
)

// Options sizes the per-segment buffers.
type Options struct {
	// ReplayBytes is the capacity of each segment's replay ring.
	ReplayBytes int
	// QueueSize is the number of events a subscriber may fall behind by
	// before it is evicted.
	QueueSize int
}

func (o Options) withDefaults() Options {
	if o.ReplayBytes <= 0 {
		o.ReplayBytes = DefaultReplayBytes
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	return o
}

// Hub routes session output to subscribers. It implements terminal.Sink and
// terminal.Releaser.
type Hub struct {
	mu       sync.Mutex
	segments map[string]*segment

	opts    Options
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

type segment struct {
	id  string
	gen uint64

	mu       sync.Mutex
	ring     *Ring
	seq      uint64
	final    *Event
	subs     map[id.SubscriberID]*Subscription
	released bool
}

// NewHub creates an empty hub.
func NewHub(opts Options, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		segments: make(map[string]*segment),
		opts:     opts.withDefaults(),
		logger:   logger.Named("stream"),
	}
}

// WithMetrics attaches a metrics collector.
func (h *Hub) WithMetrics(m *monitoring.Metrics) *Hub {
	h.metrics = m
	return h
}

// lock returns the live segment for src with its lock held, creating it if
// needed. A segment left by an older session on the same id is released and
// replaced. It returns nil when src is older than the segment the hub holds.
func (h *Hub) lock(src terminal.Source) *segment {
	for {
		var stale *segment

		h.mu.Lock()
		seg, ok := h.segments[src.SegmentID]
		switch {
		case ok && seg.gen > src.Generation:
			h.mu.Unlock()
			h.metrics.EventDropped("stale_session")
			return nil
		case ok && seg.gen < src.Generation:
			stale = seg
			ok = false
		}
		if !ok {
			seg = &segment{
				id:   src.SegmentID,
				gen:  src.Generation,
				ring: NewRing(h.opts.ReplayBytes),
				subs: make(map[id.SubscriberID]*Subscription),
			}
			h.segments[src.SegmentID] = seg
		}
		h.mu.Unlock()

		if stale != nil {
			h.retire(stale)
		}

		seg.mu.Lock()
		if !seg.released {
			return seg
		}
		// Released between lookup and lock; the map no longer holds it.
		seg.mu.Unlock()
	}
}

// Output appends chunk to the replay ring and delivers it to subscribers.
func (h *Hub) Output(src terminal.Source, chunk string) {
	seg := h.lock(src)
	if seg == nil {
		return
	}
	defer seg.mu.Unlock()

	seg.ring.WriteString(chunk)
	ev := newEvent(EventOutput, src.SegmentID)
	ev.Data = chunk
	h.publish(seg, ev)
}

// Exit records and delivers the shell's exit.
func (h *Hub) Exit(src terminal.Source, code int) {
	seg := h.lock(src)
	if seg == nil {
		return
	}
	defer seg.mu.Unlock()

	ev := newEvent(EventExit, src.SegmentID)
	ev.ExitCode = &code
	h.publish(seg, ev)
}

// Error records and delivers a stream failure.
func (h *Hub) Error(src terminal.Source, message string) {
	seg := h.lock(src)
	if seg == nil {
		return
	}
	defer seg.mu.Unlock()

	ev := newEvent(EventError, src.SegmentID)
	ev.Message = message
	h.publish(seg, ev)
}

// publish assigns the next sequence number and fans ev out. seg.mu is held.
func (h *Hub) publish(seg *segment, ev Event) {
	seg.seq++
	ev.Seq = seg.seq
	if ev.Terminal() {
		final := ev
		seg.final = &final
	}

	for _, sub := range seg.subs {
		select {
		case sub.events <- ev:
		default:
			h.metrics.EventDropped("slow_consumer")
			h.logger.Warn("Evicting slow stream subscriber",
				logging.Segment(seg.id),
				logging.Subscriber(sub.ID),
				zap.Int("queue_size", cap(sub.events)),
			)
			seg.end(sub, ErrSlowConsumer)
		}
	}
}

// Subscribe registers a subscriber on src. The returned Replay holds the
// buffered output up to the moment of subscription; Events delivers
// everything published afterwards, with no gap and no overlap. If the shell
// has already ended, its exit or error event is queued immediately. A source
// older than the hub's state yields a subscription that has already ended
// with ErrReleased.
func (h *Hub) Subscribe(src terminal.Source) *Subscription {
	sub := &Subscription{
		ID:        id.NewSubscriberID(),
		SegmentID: src.SegmentID,
		events:    make(chan Event, h.opts.QueueSize),
		hub:       h,
	}

	seg := h.lock(src)
	if seg == nil {
		sub.seg = &segment{id: src.SegmentID, gen: src.Generation, released: true}
		sub.err = ErrReleased
		close(sub.events)
		return sub
	}
	defer seg.mu.Unlock()

	sub.Replay = seg.ring.String()
	sub.Seq = seg.seq
	sub.seg = seg
	seg.subs[sub.ID] = sub
	if seg.final != nil {
		sub.events <- *seg.final
	}

	h.logger.Debug("Stream subscriber added",
		logging.Segment(src.SegmentID),
		logging.Generation(src.Generation),
		logging.Subscriber(sub.ID),
		zap.Int("replay_bytes", len(sub.Replay)),
	)
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	seg := sub.seg
	seg.mu.Lock()
	defer seg.mu.Unlock()

	if _, ok := seg.subs[sub.ID]; !ok {
		return
	}
	seg.end(sub, nil)

	// Drop segments that only ever existed because of a subscriber, so
	// subscribing to an id that never produced output does not leak.
	if len(seg.subs) == 0 && seg.seq == 0 && !seg.released {
		h.mu.Lock()
		if h.segments[seg.id] == seg {
			delete(h.segments, seg.id)
		}
		h.mu.Unlock()
		seg.released = true
	}
}

// Release discards the replay ring of src and ends every subscription with
// ErrReleased. Events already queued are still delivered. Releasing a source
// older than the state the hub holds for its id does nothing.
func (h *Hub) Release(src terminal.Source) {
	h.mu.Lock()
	seg, ok := h.segments[src.SegmentID]
	if ok && seg.gen <= src.Generation {
		delete(h.segments, src.SegmentID)
	} else {
		ok = false
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	h.retire(seg)
}

// retire ends a segment that is no longer in the map.
func (h *Hub) retire(seg *segment) {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	if seg.released {
		return
	}
	seg.released = true
	seg.ring.Reset()
	for _, sub := range seg.subs {
		seg.end(sub, ErrReleased)
	}
	h.logger.Debug("Stream released",
		logging.Segment(seg.id),
		logging.Generation(seg.gen),
	)
}

// Snapshot returns the replay text of src. ok is false when the hub holds
// nothing for that session.
func (h *Hub) Snapshot(src terminal.Source) (text string, ok bool) {
	h.mu.Lock()
	seg, ok := h.segments[src.SegmentID]
	h.mu.Unlock()
	if !ok || seg.gen != src.Generation {
		return "", false
	}

	seg.mu.Lock()
	defer seg.mu.Unlock()
	if seg.released {
		return "", false
	}
	return seg.ring.String(), true
}

// Subscribers returns the number of live subscribers on segmentID.
func (h *Hub) Subscribers(segmentID string) int {
	h.mu.Lock()
	seg, ok := h.segments[segmentID]
	h.mu.Unlock()
	if !ok {
		return 0
	}

	seg.mu.Lock()
	defer seg.mu.Unlock()
	return len(seg.subs)
}

// end removes sub and closes its queue. seg.mu is held.
func (seg *segment) end(sub *Subscription, reason error) {
	delete(seg.subs, sub.ID)
	sub.err = reason
	close(sub.events)
}

// Subscription is one consumer of a segment's events.
type Subscription struct {
	ID        id.SubscriberID
	SegmentID string
	// Replay is the output buffered before the subscription started.
	Replay string
	// Seq is the sequence number of the last event covered by Replay.
	Seq uint64

	events chan Event
	err    error
	hub    *Hub
	seg    *segment
}

// Events returns the event queue. It is closed when the subscription ends;
// Err then tells why.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Err returns ErrSlowConsumer or ErrReleased once the hub has ended the
// subscription, and nil while it is live or after Close.
func (s *Subscription) Err() error {
	s.seg.mu.Lock()
	defer s.seg.mu.Unlock()
	return s.err
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

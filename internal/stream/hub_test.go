package stream

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

var (
	_ terminal.Sink     = (*Hub)(nil)
	_ terminal.Releaser = (*Hub)(nil)
)

// src is the first incarnation of a segment.
func src(segmentID string) terminal.Source {
	return terminal.Source{SegmentID: segmentID, Generation: 1}
}

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription ended unexpectedly: %v", sub.Err())
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func drained(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case _, ok := <-sub.Events():
		require.False(t, ok, "expected closed queue")
	case <-time.After(time.Second):
		t.Fatal("queue not closed")
	}
}

func TestReplayThenLive(t *testing.T) {
	hub := NewHub(Options{}, nil)

	hub.Output(src("seg"), "one ")
	hub.Output(src("seg"), "two ")

	sub := hub.Subscribe(src("seg"))
	defer sub.Close()
	assert.Equal(t, "one two ", sub.Replay)
	assert.Equal(t, uint64(2), sub.Seq)

	hub.Output(src("seg"), "three")
	ev := recv(t, sub)
	assert.Equal(t, EventOutput, ev.Type)
	assert.Equal(t, "seg", ev.SegmentID)
	assert.Equal(t, "three", ev.Data)
	assert.Equal(t, uint64(3), ev.Seq)
	assert.NotZero(t, ev.Timestamp)

	text, ok := hub.Snapshot(src("seg"))
	require.True(t, ok)
	assert.Equal(t, "one two three", text)
}

func TestOrderingPerSubscriber(t *testing.T) {
	hub := NewHub(Options{QueueSize: 1000}, nil)
	a := hub.Subscribe(src("seg"))
	b := hub.Subscribe(src("seg"))
	defer a.Close()
	defer b.Close()

	for i := 0; i < 500; i++ {
		hub.Output(src("seg"), fmt.Sprintf("%d,", i))
	}

	for _, sub := range []*Subscription{a, b} {
		for i := 0; i < 500; i++ {
			ev := recv(t, sub)
			assert.Equal(t, fmt.Sprintf("%d,", i), ev.Data)
			assert.Equal(t, uint64(i+1), ev.Seq)
		}
	}
}

func TestSegmentsAreIsolated(t *testing.T) {
	hub := NewHub(Options{}, nil)
	a := hub.Subscribe(src("a"))
	defer a.Close()

	hub.Output(src("b"), "for b")
	hub.Output(src("a"), "for a")

	ev := recv(t, a)
	assert.Equal(t, "for a", ev.Data)
	assert.Equal(t, uint64(1), ev.Seq)

	text, _ := hub.Snapshot(src("b"))
	assert.Equal(t, "for b", text)
}

func TestExitIsDeliveredToLateSubscribers(t *testing.T) {
	hub := NewHub(Options{}, nil)
	hub.Output(src("seg"), "bye\r\n")
	hub.Exit(src("seg"), 3)

	sub := hub.Subscribe(src("seg"))
	defer sub.Close()
	assert.Equal(t, "bye\r\n", sub.Replay)

	ev := recv(t, sub)
	assert.Equal(t, EventExit, ev.Type)
	require.NotNil(t, ev.ExitCode)
	assert.Equal(t, 3, *ev.ExitCode)
	assert.True(t, ev.Terminal())
}

func TestErrorEvent(t *testing.T) {
	hub := NewHub(Options{}, nil)
	sub := hub.Subscribe(src("seg"))
	defer sub.Close()

	hub.Error(src("seg"), "pty read error: boom")
	ev := recv(t, sub)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, "pty read error: boom", ev.Message)
	assert.Nil(t, ev.ExitCode)
}

func TestSlowSubscriberIsEvicted(t *testing.T) {
	metrics := monitoring.NewMetrics()
	hub := NewHub(Options{QueueSize: 2}, nil).WithMetrics(metrics)

	slow := hub.Subscribe(src("seg"))
	fast := hub.Subscribe(src("seg"))
	defer fast.Close()

	for i := 0; i < 5; i++ {
		hub.Output(src("seg"), "x")
		recv(t, fast)
	}

	// The slow queue holds two events, then the subscriber is dropped.
	recv(t, slow)
	recv(t, slow)
	drained(t, slow)
	assert.ErrorIs(t, slow.Err(), ErrSlowConsumer)

	assert.Equal(t, 1, hub.Subscribers("seg"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EventsDropped.WithLabelValues("slow_consumer")))

	// The ring is unaffected by the eviction.
	text, _ := hub.Snapshot(src("seg"))
	assert.Equal(t, "xxxxx", text)
}

func TestReleaseEndsSubscriptions(t *testing.T) {
	hub := NewHub(Options{}, nil)
	sub := hub.Subscribe(src("seg"))
	hub.Output(src("seg"), "queued")

	hub.Release(src("seg"))

	// Already queued events survive the release.
	ev := recv(t, sub)
	assert.Equal(t, "queued", ev.Data)
	drained(t, sub)
	assert.ErrorIs(t, sub.Err(), ErrReleased)

	_, ok := hub.Snapshot(src("seg"))
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers("seg"))

	// Close after release is harmless.
	sub.Close()
	hub.Release(src("seg"))
}

func TestReleaseStartsFresh(t *testing.T) {
	hub := NewHub(Options{}, nil)
	hub.Output(src("seg"), "old")
	hub.Exit(src("seg"), 0)
	hub.Release(src("seg"))

	next := terminal.Source{SegmentID: "seg", Generation: 2}
	hub.Output(next, "new")
	sub := hub.Subscribe(next)
	defer sub.Close()

	assert.Equal(t, "new", sub.Replay)
	assert.Equal(t, uint64(1), sub.Seq)
}

func TestStaleGenerationIsIgnored(t *testing.T) {
	metrics := monitoring.NewMetrics()
	hub := NewHub(Options{}, nil).WithMetrics(metrics)
	old := src("seg")
	next := terminal.Source{SegmentID: "seg", Generation: 2}

	sub := hub.Subscribe(next)
	defer sub.Close()
	hub.Output(next, "prompt$ ")

	// Late events and the release of the closed session arrive after its
	// successor has started.
	hub.Output(old, "old")
	hub.Exit(old, 0)
	hub.Release(old)

	ev := recv(t, sub)
	assert.Equal(t, "prompt$ ", ev.Data)
	select {
	case ev, ok := <-sub.Events():
		t.Fatalf("unexpected event %+v (open=%v)", ev, ok)
	default:
	}
	assert.NoError(t, sub.Err())

	text, ok := hub.Snapshot(next)
	require.True(t, ok)
	assert.Equal(t, "prompt$ ", text)
	_, ok = hub.Snapshot(old)
	assert.False(t, ok)
	assert.Equal(t, 1, hub.Subscribers("seg"))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.EventsDropped.WithLabelValues("stale_session")))
}

func TestNewerGenerationSupersedes(t *testing.T) {
	hub := NewHub(Options{}, nil)
	old := src("seg")
	next := terminal.Source{SegmentID: "seg", Generation: 2}

	oldSub := hub.Subscribe(old)
	hub.Output(old, "old")
	recv(t, oldSub)

	// The successor starts before the old session has been released.
	hub.Output(next, "new")

	drained(t, oldSub)
	assert.ErrorIs(t, oldSub.Err(), ErrReleased)

	sub := hub.Subscribe(next)
	defer sub.Close()
	assert.Equal(t, "new", sub.Replay)
	assert.Equal(t, uint64(1), sub.Seq)
}

func TestSubscribeWithStaleGeneration(t *testing.T) {
	hub := NewHub(Options{}, nil)
	hub.Output(terminal.Source{SegmentID: "seg", Generation: 3}, "current")

	sub := hub.Subscribe(src("seg"))
	drained(t, sub)
	assert.ErrorIs(t, sub.Err(), ErrReleased)
	assert.Empty(t, sub.Replay)
	sub.Close()

	assert.Equal(t, 0, hub.Subscribers("seg"))
}

func TestCloseSubscription(t *testing.T) {
	hub := NewHub(Options{}, nil)
	hub.Output(src("seg"), "x")
	sub := hub.Subscribe(src("seg"))
	assert.Equal(t, 1, hub.Subscribers("seg"))

	sub.Close()
	sub.Close()
	drained(t, sub)
	assert.NoError(t, sub.Err())
	assert.Equal(t, 0, hub.Subscribers("seg"))

	// Output history remains for the next subscriber.
	text, ok := hub.Snapshot(src("seg"))
	assert.True(t, ok)
	assert.Equal(t, "x", text)
}

func TestSubscribeWithoutOutputDoesNotLeak(t *testing.T) {
	hub := NewHub(Options{}, nil)
	sub := hub.Subscribe(src("ghost"))
	sub.Close()

	_, ok := hub.Snapshot(src("ghost"))
	assert.False(t, ok)
}

func TestReplayIsBounded(t *testing.T) {
	hub := NewHub(Options{ReplayBytes: 8}, nil)
	hub.Output(src("seg"), "0123456789")
	hub.Output(src("seg"), "ab")

	text, ok := hub.Snapshot(src("seg"))
	require.True(t, ok)
	assert.Equal(t, "456789ab", text)
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	hub := NewHub(Options{QueueSize: 10000}, nil)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			hub.Output(src("seg"), "y")
		}
	}()

	// Replay plus live events must always add up to the full output.
	sub := hub.Subscribe(src("seg"))
	defer sub.Close()
	<-done

	got := len(sub.Replay)
	for got < 2000 {
		ev := recv(t, sub)
		assert.Equal(t, sub.Seq+uint64(got-len(sub.Replay))+1, ev.Seq)
		got += len(ev.Data)
	}
	assert.Equal(t, 2000, got)
}

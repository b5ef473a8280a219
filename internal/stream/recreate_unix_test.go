//go:build !windows

package stream

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

// heldHub parks the first output call until release is closed.
type heldHub struct {
	*Hub
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (h *heldHub) Output(src terminal.Source, chunk string) {
	h.once.Do(func() {
		close(h.entered)
		<-h.release
	})
	h.Hub.Output(src, chunk)
}

func TestRecreatedSegmentDoesNotSeeOldSession(t *testing.T) {
	hub := &heldHub{
		Hub:     NewHub(Options{}, nil),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	reg := terminal.NewRegistry(terminal.Options{
		DefaultShell: "/bin/sh",
		KillGrace:    200 * time.Millisecond,
	}, hub, nil)
	t.Cleanup(reg.CloseAll)

	old, _, err := reg.Create("x")
	require.NoError(t, err)
	require.NoError(t, reg.Spawn("x", terminal.SpawnOptions{Shell: "/bin/sh", Args: []string{"-c", "printf old; sleep 30"}}))
	select {
	case <-hub.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("old shell produced no output")
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		reg.Close("x")
	}()
	require.Eventually(t, func() bool { return reg.Len() == 0 }, 5*time.Second, 5*time.Millisecond)

	next, created, err := reg.Create("x")
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, reg.Spawn("x", terminal.SpawnOptions{Shell: "/bin/sh", Args: []string{"-c", "printf new; sleep 30"}}))
	require.NotEqual(t, old.Source(), next.Source())

	sub := hub.Subscribe(next.Source())
	defer sub.Close()

	close(hub.release)
	select {
	case <-closed:
	case <-time.After(10 * time.Second):
		t.Fatal("close did not finish")
	}

	var seen strings.Builder
	seen.WriteString(sub.Replay)
	deadline := time.After(5 * time.Second)
	for !strings.Contains(seen.String(), "new") {
		select {
		case ev, ok := <-sub.Events():
			require.True(t, ok, "subscription ended: %v", sub.Err())
			seen.WriteString(ev.Data)
		case <-deadline:
			t.Fatalf("new output never arrived; got %q", seen.String())
		}
	}

	assert.NotContains(t, seen.String(), "old")
	assert.NoError(t, sub.Err())
	assert.Equal(t, 1, hub.Subscribers("x"))

	text, ok := hub.Snapshot(next.Source())
	require.True(t, ok)
	assert.NotContains(t, text, "old")

	live, err := reg.Get("x")
	require.NoError(t, err)
	assert.Same(t, next, live)
}

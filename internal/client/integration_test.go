//go:build !windows

package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/config"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/server"
	"github.com/GriffinCanCode/ptyd/internal/stream"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

func startDaemon(t *testing.T) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Terminal.DefaultShell = "/bin/sh"
	cfg.RateLimit.Enabled = false

	srv := server.NewWithLogger(cfg, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})

	c, err := New(Config{BaseURL: ts.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

// readOutput reads events until the accumulated output contains want.
func readOutput(t *testing.T, st *Stream, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	_ = st.conn.SetReadDeadline(deadline)

	var out strings.Builder
	for !strings.Contains(out.String(), want) {
		ev, err := st.Next()
		require.NoError(t, err, "output so far: %q", out.String())
		if ev.Type == stream.EventOutput {
			out.WriteString(ev.Data)
		}
	}
}

func TestSessionLifecycleOverTheWire(t *testing.T) {
	c := startDaemon(t)
	ctx := context.Background()

	require.NoError(t, c.WaitHealthy(ctx, 3))

	created, err := c.Open(ctx, "wire")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.Open(ctx, "wire")
	require.NoError(t, err)
	assert.False(t, created)

	info, err := c.Spawn(ctx, "wire", terminal.SpawnOptions{Shell: "/bin/sh"})
	require.NoError(t, err)
	assert.Equal(t, terminal.StateRunning, info.State)
	assert.NotZero(t, info.PID)

	st, err := c.Attach(ctx, "wire")
	require.NoError(t, err)
	defer st.Close()

	n, err := c.Write(ctx, "wire", "echo \"over\"\"rest\"\n")
	require.NoError(t, err)
	assert.Equal(t, len("echo \"over\"\"rest\"\n"), n)
	readOutput(t, st, "overrest")

	require.NoError(t, st.Input("echo \"over\"\"ws\"\n"))
	readOutput(t, st, "overws")

	info, err = c.Resize(ctx, "wire", 30, 90)
	require.NoError(t, err)
	assert.Equal(t, uint16(30), info.Rows)
	assert.Equal(t, uint16(90), info.Cols)

	buf, err := c.Buffer(ctx, "wire")
	require.NoError(t, err)
	assert.Contains(t, buf, "overrest")

	sessions, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "wire", sessions[0].SegmentID)

	require.NoError(t, c.Close(ctx, "wire"))
	require.NoError(t, c.Close(ctx, "wire"))

	_, err = c.Get(ctx, "wire")
	assert.ErrorIs(t, err, terminal.ErrSessionNotFound)

	_, err = c.Write(ctx, "wire", "late\n")
	assert.ErrorIs(t, err, terminal.ErrSessionNotFound)
}

func TestStreamEndsWithExitEvent(t *testing.T) {
	c := startDaemon(t)
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	_, err = c.Spawn(ctx, id, terminal.SpawnOptions{})
	require.NoError(t, err)

	st, err := c.Attach(ctx, id)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Ping())
	require.NoError(t, st.Input("exit 5\n"))

	_ = st.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var exit stream.Event
	for {
		ev, err := st.Next()
		require.NoError(t, err)
		if ev.Type == stream.EventExit {
			exit = ev
			break
		}
	}
	require.NotNil(t, exit.ExitCode)
	assert.Equal(t, 5, *exit.ExitCode)

	_, err = st.Next()
	require.True(t, errors.Is(err, ErrStreamClosed), "got %v", err)
	assert.Contains(t, err.Error(), "shell exited")
}

func TestAttachUnknownSegment(t *testing.T) {
	c := startDaemon(t)

	_, err := c.Attach(context.Background(), "nobody")
	assert.ErrorIs(t, err, terminal.ErrSessionNotFound)
}

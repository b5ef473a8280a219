//go:build !windows

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ptyd/internal/client"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/config"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/server"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

func startDaemon(t *testing.T) string {
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
	return ts.URL
}

func run(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", serverURL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSessionCommands(t *testing.T) {
	url := startDaemon(t)

	out, err := run(t, url, "create", "cli", "--spawn")
	require.NoError(t, err)
	assert.Equal(t, "cli\n", out)

	out, err = run(t, url, "create", "cli", "--json")
	require.NoError(t, err)
	var created struct {
		SegmentID string `json:"segment_id"`
		Created   bool   `json:"created"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "cli", created.SegmentID)
	assert.False(t, created.Created)

	_, err = run(t, url, "write", "cli", `echo "from""cli"`)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		out, err := run(t, url, "buffer", "cli")
		return err == nil && strings.Contains(out, "fromcli")
	}, 5*time.Second, 50*time.Millisecond)

	out, err = run(t, url, "resize", "cli", "24", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "24x100")

	out, err = run(t, url, "ls", "--json")
	require.NoError(t, err)
	var sessions []terminal.SessionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, terminal.StateRunning, sessions[0].State)

	out, err = run(t, url, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "SEGMENT")
	assert.Contains(t, out, "cli")

	_, err = run(t, url, "close", "cli")
	require.NoError(t, err)

	_, err = run(t, url, "info", "cli")
	assert.ErrorIs(t, err, terminal.ErrSessionNotFound)
}

func TestCreateGeneratesID(t *testing.T) {
	url := startDaemon(t)

	out, err := run(t, url, "create")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 36)
}

func TestHealthCommand(t *testing.T) {
	url := startDaemon(t)

	out, err := run(t, url, "health", "--wait", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "healthy: 0 sessions")
}

func TestArgumentValidation(t *testing.T) {
	url := startDaemon(t)

	tests := []struct {
		name string
		args []string
	}{
		{"resize zero", []string{"resize", "seg", "0", "80"}},
		{"resize overflow", []string{"resize", "seg", "24", "70000"}},
		{"resize words", []string{"resize", "seg", "tall", "wide"}},
		{"bad env", []string{"spawn", "seg", "--env", "NOEQUALS"}},
		{"write without text", []string{"write", "seg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, url, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestParseEnv(t *testing.T) {
	env, err := parseEnv([]string{"A=1", "B=x=y", "EMPTY="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "EMPTY": ""}, env)

	env, err = parseEnv(nil)
	require.NoError(t, err)
	assert.Nil(t, env)

	_, err = parseEnv([]string{"=value"})
	assert.Error(t, err)
}

func attachTo(t *testing.T, url, segment string) *client.Stream {
	t.Helper()
	c, err := client.New(client.Config{BaseURL: url})
	require.NoError(t, err)
	_, err = c.Open(context.Background(), segment)
	require.NoError(t, err)
	_, err = c.Spawn(context.Background(), segment, terminal.SpawnOptions{})
	require.NoError(t, err)
	st, err := c.Attach(context.Background(), segment)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testCommand(ctx context.Context) (*cobra.Command, *bytes.Buffer) {
	var stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetErr(&stderr)
	return cmd, &stderr
}

func TestAttachReturnsShellStatus(t *testing.T) {
	url := startDaemon(t)
	st := attachTo(t, url, "att")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd, _ := testCommand(ctx)

	var out bytes.Buffer
	err := attach(cmd, st, strings.NewReader("echo \"att\"\"ached\"; exit 4\n"), &out)

	var ee *exitError
	require.True(t, errors.As(err, &ee), "got %v", err)
	assert.Equal(t, 4, ee.code)
	assert.Contains(t, out.String(), "attached")
}

func TestAttachDetach(t *testing.T) {
	url := startDaemon(t)
	st := attachTo(t, url, "det")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd, stderr := testCommand(ctx)

	err := attach(cmd, st, strings.NewReader("\x1d"), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "detached")
}

package terminal

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
)

// State is the lifecycle position of a session.
type State string

const (
	StateCreated State = "created"
	StateRunning State = "running"
	StateExited  State = "exited"
	StateClosed  State = "closed"
)

// pumpStopTimeout bounds how long Close waits for the pump after the
// controller has been closed.
const pumpStopTimeout = 5 * time.Second

// Session owns one PTY pair and at most one shell process.
type Session struct {
	id        string
	gen       uint64 // assigned by the registry on insert
	opts      Options
	pty       ptyHandle
	sink      Sink
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	createdAt time.Time

	writeMu sync.Mutex // serialises writers on the controller

	spawnMu sync.Mutex // serialises spawn against spawn and close
	spawned atomic.Bool
	proc    process
	pump    *pump
	exited  chan struct{}

	mu        sync.RWMutex // guards the fields below
	size      Winsize
	shell     string
	pid       int
	spawnedAt time.Time
	exitCode  int
	state     State

	closed    atomic.Bool
	closeOnce sync.Once
}

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	SegmentID string     `json:"segment_id"`
	State     State      `json:"state"`
	Shell     string     `json:"shell,omitempty"`
	PID       int        `json:"pid,omitempty"`
	Rows      uint16     `json:"rows"`
	Cols      uint16     `json:"cols"`
	CreatedAt time.Time  `json:"created_at"`
	SpawnedAt *time.Time `json:"spawned_at,omitempty"`
	ExitCode  *int       `json:"exit_code,omitempty"`
}

func newSession(id string, handle ptyHandle, r *Registry) *Session {
	return &Session{
		id:        id,
		opts:      r.opts,
		pty:       handle,
		sink:      r.sink,
		logger:    r.logger.With(logging.Segment(id)),
		metrics:   r.metrics,
		createdAt: time.Now(),
		exited:    make(chan struct{}),
		size:      r.opts.Size,
		exitCode:  -1,
		state:     StateCreated,
	}
}

// ID returns the segment id.
func (s *Session) ID() string {
	return s.id
}

// Source returns the identity this session's events are delivered under.
func (s *Session) Source() Source {
	return Source{SegmentID: s.id, Generation: s.gen}
}

// Spawned reports whether the shell has been launched.
func (s *Session) Spawned() bool {
	return s.spawned.Load()
}

// Spawn launches the shell on the subordinate side. A second call after a
// successful launch is a no-op. A failed launch leaves the session unspawned
// so the caller can retry.
func (s *Session) Spawn(opts SpawnOptions) error {
	s.spawnMu.Lock()
	defer s.spawnMu.Unlock()

	if s.closed.Load() {
		return opError("spawn", s.id, ErrSessionNotFound, nil)
	}
	if s.spawned.Load() {
		s.logger.Debug("Shell already spawned, skipping")
		return nil
	}

	cmd := buildShellCommand(s.opts, opts)
	proc, err := s.pty.start(cmd)
	s.metrics.SpawnResult(err)
	if err != nil {
		s.logger.Warn("Failed to spawn shell", zap.String("shell", cmd.Path), zap.Error(err))
		return opError("spawn", s.id, ErrSpawnFailure, err)
	}

	s.proc = proc
	s.spawned.Store(true)

	s.mu.Lock()
	s.shell = cmd.Path
	s.pid = proc.pid()
	s.spawnedAt = time.Now()
	s.state = StateRunning
	s.mu.Unlock()

	go s.reap(proc)

	p := newPump(s.Source(), s.pty, s.sink, s.opts.ReadBufferSize, s.logger)
	p.closed = s.closed.Load
	p.exitCode = s.waitExitCode
	p.onRead = s.metrics.BytesRead
	s.pump = p
	go p.run()

	s.logger.Info("Shell spawned", zap.String("shell", cmd.Path), zap.Int("pid", proc.pid()))
	return nil
}

// reap waits for the child and records how it ended.
func (s *Session) reap(proc process) {
	code := proc.wait()

	s.mu.Lock()
	s.exitCode = code
	if s.state != StateClosed {
		s.state = StateExited
	}
	s.mu.Unlock()

	close(s.exited)
}

// waitExitCode gives the reaper a short window to catch up with the pump.
func (s *Session) waitExitCode() int {
	select {
	case <-s.exited:
	case <-time.After(s.opts.ExitWait):
		return -1
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exitCode
}

// Write sends data to the shell. Concurrent writers never interleave.
func (s *Session) Write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed.Load() {
		return opError("write", s.id, ErrSessionNotFound, nil)
	}
	if len(data) == 0 {
		return nil
	}

	for len(data) > 0 {
		n, err := s.pty.Write(data)
		s.metrics.BytesWritten(n)
		if err == nil && n == 0 {
			err = io.ErrShortWrite
		}
		if err != nil {
			if s.closed.Load() {
				return opError("write", s.id, ErrSessionNotFound, nil)
			}
			return opError("write", s.id, ErrIO, err)
		}
		data = data[n:]
	}
	return nil
}

// Resize propagates new dimensions to the PTY. It takes neither the read
// nor the write path, so it never waits on in-flight I/O.
func (s *Session) Resize(size Winsize) error {
	if !size.Valid() {
		return opError("resize", s.id, ErrInvalidSize, nil)
	}
	if s.closed.Load() {
		return opError("resize", s.id, ErrSessionNotFound, nil)
	}

	if err := s.pty.resize(size); err != nil {
		if s.closed.Load() {
			return opError("resize", s.id, ErrSessionNotFound, nil)
		}
		return opError("resize", s.id, ErrIO, err)
	}

	s.mu.Lock()
	s.size = size
	s.mu.Unlock()
	return nil
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := SessionInfo{
		SegmentID: s.id,
		State:     s.state,
		Shell:     s.shell,
		PID:       s.pid,
		Rows:      s.size.Rows,
		Cols:      s.size.Cols,
		CreatedAt: s.createdAt,
	}
	if !s.spawnedAt.IsZero() {
		at := s.spawnedAt
		info.SpawnedAt = &at
	}
	if s.state == StateExited || (s.state == StateClosed && s.exitCode >= 0) {
		code := s.exitCode
		info.ExitCode = &code
	}
	return info
}

// Close tears the session down. It is safe to call more than once and in
// any state; only the first call does anything.
func (s *Session) Close() {
	s.closeOnce.Do(s.teardown)
}

func (s *Session) teardown() {
	s.closed.Store(true)

	// Wait out an in-flight spawn so its process is not missed.
	s.spawnMu.Lock()
	proc, p := s.proc, s.pump
	s.spawnMu.Unlock()

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	if proc != nil {
		select {
		case <-s.exited:
		default:
			if err := proc.hangup(); err != nil {
				s.logger.Debug("Hangup failed", zap.Error(err))
			}
		}
	}

	// Closing the controller unblocks the pump's pending read and any
	// writer parked on a full PTY buffer.
	if err := s.pty.close(); err != nil {
		s.logger.Debug("Closing PTY returned error", zap.Error(err))
	}

	if p != nil {
		select {
		case <-p.done:
		case <-time.After(pumpStopTimeout):
			s.logger.Warn("Output pump did not stop after close")
		}
	}

	if proc != nil {
		go s.escalate(proc)
	}

	s.logger.Info("Terminal session closed")
}

// escalate kills a shell that ignored the hangup.
func (s *Session) escalate(proc process) {
	select {
	case <-s.exited:
		return
	case <-time.After(s.opts.KillGrace):
	}
	s.logger.Warn("Shell ignored hangup, killing", zap.Int("pid", proc.pid()))
	if err := proc.kill(); err != nil {
		s.logger.Debug("Kill failed", zap.Error(err))
	}
}

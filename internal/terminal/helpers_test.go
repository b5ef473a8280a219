package terminal

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingSink collects everything delivered for each segment.
type recordingSink struct {
	mu       sync.Mutex
	output   map[string]*strings.Builder
	chunks   map[string][]string
	exits    map[string]int
	errors   map[string]string
	released []Source
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		output: make(map[string]*strings.Builder),
		chunks: make(map[string][]string),
		exits:  make(map[string]int),
		errors: make(map[string]string),
	}
}

func (s *recordingSink) Output(src Source, chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg := src.SegmentID
	b, ok := s.output[seg]
	if !ok {
		b = &strings.Builder{}
		s.output[seg] = b
	}
	b.WriteString(chunk)
	s.chunks[seg] = append(s.chunks[seg], chunk)
}

func (s *recordingSink) Exit(src Source, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exits[src.SegmentID] = code
}

func (s *recordingSink) Error(src Source, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[src.SegmentID] = msg
}

func (s *recordingSink) Release(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, src)
}

func (s *recordingSink) text(seg string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.output[seg]; ok {
		return b.String()
	}
	return ""
}

func (s *recordingSink) exit(seg string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.exits[seg]
	return code, ok
}

func (s *recordingSink) errorFor(seg string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.errors[seg]
	return msg, ok
}

func (s *recordingSink) wasReleased(seg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.released {
		if r.SegmentID == seg {
			return true
		}
	}
	return false
}

func waitForOutput(t *testing.T, sink *recordingSink, seg, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(sink.text(seg), want)
	}, 5*time.Second, 10*time.Millisecond, "output of %s never contained %q; got %q", seg, want, sink.text(seg))
}

// fakeProcess stands in for a shell. It exits when told to or when hung up.
type fakeProcess struct {
	id     int
	once   sync.Once
	code   int
	exited chan struct{}

	mu      sync.Mutex
	hangups int
	kills   int
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{id: pid, exited: make(chan struct{})}
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.code = code
		close(p.exited)
	})
}

func (p *fakeProcess) pid() int { return p.id }

func (p *fakeProcess) wait() int {
	<-p.exited
	return p.code
}

func (p *fakeProcess) hangup() error {
	p.mu.Lock()
	p.hangups++
	p.mu.Unlock()
	p.exit(-1)
	return nil
}

func (p *fakeProcess) kill() error {
	p.mu.Lock()
	p.kills++
	p.mu.Unlock()
	p.exit(-1)
	return nil
}

func (p *fakeProcess) hangupCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hangups
}

// fakePTY is an in-memory ptyHandle. Output is fed through a pipe; input is
// recorded.
type fakePTY struct {
	out *io.PipeReader
	in  *io.PipeWriter

	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error
	size     Winsize
	startErr error
	starts   []*shellCommand
	closed   bool
	nextPID  int
	proc     *fakeProcess
}

func newFakePTY(size Winsize) *fakePTY {
	r, w := io.Pipe()
	return &fakePTY{out: r, in: w, size: size, nextPID: 4242}
}

// emit makes the "shell" print s.
func (f *fakePTY) emit(s string) error {
	_, err := f.in.Write([]byte(s))
	return err
}

// hangUp ends the output stream as if the subordinate side went away.
func (f *fakePTY) hangUp() {
	f.in.Close()
}

func (f *fakePTY) Read(p []byte) (int, error) {
	return f.out.Read(p)
}

func (f *fakePTY) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.written.Write(p)
}

func (f *fakePTY) resize(size Winsize) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return os.ErrClosed
	}
	f.size = size
	return nil
}

func (f *fakePTY) start(cmd *shellCommand) (process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.starts = append(f.starts, cmd)
	f.proc = newFakeProcess(f.nextPID)
	f.nextPID++
	return f.proc, nil
}

func (f *fakePTY) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("already closed")
	}
	f.closed = true
	f.in.CloseWithError(os.ErrClosed)
	f.out.CloseWithError(os.ErrClosed)
	return nil
}

func (f *fakePTY) state() (written string, size Winsize, starts int, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String(), f.size, len(f.starts), f.closed
}

func (f *fakePTY) process() *fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proc
}

// fakeOpener records every PTY the registry opens.
type fakeOpener struct {
	mu      sync.Mutex
	handles []*fakePTY
	err     error
}

func (o *fakeOpener) open(size Winsize) (ptyHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	h := newFakePTY(size)
	o.handles = append(o.handles, h)
	return h, nil
}

func (o *fakeOpener) opened() []*fakePTY {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakePTY(nil), o.handles...)
}

func (o *fakeOpener) last() *fakePTY {
	h := o.opened()
	return h[len(h)-1]
}

// newFakeRegistry returns a registry whose PTYs are fakes.
func newFakeRegistry(t *testing.T) (*Registry, *fakeOpener, *recordingSink) {
	t.Helper()
	sink := newRecordingSink()
	opener := &fakeOpener{}
	r := NewRegistry(Options{KillGrace: 50 * time.Millisecond}, sink, zap.NewNop())
	r.open = opener.open
	t.Cleanup(r.CloseAll)
	return r, opener, sink
}

//go:build windows

package terminal

import (
	"errors"
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/charmbracelet/x/conpty"
)

// windowsPTY wraps a ConPTY pseudo console.
type windowsPTY struct {
	cpty *conpty.ConPty

	mu      sync.Mutex
	started bool
}

func openPTY(size Winsize) (ptyHandle, error) {
	cpty, err := conpty.New(int(size.Cols), int(size.Rows), 0)
	if err != nil {
		return nil, err
	}
	return &windowsPTY{cpty: cpty}, nil
}

func (p *windowsPTY) Read(b []byte) (int, error) {
	return p.cpty.Read(b)
}

func (p *windowsPTY) Write(b []byte) (int, error) {
	return p.cpty.Write(b)
}

func (p *windowsPTY) resize(size Winsize) error {
	return p.cpty.Resize(int(size.Cols), int(size.Rows))
}

func (p *windowsPTY) start(sc *shellCommand) (process, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil, errors.New("pseudo console already has a process")
	}

	args := append([]string{sc.Path}, sc.Args...)
	pid, handle, err := p.cpty.Spawn(sc.Path, args, &syscall.ProcAttr{
		Dir: sc.Dir,
		Env: sc.Env,
	})
	if err != nil {
		return nil, err
	}
	// os.FindProcess opens its own handle.
	defer syscall.CloseHandle(syscall.Handle(handle))

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil, err
	}
	p.started = true
	return &windowsProcess{proc: proc}, nil
}

func (p *windowsPTY) close() error {
	return p.cpty.Close()
}

type windowsProcess struct {
	proc *os.Process
}

func (w *windowsProcess) pid() int {
	return w.proc.Pid
}

func (w *windowsProcess) wait() int {
	state, err := w.proc.Wait()
	if err != nil || state == nil {
		return -1
	}
	return state.ExitCode()
}

// Windows has no hangup signal; closing the pseudo console ends the shell.
func (w *windowsProcess) hangup() error {
	return nil
}

func (w *windowsProcess) kill() error {
	return w.proc.Kill()
}

func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.ERROR_BROKEN_PIPE)
}

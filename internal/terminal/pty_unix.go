//go:build !windows

package terminal

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// unixPTY wraps a controller/subordinate pair opened with creack/pty.
type unixPTY struct {
	controller *os.File

	mu          sync.Mutex
	subordinate *os.File // nil once handed to a child
}

func openPTY(size Winsize) (ptyHandle, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, err
	}

	controller, err := pollable(ptmx)
	if err != nil {
		tty.Close()
		return nil, err
	}

	p := &unixPTY{controller: controller, subordinate: tty}
	if err := p.resize(size); err != nil {
		p.close()
		return nil, err
	}
	return p, nil
}

// pollable swaps f for a non-blocking duplicate registered with the runtime
// poller. Closing the duplicate then interrupts a Read parked in the poller,
// which a blocking descriptor would not.
func pollable(f *os.File) (*os.File, error) {
	fd, err := unix.Dup(int(f.Fd()))
	f.Close()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return os.NewFile(uintptr(fd), "/dev/ptmx"), nil
}

func (p *unixPTY) Read(b []byte) (int, error) {
	return p.controller.Read(b)
}

func (p *unixPTY) Write(b []byte) (int, error) {
	return p.controller.Write(b)
}

// resize issues TIOCSWINSZ through SyscallConn so the descriptor stays in
// non-blocking mode (File.Fd would flip it back).
func (p *unixPTY) resize(size Winsize) error {
	rc, err := p.controller.SyscallConn()
	if err != nil {
		return err
	}
	var ioctlErr error
	err = rc.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetWinsize(int(fd), unix.TIOCSWINSZ, &unix.Winsize{
			Row: size.Rows,
			Col: size.Cols,
		})
	})
	if err != nil {
		return err
	}
	return ioctlErr
}

func (p *unixPTY) start(sc *shellCommand) (process, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.subordinate == nil {
		return nil, errors.New("pty subordinate already released")
	}

	cmd := exec.Command(sc.Path, sc.Args...)
	cmd.Dir = sc.Dir
	cmd.Env = sc.Env
	cmd.Stdin = p.subordinate
	cmd.Stdout = p.subordinate
	cmd.Stderr = p.subordinate
	// New session with the subordinate (fd 0 in the child) as controlling tty.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	// The child holds its own copies now. Dropping ours lets the controller
	// report end-of-stream once the child and its descendants are gone.
	p.subordinate.Close()
	p.subordinate = nil

	return &unixProcess{cmd: cmd}, nil
}

func (p *unixPTY) close() error {
	p.mu.Lock()
	if p.subordinate != nil {
		p.subordinate.Close()
		p.subordinate = nil
	}
	p.mu.Unlock()
	return p.controller.Close()
}

type unixProcess struct {
	cmd *exec.Cmd
}

func (u *unixProcess) pid() int {
	return u.cmd.Process.Pid
}

func (u *unixProcess) wait() int {
	u.cmd.Wait()
	if u.cmd.ProcessState == nil {
		return -1
	}
	return u.cmd.ProcessState.ExitCode()
}

// The child is a session leader, so its pid is also its process group id.
func (u *unixProcess) hangup() error {
	return unix.Kill(-u.pid(), unix.SIGHUP)
}

func (u *unixProcess) kill() error {
	return unix.Kill(-u.pid(), unix.SIGKILL)
}

// isEndOfStream reports whether a controller read error means the
// subordinate side has gone away. Linux reports EIO rather than EOF.
func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO)
}

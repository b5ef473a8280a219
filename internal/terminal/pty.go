package terminal

// Winsize is a terminal size in character cells.
type Winsize struct {
	Rows uint16 `json:"rows"`
	Cols uint16 `json:"cols"`
}

// Valid reports whether both dimensions are non-zero.
func (w Winsize) Valid() bool {
	return w.Rows > 0 && w.Cols > 0
}

// process is the child started on the subordinate side of a PTY.
type process interface {
	pid() int
	// wait blocks until the process exits and returns its exit code,
	// or -1 when the process was killed by a signal or never reported one.
	wait() int
	// hangup asks the process (and its process group) to terminate.
	hangup() error
	// kill forcibly terminates the process.
	kill() error
}

// ptyHandle is the native PTY pair owned by one Session. Implementations live
// in pty_unix.go and pty_windows.go.
//
//	read       controller-side read source; only the output pump calls it
//	write      controller-side write sink; callers serialise on Session.writeMu
//	resize     propagate dimensions, safe concurrently with read and write
//	start      launch cmd attached to the subordinate side
//	close      release every descriptor; unblocks a pending read
type ptyHandle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	resize(size Winsize) error
	start(cmd *shellCommand) (process, error)
	close() error
}

// ptyOpener opens a PTY pair of the given size.
type ptyOpener func(size Winsize) (ptyHandle, error)

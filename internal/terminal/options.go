package terminal

import "time"

// Options configures how sessions open PTYs and launch shells.
type Options struct {
	// DefaultShell is used when $SHELL is unset (non-Windows only).
	DefaultShell string
	// Term is exported to the child as TERM (non-Windows only).
	Term string
	// Size is the initial PTY size.
	Size Winsize
	// ReadBufferSize bounds a single controller read.
	ReadBufferSize int
	// KillGrace is how long a closed session's shell gets after SIGHUP
	// before it is killed.
	KillGrace time.Duration
	// ExitWait bounds how long the pump waits for an exit code after
	// end-of-stream before reporting it as unknown.
	ExitWait time.Duration
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		DefaultShell:   "/bin/bash",
		Term:           "xterm-256color",
		Size:           Winsize{Rows: 24, Cols: 80},
		ReadBufferSize: 8 * 1024,
		KillGrace:      2 * time.Second,
		ExitWait:       500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.DefaultShell == "" {
		o.DefaultShell = def.DefaultShell
	}
	if o.Term == "" {
		o.Term = def.Term
	}
	if !o.Size.Valid() {
		o.Size = def.Size
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = def.ReadBufferSize
	}
	if o.KillGrace <= 0 {
		o.KillGrace = def.KillGrace
	}
	if o.ExitWait <= 0 {
		o.ExitWait = def.ExitWait
	}
	return o
}

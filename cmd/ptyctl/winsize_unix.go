//go:build !windows

package main

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/GriffinCanCode/ptyd/internal/client"
)

// watchSize sends the terminal size now and on every SIGWINCH.
func watchSize(fd int, st *client.Stream) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGWINCH)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ch:
				sendSize(fd, st)
			case <-done:
				return
			}
		}
	}()
	ch <- unix.SIGWINCH // Initial resize

	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func sendSize(fd int, st *client.Stream) {
	cols, rows, err := term.GetSize(fd)
	if err != nil || rows <= 0 || cols <= 0 {
		return
	}
	_ = st.Resize(uint16(rows), uint16(cols))
}

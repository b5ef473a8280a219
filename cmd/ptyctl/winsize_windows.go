//go:build windows

package main

import (
	"time"

	"golang.org/x/term"

	"github.com/GriffinCanCode/ptyd/internal/client"
)

// watchSize polls the console size; Windows has no SIGWINCH.
func watchSize(fd int, st *client.Stream) (stop func()) {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		var lastRows, lastCols int
		for {
			cols, rows, err := term.GetSize(fd)
			if err == nil && rows > 0 && cols > 0 && (rows != lastRows || cols != lastCols) {
				lastRows, lastCols = rows, cols
				_ = st.Resize(uint16(rows), uint16(cols))
			}
			select {
			case <-ticker.C:
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }
}

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/GriffinCanCode/ptyd/internal/client"
	"github.com/GriffinCanCode/ptyd/internal/stream"
)

// detachKey is Ctrl-], as in telnet.
const detachKey = 0x1d

func newAttachCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <segment>",
		Short: "Connect this terminal to a session",
		Long: `Connect this terminal to a session: recent output is replayed, keystrokes
go to the shell and the window size follows this terminal. Press Ctrl-] to
detach and leave the shell running. ptyctl exits with the shell's status
when the shell ends.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			st, err := c.Attach(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer st.Close()

			fd := int(os.Stdin.Fd())
			if term.IsTerminal(fd) {
				oldState, err := term.MakeRaw(fd)
				if err != nil {
					return fmt.Errorf("failed to make stdin raw: %w", err)
				}
				defer func() {
					if err := term.Restore(fd, oldState); err != nil {
						fmt.Fprintf(os.Stderr, "ptyctl: failed to restore terminal: %v\n", err)
					}
				}()
				stop := watchSize(fd, st)
				defer stop()
			}

			return attach(cmd, st, os.Stdin, cmd.OutOrStdout())
		},
	}
}

// attach pumps in to the stream and events to out until the shell exits,
// the server closes the stream, the user detaches or the context ends.
func attach(cmd *cobra.Command, st *client.Stream, in io.Reader, out io.Writer) error {
	detached := make(chan struct{})
	go func() {
		defer close(detached)
		buf := make([]byte, 4096)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				if i := bytes.IndexByte(chunk, detachKey); i >= 0 {
					if i > 0 {
						_ = st.Input(string(chunk[:i]))
					}
					return
				}
				if st.Input(string(chunk)) != nil {
					return
				}
			}
			if err != nil {
				// stdin ran out; keep watching output.
				<-cmd.Context().Done()
				return
			}
		}
	}()

	type result struct {
		ev  stream.Event
		err error
	}
	events := make(chan result)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			ev, err := st.Next()
			select {
			case events <- result{ev, err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-detached:
			fmt.Fprint(cmd.ErrOrStderr(), "\r\n[detached]\r\n")
			return nil
		case <-cmd.Context().Done():
			return nil
		case r := <-events:
			if r.err != nil {
				if errors.Is(r.err, client.ErrStreamClosed) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r\n[%v]\r\n", r.err)
					return nil
				}
				return r.err
			}
			switch r.ev.Type {
			case stream.EventOutput:
				if _, err := io.WriteString(out, r.ev.Data); err != nil {
					return err
				}
			case stream.EventError:
				fmt.Fprintf(cmd.ErrOrStderr(), "\r\nptyctl: %s\r\n", r.ev.Message)
			case stream.EventExit:
				code := 1
				if r.ev.ExitCode != nil && *r.ev.ExitCode >= 0 {
					code = *r.ev.ExitCode
				}
				if code != 0 {
					return &exitError{code: code}
				}
				return nil
			}
		}
	}
}

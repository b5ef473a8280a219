package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/ptyd/internal/client"
)

// Version info (set by ldflags)
var version = "dev"

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	server     string
	timeout    time.Duration
	jsonOutput bool
}

func (o *globalOptions) client() (*client.Client, error) {
	return client.New(client.Config{BaseURL: o.server, Timeout: o.timeout})
}

// exitError carries a shell's exit status out of attach.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("shell exited with status %d", e.code)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	var ee *exitError
	switch {
	case errors.As(err, &ee):
		os.Exit(ee.code)
	case err != nil:
		// Error already printed by cobra
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "ptyctl",
		Short: "Control shells hosted by a ptyd daemon",
		Long: `ptyctl drives terminal sessions on a ptyd daemon.

Sessions are addressed by segment id:
  ptyctl create [segment]           Open a session (generated id if omitted)
  ptyctl spawn <segment>            Start its shell
  ptyctl write <segment> <text>     Send input
  ptyctl resize <segment> <r> <c>   Change the terminal size
  ptyctl attach <segment>           Connect this terminal to the session
  ptyctl close <segment>            End the session
  ptyctl ls                         List sessions`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	defaultServer := os.Getenv("PTYD_URL")
	if defaultServer == "" {
		defaultServer = client.DefaultConfig().BaseURL
	}
	rootCmd.PersistentFlags().StringVarP(&opts.server, "server", "s", defaultServer, "daemon URL (env PTYD_URL)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(
		newCreateCmd(opts),
		newSpawnCmd(opts),
		newWriteCmd(opts),
		newResizeCmd(opts),
		newCloseCmd(opts),
		newListCmd(opts),
		newInfoCmd(opts),
		newBufferCmd(opts),
		newAttachCmd(opts),
		newHealthCmd(opts),
	)
	return rootCmd
}

func printJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

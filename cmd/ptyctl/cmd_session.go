package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

func newCreateCmd(opts *globalOptions) *cobra.Command {
	var spawn bool
	cmd := &cobra.Command{
		Use:   "create [segment]",
		Short: "Open a terminal session",
		Long: `Open a terminal session. With a segment id the call is idempotent:
repeating it returns the existing session. Without one the daemon generates
an id and prints it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var segmentID string
			created := true
			if len(args) == 1 {
				segmentID = args[0]
				if created, err = c.Open(ctx, segmentID); err != nil {
					return err
				}
			} else if segmentID, err = c.Create(ctx); err != nil {
				return err
			}

			if spawn {
				if _, err := c.Spawn(ctx, segmentID, terminal.SpawnOptions{}); err != nil {
					return err
				}
			}

			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{"segment_id": segmentID, "created": created})
			}
			fmt.Fprintln(cmd.OutOrStdout(), segmentID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&spawn, "spawn", false, "also start the default shell")
	return cmd
}

func newSpawnCmd(opts *globalOptions) *cobra.Command {
	var (
		shell   string
		cwd     string
		envVars []string
	)
	cmd := &cobra.Command{
		Use:   "spawn <segment> [-- args...]",
		Short: "Start the shell of a session",
		Long: `Start the shell of a session. Spawning a session that already has a
shell is a no-op. Arguments after -- are passed to the shell.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := parseEnv(envVars)
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			info, err := c.Spawn(cmd.Context(), args[0], terminal.SpawnOptions{
				Shell: shell,
				Args:  args[1:],
				Dir:   cwd,
				Env:   env,
			})
			if err != nil {
				return err
			}
			return printInfo(cmd, opts, info)
		},
	}
	cmd.Flags().StringVar(&shell, "shell", "", "shell to run (default: daemon's default shell)")
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory")
	cmd.Flags().StringArrayVarP(&envVars, "env", "e", nil, "extra environment variable KEY=VALUE (repeatable)")
	return cmd
}

func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env %q: want KEY=VALUE", p)
		}
		env[k] = v
	}
	return env, nil
}

func newWriteCmd(opts *globalOptions) *cobra.Command {
	var noNewline bool
	cmd := &cobra.Command{
		Use:   "write <segment> <text>",
		Short: "Send input to a session's shell",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := args[1]
			if !noNewline {
				data += "\n"
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			n, err := c.Write(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{"segment_id": args[0], "bytes": n})
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&noNewline, "no-newline", "n", false, "do not append a newline")
	return cmd
}

func newResizeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resize <segment> <rows> <cols>",
		Short: "Change a session's terminal size",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := parseDimension("rows", args[1])
			if err != nil {
				return err
			}
			cols, err := parseDimension("cols", args[2])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			info, err := c.Resize(cmd.Context(), args[0], rows, cols)
			if err != nil {
				return err
			}
			return printInfo(cmd, opts, info)
		},
	}
}

func parseDimension(name, s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid %s %q: want 1-65535", name, s)
	}
	return uint16(v), nil
}

func newCloseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "close <segment>...",
		Aliases: []string{"rm"},
		Short:   "End sessions, killing their shells",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			for _, seg := range args {
				if err := c.Close(cmd.Context(), seg); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			sessions, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), sessions)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEGMENT\tSTATE\tPID\tSIZE\tSHELL\tAGE")
			for _, s := range sessions {
				pid := "-"
				if s.PID != 0 {
					pid = strconv.Itoa(s.PID)
				}
				state := string(s.State)
				if s.ExitCode != nil {
					state += fmt.Sprintf(" (%d)", *s.ExitCode)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%s\t%s\n",
					s.SegmentID, state, pid, s.Rows, s.Cols, s.Shell,
					time.Since(s.CreatedAt).Round(time.Second))
			}
			return w.Flush()
		},
	}
}

func newInfoCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <segment>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			info, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printInfo(cmd, opts, info)
		},
	}
}

func newBufferCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "buffer <segment>",
		Short: "Print a session's recent output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			data, err := c.Buffer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{"segment_id": args[0], "data": data})
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), data)
			return err
		},
	}
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	var wait int
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the daemon is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if wait > 0 {
				if err := c.WaitHealthy(cmd.Context(), wait); err != nil {
					return err
				}
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), h)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d sessions, up %s\n",
				h.Status, h.Sessions, time.Duration(h.Metrics.UptimeSeconds*float64(time.Second)).Round(time.Second))
			return nil
		},
	}
	cmd.Flags().IntVar(&wait, "wait", 0, "retry up to N times while the daemon starts")
	return cmd
}

func printInfo(cmd *cobra.Command, opts *globalOptions, info *terminal.SessionInfo) error {
	if opts.jsonOutput {
		return printJSON(cmd.OutOrStdout(), info)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "segment: %s\nstate:   %s\nsize:    %dx%d\n", info.SegmentID, info.State, info.Rows, info.Cols)
	if info.PID != 0 {
		fmt.Fprintf(out, "pid:     %d\nshell:   %s\n", info.PID, info.Shell)
	}
	if info.ExitCode != nil {
		fmt.Fprintf(out, "exit:    %d\n", *info.ExitCode)
	}
	return nil
}

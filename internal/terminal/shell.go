package terminal

import (
	"os"
	"runtime"
	"sort"
)

const (
	windowsShell = "powershell.exe"
	windowsTerm  = "cygwin"
)

// SpawnOptions override the shell launched for a session. The zero value
// launches the user's login shell with the configured environment.
type SpawnOptions struct {
	Shell string            `json:"shell,omitempty"`
	Args  []string          `json:"args,omitempty"`
	Dir   string            `json:"cwd,omitempty"`
	Env   map[string]string `json:"env,omitempty"`
}

// shellCommand is a fully resolved command line for a PTY child.
type shellCommand struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// resolveShell picks the shell executable and TERM value for goos.
// On Windows the shell is fixed; elsewhere $SHELL wins over fallback.
func resolveShell(goos string, getenv func(string) string, fallback, term string) (string, string) {
	if goos == "windows" {
		return windowsShell, windowsTerm
	}
	if shell := getenv("SHELL"); shell != "" {
		return shell, term
	}
	return fallback, term
}

func buildShellCommand(opts Options, spawn SpawnOptions) *shellCommand {
	path, term := resolveShell(runtime.GOOS, os.Getenv, opts.DefaultShell, opts.Term)
	if spawn.Shell != "" {
		path = spawn.Shell
	}

	env := append(os.Environ(), "TERM="+term)
	keys := make([]string, 0, len(spawn.Env))
	for k := range spawn.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+spawn.Env[k])
	}

	return &shellCommand{
		Path: path,
		Args: spawn.Args,
		Dir:  spawn.Dir,
		Env:  env,
	}
}

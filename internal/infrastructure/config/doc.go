// Package config loads server configuration.
//
// Values are layered: built-in defaults, then an optional YAML file
// (PTYD_CONFIG or the --config flag), then environment variables prefixed
// with PTYD_, for example PTYD_SERVER_PORT or PTYD_TERMINAL_DEFAULT_SHELL.
package config

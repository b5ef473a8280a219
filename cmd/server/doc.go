// Package main is the entry point for ptyd, the PTY session server.
//
// ptyd hosts interactive shells on pseudo-terminals, each keyed by a
// client-chosen segment id. Clients drive sessions over REST and watch
// their output on a websocket stream.
//
// Configuration:
//   - Defaults
//   - YAML file (--config or PTYD_CONFIG)
//   - Environment variables (PTYD_SERVER_PORT, PTYD_TERMINAL_DEFAULT_SHELL, ...)
//   - CLI flags (override everything above)
//
// Usage:
//
//	# Production mode
//	./server --port 8000 --host 0.0.0.0
//
//	# Development mode (colored logs, debug level)
//	./server --dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown; every session is closed
package main

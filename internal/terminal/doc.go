// Package terminal multiplexes interactive shell sessions over native
// pseudo-terminals.
//
// Each session is addressed by a client-chosen segment id and moves through
//
//	created → running → exited → closed
//
// with closed reachable from any state. A Registry owns the id → Session
// table; creation and spawning are idempotent so duplicate client requests
// for the same logical terminal are harmless.
//
// Output is pushed. Spawning a shell starts one goroutine per session that
// reads the PTY controller and hands decoded UTF-8 chunks to a Sink in read
// order, followed by exactly one Exit or Error when the stream ends. Closing a
// session closes the controller descriptor, which unblocks that goroutine.
//
// Sink calls carry a Source. An id is free for reuse as soon as Close removes
// it, so the generation in the Source is what separates a closing session's
// last events from those of its successor.
//
// Example:
//
//	reg := terminal.NewRegistry(terminal.DefaultOptions(), sink, logger)
//	reg.Create("t1")
//	reg.Spawn("t1", terminal.SpawnOptions{})
//	reg.Write("t1", []byte("echo hi\n"))
//	reg.Resize("t1", terminal.Winsize{Rows: 40, Cols: 120})
//	reg.Close("t1")
package terminal

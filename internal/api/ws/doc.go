// Package ws serves a terminal segment's event stream over a websocket.
//
// Server frames are stream.Event JSON: the replay buffer first (as one
// output event), then live output, and finally an exit or error event
// followed by a close frame. Client frames:
//
//	{"type":"input","data":"ls\n"}
//	{"type":"resize","rows":40,"cols":120}
//	{"type":"ping"}                      answered with {"type":"pong"}
//
// A connection whose queue overflows is closed with "consumer too slow".
package ws

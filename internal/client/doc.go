// Package client is a Go client for the ptyd daemon: REST calls for the
// session lifecycle and a websocket Stream for live output.
package client

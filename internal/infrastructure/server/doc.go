// Package server assembles ptyd: logging, metrics, the output hub, the
// session registry, and the gin router carrying the REST and stream APIs.
package server

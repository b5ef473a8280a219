// Package logging builds the daemon's zap logger from its configuration
// section and names the fields every component uses to tag session logs.
//
// Logs go to stderr by default so that a shell attached to the server's own
// terminal is never interleaved with log lines on stdout.
//
//	logger, err := logging.FromConfig(cfg.Logging)
//	...
//	logger.Info("Terminal session created", logging.Segment(id))
package logging

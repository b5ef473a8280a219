/*
Package monitoring provides Prometheus metrics for the PTY server.

# Overview

Each Metrics value owns a private registry, so the server and its tests can
create as many collectors as they like without clashing on the default
registry.

# Metrics

- HTTP requests by route template and status, request latency
- Terminal sessions: active, created, closed, spawn results
- PTY throughput in both directions
- Stream delivery: active connections, messages, dropped events

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	registry := terminal.NewRegistry(opts, hub, logger).WithMetrics(metrics)
*/
package monitoring

// Package main is the entry point for the ringsim server.
//
// The server runs one bounded-buffer producer/consumer simulation and exposes
// it over a REST control API, a WebSocket snapshot stream and a Prometheus
// endpoint.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -presets presets.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main

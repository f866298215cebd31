// Package config provides 12-factor configuration for the ring simulator.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: listen address, shutdown timeout, CORS origins
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting
//   - Simulation: init bounds, reset defaults, backoff, journal capacities
//   - Stream: websocket push interval bounds
//   - Presets: optional YAML or TOML scenario file
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	engine := simulation.NewEngine(cfg.Simulation.Options(), logger)
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT, CORS_ORIGINS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - SIM_MAX_BUFFER, SIM_MAX_WORKERS, SIM_MAX_DELAY, SIM_BACKOFF, ...
//   - STREAM_MIN_INTERVAL, STREAM_MAX_INTERVAL, STREAM_WRITE_TIMEOUT
//   - PRESETS_FILE
package config

// Package http exposes the simulation engine over a REST API.
//
// Endpoints:
//   - Health: / and /health
//   - Lifecycle: /api/producer-consumer/{init,start,stop,continue,reset}
//   - Queries: /api/producer-consumer/{status,is-running,history}
//   - Export: /api/producer-consumer/history/export (gzip or zstd NDJSON)
//   - Logs: GET tails the event log, POST ingests dashboard log batches
//   - Presets: /api/producer-consumer/presets, /presets/:name/init
//   - Metrics summary: /metrics/json
//
// Errors are answered as {"success": false, "error": "..."}: 400 for an
// invalid init, 409 for start or continue before init, 404 for an unknown
// preset.
//
// Example Usage:
//
//	handlers := http.NewHandlers(engine, presets, metrics, logger, version)
//	handlers.Register(router)
package http

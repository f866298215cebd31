// Package ws streams simulation snapshots over WebSocket.
//
// Every connection gets a uuid client id and a snapshot push every interval.
// The interval starts at the session's simulation speed and is clamped to the
// configured bounds.
//
// Message Types (Client → Server):
//   - ping: keep-alive ping
//   - status: request an immediate snapshot
//   - interval: change the push interval (intervalMs)
//
// Message Types (Server → Client):
//   - system: welcome with clientId
//   - snapshot: engine snapshot in data
//   - pong, interval: acknowledgements
//   - error: unknown or malformed message
//
// Example Usage:
//
//	handler := ws.NewHandler(engine, cfg.Stream, metrics, logger)
//	router.GET("/stream", handler.HandleConnection)
package ws

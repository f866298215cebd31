// Package server assembles the ringsim service.
//
// It wires the simulation engine to its outer surfaces:
//   - REST routes under /api/producer-consumer
//   - the /stream WebSocket snapshot feed
//   - Prometheus exposition on /metrics
//
// Middleware runs in this order: recovery, tracing, request metrics, CORS,
// then the optional per-client rate limit.
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, nil, "dev")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Close()
package server

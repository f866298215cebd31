/*
Package monitoring provides Prometheus metrics for the ring simulator.

# Overview

Metrics implements the engine's Recorder, so lifecycle operations, produced
and consumed items, wait events and item wait times are exported as they
happen. Slot state gauges follow the last status snapshot. HTTP and WebSocket
traffic are tracked by the gin middleware and the stream handler.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	engine := simulation.NewEngine(opts, logger).WithRecorder(metrics)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring

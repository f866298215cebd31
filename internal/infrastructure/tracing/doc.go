/*
Package tracing provides lightweight request tracing.

# Overview

Every HTTP request gets a span with a ULID trace id. Incoming X-Trace-ID and
X-Span-ID headers continue an existing trace, so calls made by the control
client show up under the trace the client started. Finished spans are logged
by a buffered background collector.

# Usage

	tracer := tracing.New("ringsim", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// client side
	tracing.InjectTraceContext(ctx, req.Header.Set)

# Trace Format

  - X-Trace-ID: identifier for the entire request flow
  - X-Span-ID: identifier for the current operation
*/
package tracing

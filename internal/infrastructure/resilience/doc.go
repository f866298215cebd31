/*
Package resilience provides the circuit breaker used by the ringsim control client.

# Overview

The client talks to a single server. When that server keeps failing, the
breaker opens and commands fail fast instead of stacking retries.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Configurable failure thresholds and timeouts
- Automatic state transitions
- Concurrent request handling
- Error classification, so rejected commands do not count as outages
- State change callbacks for monitoring

# Usage

	// Create a circuit breaker
	breaker := resilience.New("ringsim-api", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// Execute request through breaker
	snap, err := resilience.Call(ctx, breaker, func(ctx context.Context) (*Snapshot, error) {
		return fetchStatus(ctx)
	})

# States

- Closed: Normal operation, requests pass through
- Open: Service unavailable, requests fail immediately
- Half-Open: Testing if service recovered, limited requests allowed

# Pattern

The circuit breaker transitions between states based on success/failure rates:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience

// Package client is a Go client for the ringsim control API.
//
// Every call passes a token-bucket limiter, then a circuit breaker, then a
// resty request whose transport retries 5xx and 429 replies with backoff.
// Replies the server rejects (4xx) come back as *APIError and leave the
// breaker closed. Trace ids carried by the context are forwarded as headers.
//
// Example Usage:
//
//	c := client.New(client.DefaultConfig(), logger)
//	if _, err := c.InitPreset(ctx, "balanced"); err != nil {
//	    return err
//	}
//	if _, err := c.Start(ctx); err != nil {
//	    return err
//	}
//	err := c.Watch(ctx, 500*time.Millisecond, func(s simulation.Snapshot) error {
//	    fmt.Println(s.Stats.ProducedTotal, s.Stats.ConsumedTotal)
//	    return nil
//	})
package client

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/GriffinCanCode/ringsim/internal/domain/simulation"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/tracing"
)

type streamFrame struct {
	Type       string               `json:"type"`
	Message    string               `json:"message,omitempty"`
	IntervalMs int64                `json:"intervalMs,omitempty"`
	Data       *simulation.Snapshot `json:"data,omitempty"`
}

// Watch subscribes to the snapshot stream and calls fn for every snapshot
// until ctx is done or fn returns an error, which Watch then returns. A
// positive interval asks the server for that push rate.
func (c *Client) Watch(ctx context.Context, interval time.Duration, fn func(simulation.Snapshot) error) error {
	u, err := url.Parse(c.baseURL + "/stream")
	if err != nil {
		return fmt.Errorf("stream url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	tracing.InjectTraceContext(ctx, header.Set)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	// Unblock the read below when ctx ends
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if interval > 0 {
		data, err := sonic.Marshal(streamFrame{Type: "interval", IntervalMs: interval.Milliseconds()})
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("set stream interval: %w", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read stream: %w", err)
		}

		var frame streamFrame
		if err := sonic.Unmarshal(data, &frame); err != nil {
			return fmt.Errorf("decode stream frame: %w", err)
		}

		switch frame.Type {
		case "snapshot":
			if frame.Data == nil {
				continue
			}
			if err := fn(*frame.Data); err != nil {
				return err
			}
		case "error":
			c.logger.Warn("Stream error: " + frame.Message)
		}
	}
}

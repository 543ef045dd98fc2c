package client

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/XiangYd616/runq/event"
)

// Watch subscribes to the server's event feed. The returned channel
// closes when the connection drops or ctx is cancelled. With no types
// given, every event is delivered.
func (c *Client) Watch(ctx context.Context, types ...string) (<-chan event.Event, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/v1/events"
	if len(types) > 0 {
		wsURL += "?types=" + strings.Join(types, ",")
	}

	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		return nil, &APIError{StatusCode: 0, Message: "websocket dial: " + err.Error()}
	}

	out := make(chan event.Event)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			data, err := wsutil.ReadServerText(conn)
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Debug("watch read failed", "error", err)
				}
				return
			}
			var evt event.Event
			if err := json.Unmarshal(data, &evt); err != nil {
				c.logger.Warn("watch decode failed", "error", err)
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close the socket when the context ends so the read loop unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return out, nil
}

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DelicateHug/DMaker-sub000/internal/events"
)

// Subscribe delivers push events to handler in arrival order until ctx is
// cancelled. Dropped connections are redialed with exponential backoff;
// events sent while disconnected are lost, so callers should reload on
// reconnect (see SubscribeWithReconnect).
func (c *Client) Subscribe(ctx context.Context, handler events.Handler) error {
	return c.SubscribeWithReconnect(ctx, handler, nil)
}

// SubscribeWithReconnect is Subscribe with a hook called after every
// successful (re)connection.
func (c *Client) SubscribeWithReconnect(ctx context.Context, handler events.Handler, onConnect func()) error {
	backoff := c.cfg.ReconnectBackoff

	for {
		conn, err := c.dial(ctx)
		if err == nil {
			backoff = c.cfg.ReconnectBackoff
			if onConnect != nil {
				onConnect()
			}
			err = c.readLoop(ctx, conn, handler)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.V(1).Info("event channel down, retrying", "error", err.Error(), "backoff", backoff.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = min(backoff*2, c.cfg.MaxReconnectBackoff)
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += "/api/events"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial events: %w", err)
	}
	return conn, nil
}

// readLoop decodes frames until the connection fails or ctx ends
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, handler events.Handler) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		e, err := events.ParseJSONEvent(data)
		if err != nil {
			c.log.Error(err, "dropping malformed event frame")
			continue
		}
		handler(e)
	}
}

package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/savegress/vitalink/pkg/models"
)

// Conn is one established event-stream connection to the gateway.
// ReadEvent blocks until the next event or a transport-level failure.
type Conn interface {
	ReadEvent() (models.GatewayEvent, error)
	Close() error
}

// Dialer performs the event-stream handshake
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WebSocketDialer connects to the gateway's /stream endpoint
type WebSocketDialer struct {
	// URL is the gateway base URL (http:// or https://)
	URL string
}

// Dial performs the WebSocket handshake. The caller bounds the
// handshake with the context deadline.
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	streamURL, err := streamURL(d.URL)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake with %s failed (status %d): %w", streamURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("handshake with %s failed: %w", streamURL, err)
	}

	return &wsConn{conn: conn}, nil
}

// streamURL derives the ws:// event-stream URL from the gateway base URL
func streamURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid gateway URL %q: %w", base, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported gateway URL scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/stream"
	return u.String(), nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadEvent() (models.GatewayEvent, error) {
	var ev models.GatewayEvent
	if err := c.conn.ReadJSON(&ev); err != nil {
		return models.GatewayEvent{}, err
	}
	return ev, nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

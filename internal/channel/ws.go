package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultConnectTimeout = 15 * time.Second
	writeTimeout          = 10 * time.Second
)

// WebSocketRuntime implements Runtime over a gorilla/websocket connection
// to the conversation's media endpoint.
type WebSocketRuntime struct {
	// Dialer overrides the websocket dialer (nil = default).
	Dialer *websocket.Dialer

	// ConnectTimeout bounds the dial (0 = 15s default).
	ConnectTimeout time.Duration
}

// NewWebSocketRuntime creates a runtime with default dial settings.
func NewWebSocketRuntime() *WebSocketRuntime {
	return &WebSocketRuntime{}
}

func (r *WebSocketRuntime) CreateChannel(url string) (Conn, error) {
	dialer := r.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	timeout := r.ConnectTimeout
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, wsURL(url), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", wsURL(url), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL(url), err)
	}
	return &wsConn{conn: conn}, nil
}

// wsURL derives the websocket endpoint from the embeddable conversation URL.
func wsURL(url string) string {
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	default:
		return url
	}
}

// joinHello opens the join handshake; the server answers with joinAck.
type joinHello struct {
	Type string `json:"type"` // "join"
}

type joinAck struct {
	Type    string `json:"type"` // "joined" on success
	Message string `json:"message,omitempty"`
}

type wsConn struct {
	conn *websocket.Conn

	writeMu     sync.Mutex
	destroyOnce sync.Once
}

func (c *wsConn) Join(ctx context.Context) error {
	deadline := time.Now().Add(defaultConnectTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(deadline)
	err := c.conn.WriteJSON(joinHello{Type: "join"})
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	_ = c.conn.SetReadDeadline(deadline)
	var ack joinAck
	if err := c.conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("read join ack: %w", err)
	}
	if ack.Type != "joined" {
		if ack.Message != "" {
			return fmt.Errorf("join rejected: %s", ack.Message)
		}
		return fmt.Errorf("join rejected: unexpected ack %q", ack.Type)
	}
	_ = c.conn.SetReadDeadline(time.Time{})
	return nil
}

func (c *wsConn) SendAppMessage(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode app message: %w", err)
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send app message: %w", err)
	}
	return nil
}

func (c *wsConn) Destroy() error {
	c.destroyOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	return nil
}

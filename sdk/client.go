package sdk

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Client is a WebSocket client for the seats server. Reads are synchronous;
// the Bot runner owns the receive loop. Sends are safe for concurrent use.
type Client struct {
	serverURL string
	conn      *websocket.Conn
	logger    *log.Logger
	writeMu   sync.Mutex
	mu        sync.RWMutex
	connected bool
}

// NewClient creates a client for the given server URL. The URL may use
// http, https, ws or wss schemes and may already carry query parameters.
func NewClient(serverURL string, logger *log.Logger) *Client {
	return &Client{
		serverURL: serverURL,
		logger:    logger,
	}
}

// Connect dials the server. Query parameters in params are merged into the
// URL, so callers can attach bot identity without string surgery.
func (c *Client) Connect(ctx context.Context, params url.Values) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}

	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			for _, v := range values {
				q.Set(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	c.logger.Info("Connecting to server", "url", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	return nil
}

// Disconnect sends a close frame and tears down the connection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return c.conn.Close()
	}
	return nil
}

// IsConnected reports whether the client holds a live connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SendMessage writes a message envelope to the server.
func (c *Client) SendMessage(msg *Message) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// SendAction replies to an action request with the chosen action id.
func (c *Client) SendAction(matchID string, action int, reasoning string) error {
	msg, err := NewMessage(MessageTypeAction, ActionData{
		MatchID:   matchID,
		Action:    action,
		Reasoning: reasoning,
	})
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

// RequestState asks the server for this seat's current view.
func (c *Client) RequestState() error {
	msg, err := NewMessage(MessageTypeState, nil)
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

// ReadMessage blocks until the next message arrives. The deadline bounds the
// wait so callers can poll a context between reads; a zero deadline blocks
// forever.
func (c *Client) ReadMessage(deadline time.Duration) (*Message, error) {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	if deadline > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

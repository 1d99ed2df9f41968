package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/seatsforbots/sdk"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// ErrConnectionClosed is returned when sending on a closed connection.
var ErrConnectionClosed = websocket.ErrCloseSent

// Role distinguishes playing bots from read-only watchers.
type Role string

const (
	RoleBot     Role = "bot"
	RoleWatcher Role = "watcher"
)

// Conn wraps a WebSocket connection to a bot or watcher.
type Conn struct {
	ws        *websocket.Conn
	send      chan *sdk.Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	role      Role
	botID     string
	matchName string

	// onMessage receives frames from the read pump; onClose fires once
	// when either pump exits. Both are set before Start.
	onMessage func(*Conn, *sdk.Message)
	onClose   func(*Conn)
}

// newConn wraps an upgraded WebSocket connection.
func newConn(ws *websocket.Conn, logger *log.Logger, role Role, botID, matchName string) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	return &Conn{
		ws:        ws,
		send:      make(chan *sdk.Message, 256),
		logger:    logger.WithPrefix("conn").With("bot", botID),
		ctx:       ctx,
		cancel:    cancel,
		role:      role,
		botID:     botID,
		matchName: matchName,
	}
}

// Start begins the read and write pumps.
func (c *Conn) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.ws.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
	return err
}

// BotID returns the connection's bot id.
func (c *Conn) BotID() string {
	return c.botID
}

// Role returns whether this is a bot or a watcher connection.
func (c *Conn) Role() Role {
	return c.role
}

// MatchName returns the match block the connection asked to join.
func (c *Conn) MatchName() string {
	return c.matchName
}

// Done is closed when the connection shuts down.
func (c *Conn) Done() <-chan struct{} {
	return c.ctx.Done()
}

// SendMessage queues a message for the client. A full buffer closes the
// connection rather than blocking the caller.
func (c *Conn) SendMessage(msg *sdk.Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel closed during shutdown.
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// sendError reports a protocol error to the client.
func (c *Conn) sendError(code, message string) {
	msg, err := sdk.NewMessage(sdk.MessageTypeError, sdk.ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("failed to create error message", "error", err)
		return
	}
	_ = c.SendMessage(msg)
}

func (c *Conn) readPump() {
	defer func() { _ = c.Close() }()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg sdk.Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}

		if c.onMessage != nil {
			c.onMessage(c, &msg)
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

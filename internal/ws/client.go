// Package ws adapts the hub's frame dispatch to a live WebSocket
// connection: one Client per connected session, running the gorilla/websocket
// readPump/writePump idiom 0DukePan's internal/rooms/client.go established,
// retargeted at the Frame-oriented wire protocol and the session.Registry
// instead of a single-room broadcast channel.
package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/hub/presence"
	"github.com/chathub/sessionhub/internal/hub/room"
	"github.com/chathub/sessionhub/internal/hub/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Dispatcher is the narrow surface Client needs from handler.Handler, kept
// as an interface so this package does not import handler (which in turn
// would need to import ws for the Sender type, an import cycle).
type Dispatcher interface {
	Dispatch(ctx context.Context, sess *session.Session, raw []byte) error
}

// Logger is the minimal logging surface Client needs.
type Logger interface {
	Warn(ctx context.Context, msg string, args ...interface{})
	Error(ctx context.Context, msg string, args ...interface{})
}

// Client is a middleman between one WebSocket connection and the hub.
// It implements session.Sender so the Session Registry can address it
// directly for fan-out.
type Client struct {
	conn       *websocket.Conn
	send       chan []byte
	session    *session.Session
	dispatcher Dispatcher
	sessions   *session.Registry
	rooms      *room.Registry
	presence   *presence.Tracker
	logger     Logger
	closed     chan struct{}
}

// NewClient wires up a Client for an already-authenticated connection.
// The caller constructs the session.Session (passing this Client as its
// Sender) before calling NewClient, since Session and Client reference
// each other.
func NewClient(conn *websocket.Conn, sess *session.Session, dispatcher Dispatcher, sessions *session.Registry, rooms *room.Registry, presenceTracker *presence.Tracker, logger Logger) *Client {
	return &Client{
		conn:       conn,
		send:       make(chan []byte, 256),
		session:    sess,
		dispatcher: dispatcher,
		sessions:   sessions,
		rooms:      rooms,
		presence:   presenceTracker,
		logger:     logger,
		closed:     make(chan struct{}),
	}
}

// Send implements session.Sender: a non-blocking enqueue that drops the
// frame and reports failure if the outbound buffer is full or the
// connection has already closed.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close implements session.Sender.
func (c *Client) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

// Start registers the session and launches the read/write pumps. It blocks
// until the connection is torn down, so callers run it as the body of the
// per-connection goroutine (typically the HTTP upgrade handler).
func (c *Client) Start(ctx context.Context) {
	c.sessions.Register(c.session)
	if err := c.presence.Online(ctx, c.session.UserID, ""); err != nil {
		c.logger.Warn(ctx, "presence online failed: user=%d err=%v", c.session.UserID, err)
	}

	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()
	c.readPump(ctx)
	c.Close()
	<-done

	// A newer connection for the same user that replaced this one owns the
	// registry entry, room memberships and presence from here on.
	if cur, ok := c.sessions.Get(c.session.UserID); ok && cur != c.session {
		return
	}
	c.sessions.Unregister(c.session.UserID)
	c.rooms.Purge(c.session.UserID)
	if err := c.presence.Offline(ctx, c.session.UserID); err != nil {
		c.logger.Warn(ctx, "presence offline failed: user=%d err=%v", c.session.UserID, err)
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.session.Touch()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn(ctx, "websocket read error: user=%d err=%v", c.session.UserID, err)
			}
			return
		}
		c.session.Touch()

		if err := c.dispatcher.Dispatch(ctx, c.session, message); err != nil {
			c.Send(errorFrame(err))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

type errorPayload struct {
	Type string `json:"type"`
	Data struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"data"`
}

func errorFrame(err error) []byte {
	var payload errorPayload
	payload.Type = "error"
	payload.Data.Code = string(apperror.KindOf(err))
	payload.Data.Message = err.Error()
	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return []byte(`{"type":"error","data":{"code":"internal","message":"failed to encode error"}}`)
	}
	return data
}

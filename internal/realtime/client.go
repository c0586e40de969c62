package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"dm-chat-service/internal/auth"
	"dm-chat-service/pkg/apperr"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxMessageSize = 8192

	// Outbound buffer per connection.
	sendBufferSize = 256
)

var ErrClientDisconnected = errors.New("client disconnected")

// Conn is the subset of *websocket.Conn the client needs. Tests substitute an
// in-memory implementation.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Client is one realtime session. The identity is set exactly once by the
// authenticator before the client is registered; no event handler ever sees
// an unauthenticated client.
type Client struct {
	id       string
	hub      *Hub
	conn     Conn
	send     chan []byte
	identity *auth.Identity
	limiter  *rateLimiter

	ctx       context.Context
	cancel    context.CancelFunc
	closed    int32 // atomic, set once on close
	cleanedUp int32 // atomic, cleanup runs exactly once

	wg sync.WaitGroup
}

func newClient(hub *Hub, conn Conn, identity *auth.Identity) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:       uuid.New().String(),
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		identity: identity,
		limiter:  newRateLimiter(hub.rateLimit, hub.rateWindow),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) UserID() string { return c.identity.UserID }

func (c *Client) Identity() *auth.Identity { return c.identity }

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// close cancels the client's context. The send channel is never closed:
// queueing races against teardown, so senders rely on the context instead
// and the channel is left to the garbage collector.
func (c *Client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.cancel()
	}
}

// cleanup deregisters the client from the hub. Disconnects can be triggered
// from both the transport path and forced-close paths, so the flag guarantees
// it runs once.
func (c *Client) cleanup() {
	if atomic.CompareAndSwapInt32(&c.cleanedUp, 0, 1) {
		c.close()
		c.hub.unregisterClient(c)
	}
}

// SendEvent queues ev for delivery. A full buffer drops the client rather
// than block the caller: a peer that cannot drain its queue is treated as
// disconnected.
func (c *Client) SendEvent(ev *Event) error {
	if c.isClosed() {
		return ErrClientDisconnected
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return ErrClientDisconnected
	default:
		c.hub.log.Warn("send buffer full, dropping client",
			"clientID", c.id, "userID", c.identity.UserID)
		c.close()
		return ErrClientDisconnected
	}
}

// sendError queues an error event. Terminal codes end the session: the error
// is queued first so the write pump can flush it before the close frame.
func (c *Client) sendError(code apperr.Code, message string) {
	_ = c.SendEvent(newErrorEvent(code, message))
	if code.Terminal() {
		c.close()
	}
}

// readPump reads events off the socket and dispatches them in arrival order.
// Events for one connection never interleave; events across connections run
// concurrently in each connection's pump goroutine.
func (c *Client) readPump() {
	c.wg.Add(1)
	defer func() {
		c.wg.Done()
		c.cleanup()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error("websocket read error",
					"clientID", c.id, "userID", c.identity.UserID, "error", err)
			}
			return
		}

		c.hub.dispatch(c, raw)
	}
}

// writePump drains the send buffer to the socket and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	c.wg.Add(1)
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		c.wg.Done()
		ticker.Stop()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			if c.isClosed() {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.ctx.Done():
			// Flush whatever was queued before teardown, then say goodbye.
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			for {
				select {
				case data := <-c.send:
					if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
				default:
					_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		}
	}
}

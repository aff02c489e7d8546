package signaling

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB is enough for SDP
	// payloads with a comfortable margin.
	maxMessageSize = 64 * 1024
)

// Client is a wrapper for a single websocket connection (one participant
// session). The session id is assigned at upgrade time and never changes.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	log  zerolog.Logger

	sessionID string
	userID    string

	// send is a buffered channel for all outbound messages. The write
	// pump is the only writer on the connection.
	send chan *protocol.Message

	mu     sync.Mutex
	callID string
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionID, userID string, log zerolog.Logger) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		sessionID: sessionID,
		userID:    userID,
		send:      make(chan *protocol.Message, 256),
		log:       log.With().Str("session_id", sessionID).Str("user_id", userID).Logger(),
	}
}

// SessionID returns the server-assigned session identity.
func (c *Client) SessionID() string { return c.sessionID }

// UserID returns the authenticated user behind this connection.
func (c *Client) UserID() string { return c.userID }

// CallID returns the call this session currently belongs to, or "".
func (c *Client) CallID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callID
}

func (c *Client) setCall(callID string) {
	c.mu.Lock()
	c.callID = callID
	c.mu.Unlock()
}

// Deliver enqueues msg for the write pump. It never blocks; a full buffer
// drops the message and reports false.
func (c *Client) Deliver(msg *protocol.Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Detach clears the session's call association. The registry calls this
// when the call ends underneath the session.
func (c *Client) Detach() {
	c.setCall("")
}

// ReadPump pumps messages from the websocket connection into the hub's
// event handler. It runs in a per-connection goroutine; all reads happen
// here, so events from one sender stay in order. When the transport drops,
// the deferred unregister performs the forced session cleanup.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected close")
			}
			break
		}

		c.hub.HandleMessage(c, &msg)
	}
}

// WritePump pumps messages from the send channel to the websocket
// connection and keeps the connection alive with pings. One goroutine per
// connection; it is the only writer.
func (c *Client) WritePump() {
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.log.Warn().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

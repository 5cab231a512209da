package hub

import (
	"sync"
	"time"

	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB, submissions carry full source files
)

// Client is one authenticated WebSocket connection. It owns at most one
// contest session at a time; the session dies with the connection.
type Client struct {
	ID     string
	UserID string
	Token  string
	Hub    *Hub

	Conn *websocket.Conn
	Send chan []byte

	sendMu     sync.Mutex
	sendClosed bool

	mu      sync.RWMutex
	session *session.Controller
	guard   *session.ExitGuard

	logger zerolog.Logger
}

func NewClient(id, userID, token string, conn *websocket.Conn, hub *Hub, logger zerolog.Logger) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Token:  token,
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		logger: logger.With().Str("clientId", id).Str("userId", userID).Logger(),
	}
}

// QueueMessage enqueues outbound bytes for WritePump. It reports false when
// nothing was queued, either because the send buffer is full or because the
// channel is already closed.
func (c *Client) QueueMessage(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// CloseSend closes the outbound channel exactly once. Session teardown keeps
// emitting events after unregistration; those late sends see the closed flag
// and are discarded.
func (c *Client) CloseSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.Send)
}

// SendClosed reports whether CloseSend has run.
func (c *Client) SendClosed() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.sendClosed
}

// Session returns the attached controller and guard, or nils when the client
// has not entered a contest.
func (c *Client) Session() (*session.Controller, *session.ExitGuard) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, c.guard
}

// AttachSession binds a freshly built session to this client. It reports
// false when a live session is already attached; an ended session is
// replaced so the user can enter another contest over the same connection.
func (c *Client) AttachSession(ctrl *session.Controller, guard *session.ExitGuard) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.Phase() != session.PhaseEnded {
		return false
	}
	c.session = ctrl
	c.guard = guard
	return true
}

// DetachSession drops a session that failed to load before it ever joined a
// room, so the client can retry entering a contest.
func (c *Client) DetachSession() {
	c.mu.Lock()
	c.session = nil
	c.guard = nil
	c.mu.Unlock()
}

// ContestID returns the contest of the attached session, or "".
func (c *Client) ContestID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.ContestID()
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("WebSocket read error")
			}
			break
		}

		c.Hub.ProcessMessage(c, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

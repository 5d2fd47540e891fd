package notifications

import (
	"encoding/json"
	"log/slog"
	"time"

	"chatroom/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Connection timing. Pings go out well inside the pong deadline so an idle
// but healthy reader is never timed out.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// The room is read-only over the socket; clients send only control frames.
	maxInboundFrame = 4096

	sendBuffer = 256
)

// EventMessagesDropped tells a slow client that it missed frames and should
// re-fetch the message list.
const EventMessagesDropped = "messages_dropped"

var dropNotice, _ = json.Marshal(Envelope{
	Type:    EventMessagesDropped,
	Payload: map[string]string{"reason": "buffer_full"},
})

// Client is one websocket connection of a signed-in viewer.
type Client struct {
	hub    *Hub
	Conn   *websocket.Conn
	UserID string

	// Send is closed by the hub when the client is unregistered.
	Send chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}
}

func (c *Client) extendReadDeadline() error {
	return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
}

// ReadPump blocks until the viewer disconnects, then unregisters the client.
// Inbound frames are discarded; reading keeps pong and close handling alive.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxInboundFrame)
	_ = c.extendReadDeadline()
	c.Conn.SetPongHandler(func(string) error { return c.extendReadDeadline() })

	for {
		_, _, err := c.Conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			slog.Warn("chat stream closed unexpectedly",
				slog.String("user_id", c.UserID),
				slog.String("error", err.Error()))
		}
		return
	}
}

// WritePump writes queued frames and keepalive pings until Send is closed or
// a write fails.
func (c *Client) WritePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.Conn.Close()
	}()

	for {
		var (
			kind    int
			payload []byte
		)
		select {
		case frame, open := <-c.Send:
			if !open {
				kind, payload = websocket.CloseMessage, nil
			} else {
				kind, payload = websocket.TextMessage, frame
			}
		case <-ping.C:
			kind, payload = websocket.PingMessage, nil
		}

		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(kind, payload); err != nil || kind == websocket.CloseMessage {
			return
		}
	}
}

// TrySend queues frame without blocking. A full buffer drops the frame and,
// space permitting, queues a messages_dropped notice instead. Sending after
// the hub closed the client is a counted no-op.
func (c *Client) TrySend(frame []byte) {
	defer func() {
		if recover() != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues("closed").Inc()
		}
	}()

	select {
	case c.Send <- frame:
		return
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
	slog.Warn("chat stream buffer full, frame dropped", slog.String("user_id", c.UserID))
	select {
	case c.Send <- dropNotice:
	default:
	}
}

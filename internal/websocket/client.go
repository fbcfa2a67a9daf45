package websocket

import (
	"encoding/json"
	"time"

	"cipher-relay/internal/models"
	"cipher-relay/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBufferSize = 256
)

// Conn is the subset of *websocket.Conn the relay touches. Tests substitute
// an in-memory implementation.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Client struct {
	hub               *Hub
	conn              Conn
	send              chan []byte
	connID            string
	clientID          string
	encryptedUsername string
	maxFrameBytes     int64
}

func NewClient(hub *Hub, conn Conn, connID, clientID, encryptedUsername string, maxFrameBytes int64) *Client {
	return &Client{
		hub:               hub,
		conn:              conn,
		send:              make(chan []byte, sendBufferSize),
		connID:            connID,
		clientID:          clientID,
		encryptedUsername: encryptedUsername,
		maxFrameBytes:     maxFrameBytes,
	}
}

func (c *Client) ConnID() string { return c.connID }

// SendSessionSet queues the one-time session_set event carrying the
// effective client id. Must be called before the client is handed to the
// hub so it precedes every room event on the wire.
func (c *Client) SendSessionSet() {
	c.enqueue(models.Event{Type: models.EventSessionSet, ClientID: c.clientID})
}

// enqueue marshals evt onto the send channel without blocking. A full
// channel means the peer is not draining; the frame is dropped and the
// connection is left to the hub's slow-consumer handling.
func (c *Client) enqueue(evt models.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		logger.Error("Error marshaling %s event: %v", evt.Type, err)
		return
	}
	select {
	case c.send <- data:
	default:
		logger.Warn("Send buffer full for connection %s, dropping %s event", c.connID, evt.Type)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error on connection %s: %v", c.connID, err)
			}
			break
		}

		// Only the envelope is parsed; ciphertext and iv pass through as
		// raw bytes.
		var evt models.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			logger.Debug("Dropping malformed frame from connection %s: %v", c.connID, err)
			continue
		}

		c.hub.Relay(c, evt.Ciphertext, evt.IV)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("Write error on connection %s: %v", c.connID, err)
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

package network

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/MRamiBalles/reactor-sim/internal/engine"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Action is an operator command sent by a WebSocket client.
type Action struct {
	Type  string   `json:"type"`
	Value *float64 `json:"value,omitempty"`
}

// Reply answers a single Action. Accepted commands also produce a state
// frame on the broadcast stream.
type Reply struct {
	Type    string `json:"type"` // "ack" or "error"
	Command string `json:"command"`
	Error   string `json:"error,omitempty"`
}

// Client is an active WebSocket connection.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	replies chan []byte
	limiter *rate.Limiter
}

// NewClient creates a client for conn. Its commands are throttled by the
// hub's per-client rate settings.
func NewClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		id:      id,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, hub.buffers.ClientSendBuffer),
		replies: make(chan []byte, 8),
		limiter: rate.NewLimiter(rate.Limit(hub.buffers.CommandsPerSecond), hub.buffers.CommandBurst),
	}
}

// ReadPump reads actions from the connection and executes them on the
// driver.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordWSError()
				c.hub.logger.Warn("websocket read failed", "client", c.id, "error", err)
			}
			return
		}
		c.hub.metrics.RecordWSMessage(true)

		var action Action
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Warn("failed to parse action", "client", c.id, "error", err)
			c.reply(Reply{Type: "error", Error: "malformed action"})
			continue
		}
		c.handleAction(action)
	}
}

func (c *Client) handleAction(action Action) {
	if !c.limiter.Allow() {
		c.hub.metrics.RecordThrottled()
		c.hub.logger.Debug("action throttled", "client", c.id, "command", action.Type)
		c.reply(Reply{Type: "error", Command: action.Type, Error: "rate limit exceeded"})
		return
	}

	cmd := engine.Command{Name: action.Type, Value: action.Value, Actor: c.id}
	if _, err := c.hub.driver.Execute(cmd); err != nil {
		c.reply(Reply{Type: "error", Command: action.Type, Error: err.Error()})
		return
	}
	c.reply(Reply{Type: "ack", Command: action.Type})
}

func (c *Client) reply(r Reply) {
	payload, err := json.Marshal(r)
	if err != nil {
		return
	}
	select {
	case c.replies <- payload:
	default:
		c.hub.metrics.RecordDroppedFrame()
	}
}

// WritePump writes frames and replies to the connection and keeps it alive
// with pings.
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
			if !c.write(message) {
				return
			}
		case message := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.write(message) {
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

func (c *Client) write(message []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.hub.metrics.RecordWSError()
		return false
	}
	c.hub.metrics.RecordWSMessage(false)
	return true
}

package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 64
)

// ClientCommand is what a connected client may send: room membership changes
// and typing indicators.
type ClientCommand struct {
	Action           string `json:"action"`
	Room             string `json:"room,omitempty"`
	ServiceRequestID string `json:"service_request_id,omitempty"`
}

const (
	ActionJoin        = "join"
	ActionLeave       = "leave"
	ActionTypingStart = "typing_start"
	ActionTypingStop  = "typing_stop"
)

// Client is one websocket connection bound to an authenticated actor.
type Client struct {
	Actor *auth.Actor

	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]bool
}

func NewClient(hub *Hub, conn *websocket.Conn, actor *auth.Actor) *Client {
	return &Client{
		Actor: actor,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendQueueSize),
		rooms: make(map[string]bool),
	}
}

// Run registers the client and services the connection until it drops.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd ClientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.sendError("invalid command")
			continue
		}
		c.handleCommand(ctx, cmd)
	}
}

func (c *Client) handleCommand(ctx context.Context, cmd ClientCommand) {
	switch cmd.Action {
	case ActionJoin:
		if err := c.hub.Join(ctx, c, cmd.Room); err != nil {
			c.sendError("cannot join room " + cmd.Room)
		}
	case ActionLeave:
		c.hub.Leave(c, cmd.Room)
	case ActionTypingStart:
		if c.rooms[ChatRoom(cmd.ServiceRequestID)] {
			c.hub.EmitTyping(cmd.ServiceRequestID, c.Actor.ID(), true)
		}
	case ActionTypingStop:
		if c.rooms[ChatRoom(cmd.ServiceRequestID)] {
			c.hub.EmitTyping(cmd.ServiceRequestID, c.Actor.ID(), false)
		}
	default:
		c.sendError("unknown action " + cmd.Action)
	}
}

func (c *Client) sendError(msg string) {
	payload, err := json.Marshal(ServerMessage{
		Event: "error",
		Data:  map[string]string{"message": msg},
	})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
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
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

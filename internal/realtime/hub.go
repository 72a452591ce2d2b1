package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
)

// Event names pushed to connected clients.
const (
	EventNewNotification     = "new_notification"
	EventServiceRequestEvent = "service_request_updated"
	EventTaskEvent           = "task_updated"
	EventApplicationEvent    = "application_updated"
	EventNewChatMessage      = "new_chat_message"
	EventUserTyping          = "user_typing"
	EventAdminNotification   = "admin_notification_created"
)

// ServerMessage is the envelope for everything pushed over a socket.
type ServerMessage struct {
	Event string      `json:"event"`
	Room  string      `json:"room,omitempty"`
	Data  interface{} `json:"data"`
}

// RoomAuthorizer decides whether an actor may join a room. The hub only
// handles membership and fan-out; entity-level access checks live behind
// this interface.
type RoomAuthorizer interface {
	CanJoinRoom(ctx context.Context, actor *auth.Actor, roomPrefix, entityID string) error
}

// Hub tracks connected clients and their room memberships.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]map[*Client]bool
	clients    map[*Client]bool
	authorizer RoomAuthorizer
	logger     utils.Logger
}

func NewHub(authorizer RoomAuthorizer, logger utils.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		clients:    make(map[*Client]bool),
		authorizer: authorizer,
		logger:     logger,
	}
}

// Register adds the client and auto-joins its personal and role rooms.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	h.joinLocked(client, UserRoom(client.Actor.ID()))
	h.joinLocked(client, RoleRoom(client.Actor.Role()))
	if client.Actor.Student != nil {
		h.joinLocked(client, StudentRoom(client.Actor.Student.ID))
	}

	h.logger.Debug("realtime client connected",
		"user_id", client.Actor.ID(),
		"role", client.Actor.Role())
}

// Unregister drops the client from every room and closes its send queue.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	for room := range client.rooms {
		h.leaveLocked(client, room)
	}
	close(client.send)

	h.logger.Debug("realtime client disconnected", "user_id", client.Actor.ID())
}

// Join validates the room name, checks authorization, then adds the client.
func (h *Hub) Join(ctx context.Context, client *Client, room string) error {
	prefix, id, err := ParseRoom(room)
	if err != nil {
		return err
	}
	if err := h.authorizer.CanJoinRoom(ctx, client.Actor, prefix, id); err != nil {
		return err
	}

	h.mu.Lock()
	h.joinLocked(client, room)
	h.mu.Unlock()
	return nil
}

func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	h.leaveLocked(client, room)
	h.mu.Unlock()
}

func (h *Hub) joinLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[client] = true
	client.rooms[room] = true
}

func (h *Hub) leaveLocked(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)
}

// Emit pushes an event to every member of the room. Slow clients whose send
// queue is full are skipped rather than blocking the emitter.
func (h *Hub) Emit(room, event string, data interface{}) {
	payload, err := json.Marshal(ServerMessage{Event: event, Room: room, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal realtime event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("dropping realtime event for slow client",
				"user_id", client.Actor.ID(),
				"event", event)
		}
	}
}

// EmitToUsers pushes an event to each user's personal room.
func (h *Hub) EmitToUsers(userIDs []string, event string, data interface{}) {
	for _, userID := range userIDs {
		h.Emit(UserRoom(userID), event, data)
	}
}

// EmitTyping broadcasts a typing indicator to a chat room, excluding the
// typist's own connections.
func (h *Hub) EmitTyping(serviceRequestID, userID string, typing bool) {
	room := ChatRoom(serviceRequestID)
	payload, err := json.Marshal(ServerMessage{
		Event: EventUserTyping,
		Room:  room,
		Data: map[string]interface{}{
			"service_request_id": serviceRequestID,
			"user_id":            userID,
			"typing":             typing,
		},
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		if client.Actor.ID() == userID {
			continue
		}
		select {
		case client.send <- payload:
		default:
		}
	}
}

// RoomSize reports current membership, used by tests and the health endpoint.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

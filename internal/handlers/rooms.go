package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"artchat-backend/internal/pubsub"
	"artchat-backend/internal/utils"
)

// Conn is the write side of a socket connection. *websocket.Conn satisfies
// it; tests substitute a capture.
type Conn interface {
	WriteJSON(v interface{}) error
}

// UserRoom is the per-user broadcast group, used for cross-device
// notifications such as refresh_chats.
func UserRoom(userID int) string {
	return "user:" + strconv.Itoa(userID)
}

// ChatRoom is the per-chat broadcast group for an open conversation.
func ChatRoom(chatID string) string {
	return "chat:" + chatID
}

const broadcastChannel = "artchat:broadcast"

// envelope is what travels over the broker. Exclude carries the originating
// connection id (uuid, globally unique) so the sender's own socket can be
// skipped on whichever instance hosts it.
type envelope struct {
	Room    string          `json:"room,omitempty"`
	Exclude string          `json:"exclude,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type ConnMeta struct {
	UserID   int
	Username string
	Conn     Conn
}

// RoomManager tracks live connections and their room memberships on this
// instance, and fans events out through the broker so every instance
// delivers to its own members.
type RoomManager struct {
	// roomName -> connectionID -> Conn
	rooms map[string]map[string]Conn
	mu    sync.RWMutex
	// connID -> metadata (includes connection reference)
	connMeta map[string]ConnMeta

	broker      pubsub.Broker
	unsubscribe func()
}

func NewRoomManager(broker pubsub.Broker) (*RoomManager, error) {
	m := &RoomManager{
		rooms:    make(map[string]map[string]Conn),
		connMeta: make(map[string]ConnMeta),
		broker:   broker,
	}

	stop, err := broker.Subscribe(context.Background(), broadcastChannel, m.receive)
	if err != nil {
		return nil, err
	}
	m.unsubscribe = stop
	return m, nil
}

// Close cancels the broker subscription.
func (m *RoomManager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m *RoomManager) receive(payload []byte) {
	var env envelope
	if err := utils.SafeJSONParse(payload, &env); err != nil {
		utils.LogError(err, "Broadcast decode")
		return
	}
	m.deliverLocal(env.Room, env.Payload, env.Exclude)
}

func (m *RoomManager) deliverLocal(room string, data json.RawMessage, excludeConnID string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if room == "" {
		for id, meta := range m.connMeta {
			if id == excludeConnID || meta.Conn == nil {
				continue
			}
			utils.LogError(meta.Conn.WriteJSON(data), "BroadcastToAll")
		}
		return
	}

	if connections, ok := m.rooms[room]; ok {
		for id, conn := range connections {
			if id == excludeConnID {
				continue
			}
			// A failed write is left for the connection's own read loop to
			// clean up on disconnect.
			utils.LogError(conn.WriteJSON(data), "Broadcast")
		}
	}
}

// Broadcast sends a message to every connection in the room, across all
// gateway instances, optionally excluding the originating connection.
func (m *RoomManager) Broadcast(room string, message interface{}, excludeConnID string) {
	data, err := json.Marshal(message)
	if err != nil {
		utils.LogError(err, "Broadcast marshal")
		return
	}
	env, err := json.Marshal(envelope{Room: room, Exclude: excludeConnID, Payload: data})
	if err != nil {
		utils.LogError(err, "Broadcast marshal")
		return
	}
	utils.LogError(m.broker.Publish(context.Background(), broadcastChannel, env), "Broadcast publish")
}

// BroadcastToAll sends a message to every connection on every instance.
func (m *RoomManager) BroadcastToAll(message interface{}) {
	m.Broadcast("", message, "")
}

// SendToUser sends a message to all of a user's connections via their user
// room.
func (m *RoomManager) SendToUser(userID int, message interface{}) {
	m.Broadcast(UserRoom(userID), message, "")
}

// Join adds a connection to a room. A connection may be in several rooms at
// once (its own user room plus any open chats).
func (m *RoomManager) Join(room string, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.connMeta[connID]
	if !ok {
		return
	}
	if _, ok := m.rooms[room]; !ok {
		m.rooms[room] = make(map[string]Conn)
	}
	m.rooms[room][connID] = meta.Conn
}

func (m *RoomManager) Leave(room string, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[room]; ok {
		delete(m.rooms[room], connID)
		if len(m.rooms[room]) == 0 {
			delete(m.rooms, room)
		}
	}
}

// RegisterConnection stores metadata for a new websocket connection.
// Returns true if this is the first connection for this user (user just came online)
func (m *RoomManager) RegisterConnection(connID string, userID int, username string, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasOnline := false
	for _, meta := range m.connMeta {
		if meta.UserID == userID {
			wasOnline = true
			break
		}
	}

	m.connMeta[connID] = ConnMeta{UserID: userID, Username: username, Conn: conn}

	return !wasOnline
}

// UnregisterConnection removes metadata and removes the connection from any rooms.
// Returns true if this was the last connection for the user (user is now offline)
func (m *RoomManager) UnregisterConnection(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, exists := m.connMeta[connID]
	if !exists {
		return false
	}
	userID := meta.UserID

	for room, conns := range m.rooms {
		if _, ok := conns[connID]; ok {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(m.rooms, room)
			}
		}
	}

	delete(m.connMeta, connID)

	for _, other := range m.connMeta {
		if other.UserID == userID {
			return false // User still has other connections, still online
		}
	}

	return true // This was the last connection, user is now offline
}

// IsUserOnline checks if any active connection on this instance belongs to
// the given user.
func (m *RoomManager) IsUserOnline(userID int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, meta := range m.connMeta {
		if meta.UserID == userID {
			return true
		}
	}
	return false
}

// IsUserInRoom checks if one of the user's connections is in the room.
func (m *RoomManager) IsUserInRoom(userID int, room string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roomConns, ok := m.rooms[room]
	if !ok {
		return false
	}

	for connID := range roomConns {
		if meta, ok := m.connMeta[connID]; ok && meta.UserID == userID {
			return true
		}
	}
	return false
}

// CountUserConnections returns the number of active connections for a user
// on this instance.
func (m *RoomManager) CountUserConnections(userID int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, meta := range m.connMeta {
		if meta.UserID == userID {
			count++
		}
	}
	return count
}

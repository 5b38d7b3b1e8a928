package handlers

import (
	"encoding/json"
	"sync"
	"testing"

	"artchat-backend/internal/pubsub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn captures everything written to it as decoded JSON objects.
type fakeConn struct {
	mu     sync.Mutex
	events []map[string]interface{}
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, m)
	return nil
}

func (f *fakeConn) named(event string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]interface{}
	for _, e := range f.events {
		if e["event"] == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func newTestManager(t *testing.T) *RoomManager {
	t.Helper()
	m, err := NewRoomManager(pubsub.NewLocal())
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestRoomManagerBroadcast(t *testing.T) {
	m := newTestManager(t)

	alice1 := &fakeConn{}
	alice2 := &fakeConn{}
	bob := &fakeConn{}
	m.RegisterConnection("a1", 1, "alice", alice1)
	m.RegisterConnection("a2", 1, "alice", alice2)
	m.RegisterConnection("b1", 2, "bob", bob)

	m.Join("chat:c1", "a1")
	m.Join("chat:c1", "b1")

	m.Broadcast("chat:c1", map[string]interface{}{"event": "ping"}, "a1")

	assert.Equal(t, 0, alice1.count(), "excluded sender must not receive")
	assert.Equal(t, 0, alice2.count(), "connection outside the room must not receive")
	assert.Equal(t, 1, bob.count())
}

func TestRoomManagerSendToUser(t *testing.T) {
	m := newTestManager(t)

	alice1 := &fakeConn{}
	alice2 := &fakeConn{}
	bob := &fakeConn{}
	m.RegisterConnection("a1", 1, "alice", alice1)
	m.RegisterConnection("a2", 1, "alice", alice2)
	m.RegisterConnection("b1", 2, "bob", bob)
	m.Join(UserRoom(1), "a1")
	m.Join(UserRoom(1), "a2")
	m.Join(UserRoom(2), "b1")

	m.SendToUser(1, map[string]interface{}{"event": "refresh_chats"})

	// Cross-device: every connection of the user receives it.
	assert.Equal(t, 1, alice1.count())
	assert.Equal(t, 1, alice2.count())
	assert.Equal(t, 0, bob.count())
}

func TestRoomManagerBroadcastToAll(t *testing.T) {
	m := newTestManager(t)

	alice := &fakeConn{}
	bob := &fakeConn{}
	m.RegisterConnection("a1", 1, "alice", alice)
	m.RegisterConnection("b1", 2, "bob", bob)

	m.BroadcastToAll(map[string]interface{}{"event": "user_status_update"})

	assert.Equal(t, 1, alice.count())
	assert.Equal(t, 1, bob.count())
}

func TestRoomManagerRegisterUnregister(t *testing.T) {
	m := newTestManager(t)

	assert.True(t, m.RegisterConnection("a1", 1, "alice", &fakeConn{}), "first connection brings user online")
	assert.False(t, m.RegisterConnection("a2", 1, "alice", &fakeConn{}), "second connection does not")
	assert.True(t, m.IsUserOnline(1))
	assert.Equal(t, 2, m.CountUserConnections(1))

	m.Join("chat:c1", "a1")
	assert.True(t, m.IsUserInRoom(1, "chat:c1"))

	assert.False(t, m.UnregisterConnection("a1"), "user still has another connection")
	assert.False(t, m.IsUserInRoom(1, "chat:c1"), "room membership cleaned up")
	assert.True(t, m.UnregisterConnection("a2"), "last connection takes user offline")
	assert.False(t, m.IsUserOnline(1))

	assert.False(t, m.UnregisterConnection("unknown"))
}

func TestRoomManagerCrossInstance(t *testing.T) {
	// Two managers on one broker behave like two gateway processes sharing
	// Redis: a broadcast on one reaches members registered on the other.
	broker := pubsub.NewLocal()
	m1, err := NewRoomManager(broker)
	require.NoError(t, err)
	defer m1.Close()
	m2, err := NewRoomManager(broker)
	require.NoError(t, err)
	defer m2.Close()

	remote := &fakeConn{}
	m2.RegisterConnection("b1", 2, "bob", remote)
	m2.Join("chat:c1", "b1")

	m1.Broadcast("chat:c1", map[string]interface{}{"event": "ping"}, "a1")

	require.Equal(t, 1, remote.count())
	assert.Equal(t, "ping", remote.events[0]["event"])
}

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"artchat-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores() *MemoryStores {
	s := NewMemoryStores()
	s.AddUser(1, "alice", "https://img.example/alice.png")
	s.AddUser(2, "bob", "https://img.example/bob.png")
	s.AddUser(3, "carol", "")
	return s
}

func TestFindOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("pair is order independent", func(t *testing.T) {
		s := newTestStores()

		first, created, err := s.FindOrCreate(ctx, 1, 2)
		require.NoError(t, err)
		assert.True(t, created)

		second, created, err := s.FindOrCreate(ctx, 2, 1)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("rejects invalid pairs", func(t *testing.T) {
		s := newTestStores()

		_, _, err := s.FindOrCreate(ctx, 1, 1)
		assert.ErrorIs(t, err, ErrValidation)

		_, _, err = s.FindOrCreate(ctx, 0, 2)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("concurrent calls produce one chat", func(t *testing.T) {
		s := newTestStores()

		ids := make([]string, 20)
		var wg sync.WaitGroup
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				a, b := 1, 2
				if i%2 == 1 {
					a, b = 2, 1
				}
				chat, _, err := s.FindOrCreate(ctx, a, b)
				if assert.NoError(t, err) {
					ids[i] = chat.ID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})
}

func TestAppendAndListByChat(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()
	chat, _, err := s.FindOrCreate(ctx, 1, 2)
	require.NoError(t, err)

	t.Run("rejects empty text", func(t *testing.T) {
		_, err := s.Append(ctx, chat.ID, 1, 2, "   ", "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects non-participants", func(t *testing.T) {
		_, err := s.Append(ctx, chat.ID, 1, 3, "hi", "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects unknown chat", func(t *testing.T) {
		_, err := s.Append(ctx, "no-such-chat", 1, 2, "hi", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("confirmed id shows up in the listing in order", func(t *testing.T) {
		first, err := s.Append(ctx, chat.ID, 1, 2, "hello", "tmp-1")
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, "tmp-1", first.ClientID)
		assert.Equal(t, models.StatusSent, first.Status)

		second, err := s.Append(ctx, chat.ID, 2, 1, "hey yourself", "")
		require.NoError(t, err)

		messages, err := s.ListByChat(ctx, chat.ID, 0, time.Time{})
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, first.ID, messages[0].ID)
		assert.Equal(t, second.ID, messages[1].ID)
		for i := 1; i < len(messages); i++ {
			assert.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
		}
	})

	t.Run("limit keeps the newest messages", func(t *testing.T) {
		messages, err := s.ListByChat(ctx, chat.ID, 1, time.Time{})
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "hey yourself", messages[0].Text)
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()
	chat, _, err := s.FindOrCreate(ctx, 1, 2)
	require.NoError(t, err)
	msg, err := s.Append(ctx, chat.ID, 1, 2, "hello", "")
	require.NoError(t, err)

	t.Run("unknown message", func(t *testing.T) {
		_, _, err := s.UpdateStatus(ctx, "missing", models.StatusViewed)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("advances forward only", func(t *testing.T) {
		updated, changed, err := s.UpdateStatus(ctx, msg.ID, models.StatusDelivered)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, models.StatusDelivered, updated.Status)

		// Backward transition is a silent no-op, not an error.
		updated, changed, err = s.UpdateStatus(ctx, msg.ID, models.StatusSent)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, models.StatusDelivered, updated.Status)

		updated, changed, err = s.UpdateStatus(ctx, msg.ID, models.StatusViewed)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, models.StatusViewed, updated.Status)

		// VIEWED is terminal.
		updated, changed, err = s.UpdateStatus(ctx, msg.ID, models.StatusViewed)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, models.StatusViewed, updated.Status)
	})
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()

	chatAB, _, err := s.FindOrCreate(ctx, 1, 2)
	require.NoError(t, err)
	chatAC, _, err := s.FindOrCreate(ctx, 1, 3)
	require.NoError(t, err)

	_, err = s.Append(ctx, chatAB.ID, 1, 2, "first", "")
	require.NoError(t, err)
	m2, err := s.Append(ctx, chatAB.ID, 1, 2, "second", "")
	require.NoError(t, err)
	viewed, err := s.Append(ctx, chatAB.ID, 2, 1, "reply", "")
	require.NoError(t, err)
	_, _, err = s.UpdateStatus(ctx, viewed.ID, models.StatusViewed)
	require.NoError(t, err)

	t.Run("unviewed count per receiver", func(t *testing.T) {
		chats, err := s.ListForUser(ctx, 2)
		require.NoError(t, err)
		require.Len(t, chats, 1)
		// Two messages addressed to user 2, none viewed yet.
		assert.Equal(t, 2, chats[0].UnviewedCount)
		require.NotNil(t, chats[0].LatestMessage)
		assert.Equal(t, viewed.ID, chats[0].LatestMessage.ID)

		chats, err = s.ListForUser(ctx, 1)
		require.NoError(t, err)
		require.Len(t, chats, 2)
		for _, cs := range chats {
			if cs.ID == chatAB.ID {
				// The only message addressed to user 1 was viewed.
				assert.Equal(t, 0, cs.UnviewedCount)
			}
		}
	})

	t.Run("ordered by latest activity, empty chats fall back to creation", func(t *testing.T) {
		chats, err := s.ListForUser(ctx, 1)
		require.NoError(t, err)
		require.Len(t, chats, 2)
		assert.Equal(t, chatAB.ID, chats[0].ID)
		assert.Equal(t, chatAC.ID, chats[1].ID)
		assert.Nil(t, chats[1].LatestMessage)
	})

	t.Run("count tracks later views", func(t *testing.T) {
		_, _, err := s.UpdateStatus(ctx, m2.ID, models.StatusViewed)
		require.NoError(t, err)

		chats, err := s.ListForUser(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, chats[0].UnviewedCount)
	})
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()
	chat, _, err := s.FindOrCreate(ctx, 1, 2)
	require.NoError(t, err)

	t.Run("includes both profiles with presence", func(t *testing.T) {
		_, _, err := s.MarkOnline(ctx, 2)
		require.NoError(t, err)

		got, err := s.GetByID(ctx, chat.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Sender.Username)
		assert.Equal(t, "bob", got.Receiver.Username)
		assert.Equal(t, models.PresenceOffline, got.Sender.Status)
		assert.Equal(t, models.PresenceOnline, got.Receiver.Status)
	})

	t.Run("non-participant is rejected", func(t *testing.T) {
		_, err := s.GetByID(ctx, chat.ID, 3)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown chat", func(t *testing.T) {
		_, err := s.GetByID(ctx, "missing", 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPresence(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()

	t.Run("never seen reads offline", func(t *testing.T) {
		rec, err := s.GetStatus(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, models.PresenceOffline, rec.Status)
		assert.Nil(t, rec.LastSeen)
	})

	t.Run("transitions report change exactly once", func(t *testing.T) {
		rec, changed, err := s.MarkOnline(ctx, 1)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, models.PresenceOnline, rec.Status)
		assert.Nil(t, rec.LastSeen)

		_, changed, err = s.MarkOnline(ctx, 1)
		require.NoError(t, err)
		assert.False(t, changed)

		rec, changed, err = s.MarkOffline(ctx, 1)
		require.NoError(t, err)
		assert.True(t, changed)
		require.NotNil(t, rec.LastSeen)

		// lastSeen is stable until the next connect.
		got, err := s.GetStatus(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, got.LastSeen)
		assert.Equal(t, *rec.LastSeen, *got.LastSeen)
	})
}

package services

import (
	"context"
	"testing"

	"artchat-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkDelivered(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()
	delivery := NewDeliveryService(s)

	chat, _, err := s.FindOrCreate(ctx, 1, 2)
	require.NoError(t, err)
	msg, err := s.Append(ctx, chat.ID, 1, 2, "hello", "")
	require.NoError(t, err)

	updated, changed, err := delivery.MarkDelivered(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.StatusDelivered, updated.Status)

	// Second delivery confirmation is a no-op.
	_, changed, err = delivery.MarkDelivered(ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMarkViewed(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()
	delivery := NewDeliveryService(s)

	chat, _, err := s.FindOrCreate(ctx, 1, 2)
	require.NoError(t, err)
	msg, err := s.Append(ctx, chat.ID, 1, 2, "hello", "")
	require.NoError(t, err)

	t.Run("wrong chat id", func(t *testing.T) {
		_, _, err := delivery.MarkViewed(ctx, "other-chat", msg.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := s.Get(ctx, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSent, got.Status)
	})

	t.Run("viewed exactly once", func(t *testing.T) {
		updated, changed, err := delivery.MarkViewed(ctx, chat.ID, msg.ID)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, models.StatusViewed, updated.Status)

		// Network retry of the same confirmation.
		updated, changed, err = delivery.MarkViewed(ctx, chat.ID, msg.ID)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, models.StatusViewed, updated.Status)
	})

	t.Run("delivered after viewed stays viewed", func(t *testing.T) {
		updated, changed, err := delivery.MarkDelivered(ctx, msg.ID)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, models.StatusViewed, updated.Status)
	})
}

func TestCatchUpDelivered(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()
	delivery := NewDeliveryService(s)

	chat, _, err := s.FindOrCreate(ctx, 1, 2)
	require.NoError(t, err)

	sent1, err := s.Append(ctx, chat.ID, 1, 2, "one", "")
	require.NoError(t, err)
	sent2, err := s.Append(ctx, chat.ID, 1, 2, "two", "")
	require.NoError(t, err)
	// Addressed to user 1, must not be touched by user 2's catch-up.
	other, err := s.Append(ctx, chat.ID, 2, 1, "reply", "")
	require.NoError(t, err)

	advanced, err := delivery.CatchUpDelivered(ctx, chat.ID, 2)
	require.NoError(t, err)
	require.Len(t, advanced, 2)
	assert.Equal(t, sent1.ID, advanced[0].ID)
	assert.Equal(t, sent2.ID, advanced[1].ID)

	got, err := s.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, got.Status)

	// Nothing pending on the second pass.
	advanced, err = delivery.CatchUpDelivered(ctx, chat.ID, 2)
	require.NoError(t, err)
	assert.Empty(t, advanced)
}

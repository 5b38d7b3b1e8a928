package services

import (
	"context"
	"time"

	"artchat-backend/internal/models"
)

// Directory maps user pairs to chats. (A,B) and (B,A) are the same chat.
type Directory interface {
	// FindOrCreate returns the chat for the pair, creating it on first
	// contact. The bool reports whether a new chat was created. Safe under
	// concurrent calls from both participants.
	FindOrCreate(ctx context.Context, userA, userB int) (*models.Chat, bool, error)
	// ListForUser returns every chat the user participates in, enriched
	// with the latest message and the user's unviewed count, newest
	// activity first.
	ListForUser(ctx context.Context, userID int) ([]models.ChatSummary, error)
	// GetByID returns the chat with both participants' profile and
	// presence. Requesters that are not participants get ErrForbidden.
	GetByID(ctx context.Context, chatID string, requesterID int) (*models.ChatSummary, error)
}

// Messages is the durable ordered message log.
type Messages interface {
	// Append assigns an authoritative id and timestamp, persists with
	// status SENT, and returns the confirmed record.
	Append(ctx context.Context, chatID string, senderID, receiverID int, text, clientID string) (*models.Message, error)
	// ListByChat returns messages ascending by creation time. limit <= 0
	// and a zero before mean full history.
	ListByChat(ctx context.Context, chatID string, limit int, before time.Time) ([]models.Message, error)
	// Get returns a single message by id.
	Get(ctx context.Context, messageID string) (*models.Message, error)
	// UpdateStatus advances the message status. The bool reports whether
	// the status actually changed; non-advancing updates are no-ops.
	UpdateStatus(ctx context.Context, messageID string, status models.MessageStatus) (*models.Message, bool, error)
	// ListPending returns the chat's SENT messages addressed to receiverID.
	ListPending(ctx context.Context, chatID string, receiverID int) ([]models.Message, error)
}

// Presence tracks per-user online/offline state.
type Presence interface {
	// MarkOnline/MarkOffline return the resulting record and whether the
	// state actually changed, so callers broadcast one update per
	// transition.
	MarkOnline(ctx context.Context, userID int) (*models.PresenceRecord, bool, error)
	MarkOffline(ctx context.Context, userID int) (*models.PresenceRecord, bool, error)
	// GetStatus returns offline with nil lastSeen for never-seen users.
	GetStatus(ctx context.Context, userID int) (*models.PresenceRecord, error)
}

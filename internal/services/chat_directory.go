package services

import (
	"context"
	"time"

	"artchat-backend/internal/db"
	"artchat-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ChatService is the Postgres-backed chat directory.
type ChatService struct{}

func NewChatService() *ChatService {
	return &ChatService{}
}

func normalizePair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func (s *ChatService) FindOrCreate(ctx context.Context, userA, userB int) (*models.Chat, bool, error) {
	if userA == 0 || userB == 0 || userA == userB {
		return nil, false, ErrValidation
	}
	low, high := normalizePair(userA, userB)

	lookup := func(ctx context.Context) (*models.Chat, error) {
		var chat models.Chat
		err := db.Pool.QueryRow(ctx,
			`SELECT id, sender_id, receiver_id, created_at FROM chats WHERE user_low = $1 AND user_high = $2`,
			low, high,
		).Scan(&chat.ID, &chat.SenderID, &chat.ReceiverID, &chat.CreatedAt)
		if err != nil {
			return nil, err
		}
		return &chat, nil
	}

	if chat, err := lookup(ctx); err == nil {
		return chat, false, nil
	} else if err != pgx.ErrNoRows {
		return nil, false, err
	}

	// Insert-on-conflict-do-nothing: if both participants race here, exactly
	// one insert wins and the loser falls through to the lookup below.
	newID := uuid.New().String()
	var chat models.Chat
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO chats (id, sender_id, receiver_id, user_low, user_high)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_low, user_high) DO NOTHING
		 RETURNING id, sender_id, receiver_id, created_at`,
		newID, userA, userB, low, high,
	).Scan(&chat.ID, &chat.SenderID, &chat.ReceiverID, &chat.CreatedAt)
	if err == nil {
		return &chat, true, nil
	}
	if err != pgx.ErrNoRows && !isUniqueViolation(err) {
		return nil, false, err
	}

	existing, err := lookup(ctx)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *ChatService) ListForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	query := `
		SELECT c.id, c.sender_id, c.receiver_id, c.created_at,
		       su.id, su.username, su.profile_image_url, COALESCE(sp.status, 'offline'), sp.last_seen,
		       ru.id, ru.username, ru.profile_image_url, COALESCE(rp.status, 'offline'), rp.last_seen,
		       m.id, m.client_id, m.sender_id, m.receiver_id, m.text, m.status, m.created_at,
		       (SELECT count(*) FROM messages n
		        WHERE n.chat_id = c.id AND n.receiver_id = $1 AND n.status <> 'VIEWED')
		FROM chats c
		JOIN users su ON su.id = c.sender_id
		JOIN users ru ON ru.id = c.receiver_id
		LEFT JOIN presence sp ON sp.user_id = su.id
		LEFT JOIN presence rp ON rp.user_id = ru.id
		LEFT JOIN LATERAL (
			SELECT id, client_id, sender_id, receiver_id, text, status, created_at
			FROM messages WHERE chat_id = c.id
			ORDER BY created_at DESC LIMIT 1
		) m ON true
		WHERE c.user_low = $1 OR c.user_high = $1
		ORDER BY COALESCE(m.created_at, c.created_at) DESC`

	var summaries []models.ChatSummary
	err := withRetry(ctx, func() error {
		rows, err := db.Pool.Query(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		summaries = nil
		for rows.Next() {
			var cs models.ChatSummary
			var mID, mClientID, mText, mStatus *string
			var mSenderID, mReceiverID *int
			var mCreatedAt *time.Time
			if err := rows.Scan(
				&cs.ID, &cs.SenderID, &cs.ReceiverID, &cs.CreatedAt,
				&cs.Sender.ID, &cs.Sender.Username, &cs.Sender.ProfileImageURL, &cs.Sender.Status, &cs.Sender.LastSeen,
				&cs.Receiver.ID, &cs.Receiver.Username, &cs.Receiver.ProfileImageURL, &cs.Receiver.Status, &cs.Receiver.LastSeen,
				&mID, &mClientID, &mSenderID, &mReceiverID, &mText, &mStatus, &mCreatedAt,
				&cs.UnviewedCount,
			); err != nil {
				return err
			}
			if mID != nil {
				cs.LatestMessage = &models.Message{
					ID:         *mID,
					ClientID:   *mClientID,
					ChatID:     cs.ID,
					SenderID:   *mSenderID,
					ReceiverID: *mReceiverID,
					Text:       *mText,
					Status:     models.MessageStatus(*mStatus),
					CreatedAt:  *mCreatedAt,
				}
			}
			summaries = append(summaries, cs)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *ChatService) GetByID(ctx context.Context, chatID string, requesterID int) (*models.ChatSummary, error) {
	query := `
		SELECT c.id, c.sender_id, c.receiver_id, c.created_at,
		       su.id, su.username, su.profile_image_url, COALESCE(sp.status, 'offline'), sp.last_seen,
		       ru.id, ru.username, ru.profile_image_url, COALESCE(rp.status, 'offline'), rp.last_seen
		FROM chats c
		JOIN users su ON su.id = c.sender_id
		JOIN users ru ON ru.id = c.receiver_id
		LEFT JOIN presence sp ON sp.user_id = su.id
		LEFT JOIN presence rp ON rp.user_id = ru.id
		WHERE c.id = $1`

	var cs models.ChatSummary
	err := db.Pool.QueryRow(ctx, query, chatID).Scan(
		&cs.ID, &cs.SenderID, &cs.ReceiverID, &cs.CreatedAt,
		&cs.Sender.ID, &cs.Sender.Username, &cs.Sender.ProfileImageURL, &cs.Sender.Status, &cs.Sender.LastSeen,
		&cs.Receiver.ID, &cs.Receiver.Username, &cs.Receiver.ProfileImageURL, &cs.Receiver.Status, &cs.Receiver.LastSeen,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if cs.SenderID != requesterID && cs.ReceiverID != requesterID {
		return nil, ErrForbidden
	}
	return &cs, nil
}

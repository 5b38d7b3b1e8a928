package services

import (
	"context"
	"strings"
	"time"

	"artchat-backend/internal/db"
	"artchat-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MessageService is the Postgres-backed message log.
type MessageService struct{}

func NewMessageService() *MessageService {
	return &MessageService{}
}

const messageColumns = `id, client_id, chat_id, sender_id, receiver_id, text, status, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.ClientID, &m.ChatID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Status, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MessageService) Append(ctx context.Context, chatID string, senderID, receiverID int, text, clientID string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrValidation
	}

	// Sender and receiver must be the chat's two participants.
	var low, high int
	err := db.Pool.QueryRow(ctx, `SELECT user_low, user_high FROM chats WHERE id = $1`, chatID).Scan(&low, &high)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sLow, sHigh := normalizePair(senderID, receiverID)
	if sLow != low || sHigh != high {
		return nil, ErrValidation
	}

	var msg *models.Message
	err = withRetry(ctx, func() error {
		row := db.Pool.QueryRow(ctx,
			`INSERT INTO messages (id, client_id, chat_id, sender_id, receiver_id, text, status)
			 VALUES ($1, $2, $3, $4, $5, $6, 'SENT')
			 RETURNING `+messageColumns,
			uuid.New().String(), clientID, chatID, senderID, receiverID, text,
		)
		var scanErr error
		msg, scanErr = scanMessage(row)
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) ListByChat(ctx context.Context, chatID string, limit int, before time.Time) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id = $1`
	args := []interface{}{chatID}
	if !before.IsZero() {
		query += ` AND created_at < $2`
		args = append(args, before)
	}
	query += ` ORDER BY created_at ASC`

	var messages []models.Message
	err := withRetry(ctx, func() error {
		rows, err := db.Pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		messages = nil
		for rows.Next() {
			var m models.Message
			if err := rows.Scan(&m.ID, &m.ClientID, &m.ChatID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Status, &m.CreatedAt); err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	// The cursor pages backward from newest; trim from the front so the
	// newest `limit` rows survive.
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (s *MessageService) Get(ctx context.Context, messageID string) (*models.Message, error) {
	msg, err := scanMessage(db.Pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, messageID))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// UpdateStatus advances the message status in a single statement; the rank
// comparison in SQL makes the monotonic guard atomic under concurrent
// confirmations.
func (s *MessageService) UpdateStatus(ctx context.Context, messageID string, status models.MessageStatus) (*models.Message, bool, error) {
	var msg *models.Message
	err := withRetry(ctx, func() error {
		row := db.Pool.QueryRow(ctx,
			`UPDATE messages SET status = $2
			 WHERE id = $1
			   AND array_position(ARRAY['SENT','DELIVERED','VIEWED'], status)
			     < array_position(ARRAY['SENT','DELIVERED','VIEWED'], $2::text)
			 RETURNING `+messageColumns,
			messageID, string(status),
		)
		var scanErr error
		msg, scanErr = scanMessage(row)
		return scanErr
	})
	if err == nil {
		return msg, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, err
	}

	// Nothing advanced: either the message is unknown or the update would
	// move the status backward. The latter is a deliberate no-op.
	current, getErr := s.Get(ctx, messageID)
	if getErr != nil {
		return nil, false, getErr
	}
	return current, false, nil
}

func (s *MessageService) ListPending(ctx context.Context, chatID string, receiverID int) ([]models.Message, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE chat_id = $1 AND receiver_id = $2 AND status = 'SENT'
		 ORDER BY created_at ASC`,
		chatID, receiverID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ClientID, &m.ChatID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

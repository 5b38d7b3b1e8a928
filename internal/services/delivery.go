package services

import (
	"context"

	"artchat-backend/internal/models"
)

// DeliveryService drives the SENT -> DELIVERED -> VIEWED lifecycle. All
// transitions go through Messages.UpdateStatus, which never moves a status
// backward, so duplicate and out-of-order confirmations are silent no-ops.
type DeliveryService struct {
	messages Messages
}

func NewDeliveryService(messages Messages) *DeliveryService {
	return &DeliveryService{messages: messages}
}

// MarkDelivered records that the message event reached one of the receiver's
// live connections.
func (s *DeliveryService) MarkDelivered(ctx context.Context, messageID string) (*models.Message, bool, error) {
	return s.messages.UpdateStatus(ctx, messageID, models.StatusDelivered)
}

// MarkViewed records that the receiver's client confirmed on-screen
// visibility of the message. The chat id must match the message's chat.
func (s *DeliveryService) MarkViewed(ctx context.Context, chatID, messageID string) (*models.Message, bool, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	if msg.ChatID != chatID {
		return nil, false, ErrNotFound
	}
	return s.messages.UpdateStatus(ctx, messageID, models.StatusViewed)
}

// CatchUpDelivered advances every SENT message addressed to the user in the
// chat. Called when one of the user's connections joins the chat room, which
// makes delivery self-correcting across reconnects and gateway instances.
func (s *DeliveryService) CatchUpDelivered(ctx context.Context, chatID string, receiverID int) ([]*models.Message, error) {
	pending, err := s.messages.ListPending(ctx, chatID, receiverID)
	if err != nil {
		return nil, err
	}
	var advanced []*models.Message
	for i := range pending {
		msg, changed, err := s.messages.UpdateStatus(ctx, pending[i].ID, models.StatusDelivered)
		if err != nil {
			return advanced, err
		}
		if changed {
			advanced = append(advanced, msg)
		}
	}
	return advanced, nil
}

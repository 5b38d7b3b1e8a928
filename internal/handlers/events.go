package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"artchat-backend/internal/models"
	"artchat-backend/internal/services"
	"artchat-backend/internal/utils"
)

// Gateway routes socket events to the chat core and fans results back out
// through the room manager.
type Gateway struct {
	Rooms     *RoomManager
	Directory services.Directory
	Messages  services.Messages
	Presence  services.Presence
	Delivery  *services.DeliveryService
}

func NewGateway(rooms *RoomManager, directory services.Directory, messages services.Messages, presence services.Presence) *Gateway {
	return &Gateway{
		Rooms:     rooms,
		Directory: directory,
		Messages:  messages,
		Presence:  presence,
		Delivery:  services.NewDeliveryService(messages),
	}
}

// sendJSON writes to a single connection; write failures are logged and left
// for the read loop to surface as a disconnect.
func sendJSON(c Conn, payload interface{}) {
	utils.LogError(c.WriteJSON(payload), "sendJSON")
}

func sendError(c Conn, event string, err error) {
	msg := "internal error"
	switch {
	case errors.Is(err, services.ErrValidation):
		msg = "missing or invalid fields"
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrForbidden):
		// Not-found shape for forbidden too, so non-participants cannot
		// probe which chat ids exist.
		msg = "not found"
	}
	sendJSON(c, map[string]interface{}{"event": event, "message": msg})
}

// HandleEvent dispatches one inbound event. Errors never close the
// connection; they come back as *_error events on the originating socket.
func (g *Gateway) HandleEvent(c Conn, connID string, userID int, raw []byte) {
	var evt models.ClientEvent
	if err := utils.SafeJSONParse(raw, &evt); err != nil {
		utils.LogError(err, "JSON Parse")
		sendJSON(c, map[string]interface{}{"event": "event_error", "message": "malformed payload"})
		return
	}

	switch evt.Event {
	case "join_user_room":
		// The connection already joined its own user room on connect; this
		// is an idempotent re-join for protocol compatibility.
		g.Rooms.Join(UserRoom(userID), connID)
	case "join_chat_room":
		g.handleJoinChatRoom(connID, userID, &evt)
	case "leave_chat_room":
		if evt.ChatID != "" {
			g.Rooms.Leave(ChatRoom(evt.ChatID), connID)
		}
	case "get_all_chats_req":
		g.handleGetAllChats(c, userID)
	case "get_chat_messages_req":
		g.handleGetChatMessages(c, userID, &evt)
	case "event:message", "send_message_req":
		g.handleSendMessage(c, connID, userID, &evt)
	case "mark_message_viewed":
		g.handleMarkViewed(c, userID, &evt)
	default:
		log.Printf("Unknown event: %s", evt.Event)
	}
}

func (g *Gateway) handleJoinChatRoom(connID string, userID int, evt *models.ClientEvent) {
	if evt.ChatID == "" {
		return
	}
	// Only the chat's two participants may enter its room; anyone else is
	// refused without a response so chat ids cannot be probed.
	if _, err := g.Directory.GetByID(context.Background(), evt.ChatID, userID); err != nil {
		utils.LogError(err, "join_chat_room")
		return
	}
	g.Rooms.Join(ChatRoom(evt.ChatID), connID)

	// Any of the user's pending messages in this chat are now deliverable.
	advanced, err := g.Delivery.CatchUpDelivered(context.Background(), evt.ChatID, userID)
	if err != nil {
		utils.LogError(err, "CatchUpDelivered")
	}
	for _, msg := range advanced {
		g.broadcastStatus(msg)
	}
}

func (g *Gateway) broadcastStatus(msg *models.Message) {
	g.Rooms.Broadcast(ChatRoom(msg.ChatID), map[string]interface{}{
		"event":     "event:message:status",
		"messageId": msg.ID,
		"status":    msg.Status,
	}, "")
}

func (g *Gateway) handleGetAllChats(c Conn, userID int) {
	chats, err := g.Directory.ListForUser(context.Background(), userID)
	if err != nil {
		utils.LogError(err, "ListForUser")
		sendError(c, "get_all_chats_error", err)
		return
	}
	if chats == nil {
		chats = []models.ChatSummary{}
	}
	sendJSON(c, map[string]interface{}{
		"event": "get_all_chats_res",
		"chats": chats,
	})
}

func (g *Gateway) handleGetChatMessages(c Conn, userID int, evt *models.ClientEvent) {
	if evt.ChatID == "" {
		sendError(c, "get_chat_messages_error", services.ErrValidation)
		return
	}

	ctx := context.Background()
	chat, err := g.Directory.GetByID(ctx, evt.ChatID, userID)
	if err != nil {
		utils.LogError(err, "GetByID")
		sendError(c, "get_chat_messages_error", err)
		return
	}

	messages, err := g.Messages.ListByChat(ctx, evt.ChatID, 0, time.Time{})
	if err != nil {
		utils.LogError(err, "ListByChat")
		sendError(c, "get_chat_messages_error", err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	sendJSON(c, map[string]interface{}{
		"event":           "get_chat_messages_res",
		"messages":        messages,
		"senderProfile":   chat.Sender,
		"receiverProfile": chat.Receiver,
	})
}

func (g *Gateway) handleSendMessage(c Conn, connID string, userID int, evt *models.ClientEvent) {
	if evt.Text == "" || evt.ReceiverID == 0 {
		sendError(c, "send_message_error", services.ErrValidation)
		return
	}
	// The sender is the authenticated identity, whatever the payload says.
	senderID := userID
	receiverID := evt.ReceiverID

	ctx := context.Background()
	chatID := evt.ChatID
	created := false
	if chatID == "" {
		chat, isNew, err := g.Directory.FindOrCreate(ctx, senderID, receiverID)
		if err != nil {
			utils.LogError(err, "FindOrCreate")
			sendError(c, "send_message_error", err)
			return
		}
		chatID = chat.ID
		created = isNew
	}

	msg, err := g.Messages.Append(ctx, chatID, senderID, receiverID, evt.Text, evt.ID)
	if err != nil {
		utils.LogError(err, "Append")
		sendError(c, "send_message_error", err)
		return
	}

	// Fan out to the open conversation (everyone but the sender's socket),
	// then confirm the authoritative record to the sender.
	g.Rooms.Broadcast(ChatRoom(chatID), map[string]interface{}{
		"event":   "event:message",
		"message": msg,
	}, connID)
	sendJSON(c, map[string]interface{}{
		"event":   "event:message:confirmed",
		"message": msg,
	})

	// Receiver has the chat open on this instance: delivered immediately.
	if g.Rooms.IsUserInRoom(receiverID, ChatRoom(chatID)) {
		delivered, changed, err := g.Delivery.MarkDelivered(ctx, msg.ID)
		if err != nil {
			utils.LogError(err, "MarkDelivered")
		} else if changed {
			g.broadcastStatus(delivered)
		}
	}

	if created {
		g.Rooms.SendToUser(receiverID, map[string]interface{}{
			"event":  "refresh_chats",
			"userId": receiverID,
		})
	}
}

func (g *Gateway) handleMarkViewed(c Conn, userID int, evt *models.ClientEvent) {
	ack := map[string]interface{}{
		"event":     "mark_message_viewed_res",
		"messageId": evt.MessageID,
	}

	if evt.ChatID == "" || evt.MessageID == "" {
		ack["error"] = "chatId and messageId are required"
		sendJSON(c, ack)
		return
	}

	ctx := context.Background()
	// Only participants may confirm views; outsiders get the same
	// not-found shape as an unknown message id.
	if _, err := g.Directory.GetByID(ctx, evt.ChatID, userID); err != nil {
		utils.LogError(err, "MarkViewed")
		ack["error"] = "message not found"
		sendJSON(c, ack)
		return
	}

	msg, changed, err := g.Delivery.MarkViewed(ctx, evt.ChatID, evt.MessageID)
	if err != nil {
		utils.LogError(err, "MarkViewed")
		if errors.Is(err, services.ErrNotFound) {
			ack["error"] = "message not found"
		} else {
			ack["error"] = "internal error"
		}
		sendJSON(c, ack)
		return
	}

	sendJSON(c, ack)
	if changed {
		g.broadcastStatus(msg)
	}
}

package models

import "time"

// Message is one entry in a chat's ordered log. The wire name of the status
// field is "viewed" (the client reads message.viewed), kept for compatibility.
type Message struct {
	ID         string        `json:"id"`
	ClientID   string        `json:"clientId,omitempty"`
	ChatID     string        `json:"chatId"`
	SenderID   int           `json:"senderId"`
	ReceiverID int           `json:"receiverId"`
	Text       string        `json:"text"`
	Status     MessageStatus `json:"viewed"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// ClientEvent is the inbound socket envelope. The Event field selects which
// of the remaining fields are meaningful; unused fields stay zero.
type ClientEvent struct {
	Event      string `json:"event"`
	UserID     int    `json:"userId,omitempty"`
	ChatID     string `json:"chatId,omitempty"`
	MessageID  string `json:"messageId,omitempty"`
	ID         string `json:"id,omitempty"` // client-proposed provisional message id
	SenderID   int    `json:"senderId,omitempty"`
	ReceiverID int    `json:"receiverId,omitempty"`
	Text       string `json:"text,omitempty"`
}

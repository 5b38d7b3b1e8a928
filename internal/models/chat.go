package models

import "time"

// Chat is a conversation between exactly two users. SenderID is the user who
// initiated the chat; the pair is unordered for lookup purposes.
type Chat struct {
	ID         string    `json:"id"`
	SenderID   int       `json:"senderId"`
	ReceiverID int       `json:"receiverId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ChatSummary is a chat enriched for listing: both participants' profiles,
// the latest message, and how many messages the requesting user has not
// viewed yet.
type ChatSummary struct {
	Chat
	Sender        Profile  `json:"sender"`
	Receiver      Profile  `json:"receiver"`
	LatestMessage *Message `json:"latestMessage,omitempty"`
	UnviewedCount int      `json:"unviewedCount"`
}

type CreateChatRequest struct {
	ReceiverID int `json:"receiverId"`
}

// PresenceRecord tracks a user's online state. LastSeen is set when the user
// transitions to offline and is nil while online or for never-seen users.
type PresenceRecord struct {
	UserID   int            `json:"userId"`
	Status   PresenceStatus `json:"status"`
	LastSeen *time.Time     `json:"lastSeen"`
}

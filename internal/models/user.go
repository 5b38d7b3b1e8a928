package models

import "time"

type User struct {
	ID              int       `json:"id"`
	Username        string    `json:"username"`
	PasswordHash    string    `json:"-"`
	ProfileImageURL string    `json:"profileImageUrl"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Profile is the user payload sent with chat and history events. Status and
// LastSeen come from the presence record, not the users table.
type Profile struct {
	ID              int            `json:"id"`
	Username        string         `json:"username"`
	ProfileImageURL string         `json:"profileImageUrl"`
	Status          PresenceStatus `json:"status"`
	LastSeen        *time.Time     `json:"lastSeen"`
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ProfileImageURL string `json:"profileImageUrl"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token    string `json:"token"`
	UserID   int    `json:"userId"`
	Username string `json:"username"`
}

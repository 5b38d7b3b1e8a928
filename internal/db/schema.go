package db

import "context"

// The unique (user_low, user_high) index is what makes chat creation safe
// when both participants hit find-or-create at the same time.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		profile_image_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id UUID PRIMARY KEY,
		sender_id INT NOT NULL,
		receiver_id INT NOT NULL,
		user_low INT NOT NULL,
		user_high INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_low, user_high)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		client_id TEXT NOT NULL DEFAULT '',
		chat_id UUID NOT NULL REFERENCES chats(id),
		sender_id INT NOT NULL,
		receiver_id INT NOT NULL,
		text TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'SENT',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages (chat_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS presence (
		user_id INT PRIMARY KEY,
		status TEXT NOT NULL,
		last_seen TIMESTAMPTZ
	)`,
}

// EnsureSchema creates the tables the services expect. Statements are
// idempotent so startup is safe against an already-provisioned database.
func EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

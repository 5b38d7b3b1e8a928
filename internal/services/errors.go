package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrValidation covers malformed or missing input fields.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound covers references to unknown chat/message/user ids.
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when registering an already-taken username.
	ErrUserExists = errors.New("username already exists")
	// ErrForbidden is returned when the requester is not a chat participant.
	ErrForbidden = errors.New("not a participant")
)

const retryBackoff = 100 * time.Millisecond

// withRetry runs fn and retries exactly once, after a short backoff, when the
// failure looks transient (connection-level, safe to retry per pgconn).
// Anything else is returned as-is.
func withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !isTransient(err) {
		return err
	}
	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn()
}

func isTransient(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	return false
}

// isUniqueViolation reports whether err is a unique-constraint conflict,
// used to resolve concurrent chat creation as a lookup.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

package services

import (
	"context"

	"artchat-backend/internal/db"
	"artchat-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// PresenceService is the Postgres-backed presence tracker. Presence is
// best-effort and self-healing: the next connect or disconnect corrects any
// stale row, so writes carry no retry logic.
type PresenceService struct{}

func NewPresenceService() *PresenceService {
	return &PresenceService{}
}

func (s *PresenceService) MarkOnline(ctx context.Context, userID int) (*models.PresenceRecord, bool, error) {
	var prev *string
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO presence (user_id, status, last_seen) VALUES ($1, 'online', NULL)
		 ON CONFLICT (user_id) DO UPDATE SET status = 'online', last_seen = NULL
		 RETURNING (SELECT p.status FROM presence p WHERE p.user_id = $1)`,
		userID,
	).Scan(&prev)
	if err != nil {
		return nil, false, err
	}
	rec := &models.PresenceRecord{UserID: userID, Status: models.PresenceOnline}
	changed := prev == nil || *prev != string(models.PresenceOnline)
	return rec, changed, nil
}

func (s *PresenceService) MarkOffline(ctx context.Context, userID int) (*models.PresenceRecord, bool, error) {
	rec := &models.PresenceRecord{UserID: userID, Status: models.PresenceOffline}
	var prev *string
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO presence (user_id, status, last_seen) VALUES ($1, 'offline', now())
		 ON CONFLICT (user_id) DO UPDATE SET status = 'offline', last_seen = now()
		 RETURNING (SELECT p.status FROM presence p WHERE p.user_id = $1), last_seen`,
		userID,
	).Scan(&prev, &rec.LastSeen)
	if err != nil {
		return nil, false, err
	}
	changed := prev == nil || *prev != string(models.PresenceOffline)
	return rec, changed, nil
}

func (s *PresenceService) GetStatus(ctx context.Context, userID int) (*models.PresenceRecord, error) {
	rec := &models.PresenceRecord{UserID: userID}
	err := db.Pool.QueryRow(ctx,
		`SELECT status, last_seen FROM presence WHERE user_id = $1`, userID,
	).Scan(&rec.Status, &rec.LastSeen)
	if err == pgx.ErrNoRows {
		rec.Status = models.PresenceOffline
		return rec, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

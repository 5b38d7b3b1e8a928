package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"artchat-backend/internal/utils"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the process-wide connection pool shared by the chat services.
var Pool *pgxpool.Pool

// InitDB opens the connection pool. Sizing is tunable through DB_MAX_CONNS
// and DB_MIN_CONNS; chat and message queries are short-lived, so connections
// recycle on an hourly lifetime.
func InitDB(connString string) error {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}

	config.MaxConns = int32(utils.GetEnvInt("DB_MAX_CONNS", 10))
	config.MinConns = int32(utils.GetEnvInt("DB_MIN_CONNS", 2))
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	Pool, err = pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}

	if err := Pool.Ping(context.Background()); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	log.Println("Connected to PostgreSQL")
	return nil
}

// CloseDB releases the pool on shutdown.
func CloseDB() {
	if Pool != nil {
		Pool.Close()
	}
}

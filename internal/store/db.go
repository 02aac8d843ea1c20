package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Pool bounds the database/sql connection pool. Zero fields keep the
// defaults below.
type Pool struct {
	MaxOpen int
	MaxIdle int
}

const (
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 10
	openPingTimeout     = 10 * time.Second
)

// Open connects to Postgres through the pgx database/sql driver and waits
// for the first successful ping.
func Open(ctx context.Context, databaseURL string, pool Pool) (*sql.DB, error) {
	if pool.MaxOpen <= 0 {
		pool.MaxOpen = defaultMaxOpenConns
	}
	if pool.MaxIdle <= 0 || pool.MaxIdle > pool.MaxOpen {
		pool.MaxIdle = min(defaultMaxIdleConns, pool.MaxOpen)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, openPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

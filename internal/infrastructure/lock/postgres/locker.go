package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
)

const unlockTimeout = 5 * time.Second

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// Locker maps lock keys onto session-level advisory locks so the api, worker
// and mcp processes serialize on the same document. Each held token pins one
// pooled connection until it is released.
type Locker struct {
	db *sql.DB
}

func NewLocker(db *sql.DB) *Locker {
	return &Locker{db: db}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "acquire advisory lock", err)
	}

	id := lockID(key)
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, id); err != nil {
		_ = conn.Close()
		return nil, domain.WrapError(domain.ErrTemporary, "acquire advisory lock", err)
	}
	return l.releaser(conn, key, id), nil
}

func (l *Locker) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, domain.WrapError(domain.ErrTemporary, "try advisory lock", err)
	}

	id := lockID(key)
	var locked bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, id).Scan(&locked); err != nil {
		_ = conn.Close()
		return nil, false, domain.WrapError(domain.ErrTemporary, "try advisory lock", err)
	}
	if !locked {
		_ = conn.Close()
		return nil, false, nil
	}
	return l.releaser(conn, key, id), true, nil
}

func (l *Locker) releaser(conn *sql.Conn, key string, id int64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
			defer cancel()

			if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, id); err != nil {
				// Closing the session drops the lock on the server side.
				slog.Warn("advisory_unlock_failed", "key", key, "error", err)
				_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			}
			_ = conn.Close()
		})
	}
}

func lockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}

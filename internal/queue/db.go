// Package queue implements the agent's durable, crash-safe offline event
// queue: a single-writer-per-process SQLite store with leased-batch
// delivery semantics.
package queue

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

//go:embed migrations/*.sql
var migrations embed.FS

// openDB opens (creating if necessary) the SQLite file backing the queue,
// with WAL journaling, relaxed synchronous durability and a busy timeout
// tuned to tolerate brief contention, then applies schema migrations.
func openDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	var dsn string
	if dbPath == ":memory:" {
		dsn = ":memory:?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	} else {
		dsn = fmt.Sprintf(
			"file:%s?mode=rwc"+
				"&_pragma=journal_mode(WAL)"+
				"&_pragma=synchronous(NORMAL)"+
				"&_pragma=busy_timeout(5000)"+
				"&_pragma=foreign_keys(ON)",
			dbPath,
		)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	// Single-writer-per-process: one connection is enough and avoids
	// SQLITE_BUSY storms between goroutines sharing this *sql.DB.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		closeErr := db.Close()
		return nil, &StorageError{Op: "ping", Err: errors.Join(err, closeErr)}
	}

	if err := migrate(ctx, db); err != nil {
		closeErr := db.Close()
		return nil, &StorageError{Op: "migrate", Err: errors.Join(err, closeErr)}
	}

	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	subFS, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sub filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Package queuedb persists queue snapshots in SQLite so the queue survives
// daemon restarts. The in-memory store stays authoritative; this layer only
// saves and restores whole items as JSON rows.
package queuedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"reelpipe/internal/queue"
)

// DB is the snapshot database handle.
type DB struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the snapshot database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &DB{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (d *DB) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS queue_items (
    id TEXT PRIMARY KEY,
    added_at TEXT NOT NULL,
    payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queue_items_added_at ON queue_items(added_at);
`
	return retryOnBusy(ensureContext(ctx), func() error {
		_, err := d.db.ExecContext(ctx, schema)
		return err
	})
}

// Path returns the database file location.
func (d *DB) Path() string {
	return d.path
}

// Save replaces the stored snapshot with the given items inside one
// transaction, so a crash mid-save never leaves a half-written snapshot.
func (d *DB) Save(ctx context.Context, items []*queue.Item) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin snapshot tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM queue_items"); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
		for _, item := range items {
			if item == nil || item.ID == "" {
				continue
			}
			payload, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("encode item %s: %w", item.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO queue_items (id, added_at, payload) VALUES (?, ?, ?)",
				item.ID, item.AddedAt.UTC().Format(time.RFC3339Nano), string(payload),
			); err != nil {
				return fmt.Errorf("insert item %s: %w", item.ID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit snapshot: %w", err)
		}
		return nil
	})
}

// Load returns the stored items in insertion order. Rows whose payload no
// longer decodes are skipped rather than failing the whole restore.
func (d *DB) Load(ctx context.Context) ([]*queue.Item, error) {
	ctx = ensureContext(ctx)
	var items []*queue.Item
	err := retryOnBusy(ctx, func() error {
		items = items[:0]
		rows, err := d.db.QueryContext(ctx,
			"SELECT payload FROM queue_items ORDER BY added_at, id")
		if err != nil {
			return fmt.Errorf("query snapshot: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var payload string
			if err := rows.Scan(&payload); err != nil {
				return fmt.Errorf("scan snapshot row: %w", err)
			}
			var item queue.Item
			if err := json.Unmarshal([]byte(payload), &item); err != nil {
				continue
			}
			items = append(items, &item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

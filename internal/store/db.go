package store

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the daemon's inbox database: chats, messages, contacts, labels and
// the outbox for one session.
type DB struct {
	*sql.DB
}

// dsn appends the go-sqlite3 connection options. WAL lets the TUI-facing
// readers run while the sync engine writes.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	q.Set("_synchronous", "NORMAL")
	return path + "?" + q.Encode()
}

// Open opens (creating if needed) the database at path and checks that it
// answers. Call Migrate before use.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping db %s: %w", path, err)
	}
	return &DB{conn}, nil
}

// inTx runs fn inside a transaction, committing when it returns nil.
func (db *DB) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Counts is a snapshot of table sizes for status reporting.
type Counts struct {
	Chats        int64
	Messages     int64
	Labels       int64
	OutboxQueued int64
}

// Counts returns the current table sizes in one round trip. LID chats that
// are waiting to be merged are not counted.
func (db *DB) Counts() (Counts, error) {
	var c Counts
	err := db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM chats WHERE jid NOT LIKE '%@lid'),
			(SELECT COUNT(*) FROM messages),
			(SELECT COUNT(*) FROM labels),
			(SELECT COUNT(*) FROM outbox WHERE status IN ('queued', 'sending'))`).
		Scan(&c.Chats, &c.Messages, &c.Labels, &c.OutboxQueued)
	if err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

package store

import (
	"fmt"
	"time"
)

// Outbox entry states. An entry moves queued -> sending -> sent or failed
// and never goes back.
const (
	OutboxQueued  = "queued"
	OutboxSending = "sending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// QueueOutbox stores e as queued. Kind defaults to text.
func (db *DB) QueueOutbox(e *OutboxEntry) error {
	kind := e.Kind
	if kind == "" {
		kind = "text"
	}
	now := time.Now().UnixMilli()
	if _, err := db.Exec(`
		INSERT INTO outbox (client_msg_id, chat_jid, kind, body, mime_type, file_name, payload, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ClientMsgID, e.ChatJID, kind, e.Body, e.MimeType, e.FileName, e.Payload, OutboxQueued, now, now); err != nil {
		return fmt.Errorf("queue %s: %w", e.ClientMsgID, err)
	}
	return nil
}

// advance moves one entry from state from to state to, setting the extra
// assignments too. It reports whether the entry was in from.
func (db *DB) advance(clientMsgID, from, to, set string, args ...any) (bool, error) {
	q := `UPDATE outbox SET status = ?, updated_at = ?` + set + ` WHERE client_msg_id = ? AND status = ?`
	params := append([]any{to, time.Now().UnixMilli()}, args...)
	params = append(params, clientMsgID, from)
	res, err := db.Exec(q, params...)
	if err != nil {
		return false, fmt.Errorf("outbox %s %s -> %s: %w", clientMsgID, from, to, err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkOutboxSending claims a queued entry for delivery. It reports false
// when the entry was not queued, e.g. another worker already claimed it.
func (db *DB) MarkOutboxSending(clientMsgID string) (bool, error) {
	return db.advance(clientMsgID, OutboxQueued, OutboxSending, "")
}

// MarkOutboxSent records the gateway id of a delivered entry and drops its
// payload, which is no longer needed.
func (db *DB) MarkOutboxSent(clientMsgID, serverMsgID string) error {
	_, err := db.advance(clientMsgID, OutboxSending, OutboxSent, `, server_msg_id = ?, payload = NULL`, serverMsgID)
	return err
}

// MarkOutboxFailed records why delivery of an entry failed. Failed entries
// stay in the table and are not retried.
func (db *DB) MarkOutboxFailed(clientMsgID, errMsg string) error {
	_, err := db.advance(clientMsgID, OutboxSending, OutboxFailed, `, error_message = ?`, errMsg)
	return err
}

// PendingOutbox returns queued entries, oldest first.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, client_msg_id, chat_jid, kind, body, mime_type, file_name, payload, status, error_message, server_msg_id
		FROM outbox WHERE status = ? ORDER BY created_at, id`, OutboxQueued)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.ChatJID, &e.Kind, &e.Body, &e.MimeType, &e.FileName,
			&e.Payload, &e.Status, &e.ErrorMessage, &e.ServerMsgID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

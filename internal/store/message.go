package store

import (
	"database/sql"
	"fmt"
	"time"
)

const messageColumns = `id, chat_jid, msg_id, key_id, sender_jid, sender_name, body, media_url, thumbnail,
	caption, transcription, message_type, from_me, status, timestamp, instance`

func scanMessage(row interface{ Scan(...any) error }, m *Message) error {
	return row.Scan(&m.ID, &m.ChatJID, &m.MsgID, &m.KeyID, &m.SenderJID, &m.SenderName, &m.Body,
		&m.MediaURL, &m.Thumbnail, &m.Caption, &m.Transcription, &m.MessageType, &m.FromMe,
		&m.Status, &m.Timestamp, &m.Instance)
}

// UpsertMessage inserts or updates a message (idempotent on chat_jid + msg_id).
// Non-empty fields of a later write win.
func (db *DB) UpsertMessage(m *Message) error {
	return upsertMessage(db, m)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertMessage(ex execer, m *Message) error {
	now := time.Now().UnixMilli()
	_, err := ex.Exec(`
		INSERT INTO messages (chat_jid, msg_id, key_id, sender_jid, sender_name, body, media_url, thumbnail,
			caption, transcription, message_type, from_me, status, timestamp, instance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_jid, msg_id) DO UPDATE SET
			key_id = CASE WHEN excluded.key_id != '' THEN excluded.key_id ELSE messages.key_id END,
			sender_name = CASE WHEN excluded.sender_name != '' THEN excluded.sender_name ELSE messages.sender_name END,
			body = excluded.body,
			media_url = CASE WHEN excluded.media_url != '' THEN excluded.media_url ELSE messages.media_url END,
			thumbnail = CASE WHEN excluded.thumbnail != '' THEN excluded.thumbnail ELSE messages.thumbnail END,
			caption = CASE WHEN excluded.caption != '' THEN excluded.caption ELSE messages.caption END,
			transcription = CASE WHEN excluded.transcription != '' THEN excluded.transcription ELSE messages.transcription END,
			status = CASE WHEN excluded.status != '' THEN excluded.status ELSE messages.status END`,
		m.ChatJID, m.MsgID, m.KeyID, m.SenderJID, m.SenderName, m.Body, m.MediaURL, m.Thumbnail,
		m.Caption, m.Transcription, m.MessageType, m.FromMe, m.Status, m.Timestamp, m.Instance, now)
	return err
}

// ListMessages returns one page of a chat's messages, newest first, using
// keyset pagination on (timestamp, msg_id) so rows sharing a timestamp are
// never skipped at a page boundary.
func (db *DB) ListMessages(q MessageQuery) ([]Message, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE chat_jid = ?
			AND ((? = 0 AND ? = '') OR timestamp < ? OR (timestamp = ? AND msg_id < ?))
			AND (? = '' OR instance IN ('', ?))
		ORDER BY timestamp DESC, msg_id DESC
		LIMIT ?`, q.ChatJID, q.BeforeTs, q.BeforeID, q.BeforeTs, q.BeforeTs, q.BeforeID, q.Instance, q.Instance, q.Limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetMessage returns a message by chat and msg_id, or nil when absent.
func (db *DB) GetMessage(chatJID, msgID string) (*Message, error) {
	var m Message
	err := scanMessage(db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE chat_jid = ? AND msg_id = ?`, chatJID, msgID), &m)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ConfirmOutgoing binds an optimistic outgoing row (msg_id = clientID) to the
// id the gateway assigned. When the gateway echo was ingested first, the
// optimistic row is dropped so the chat keeps a single copy.
func (db *DB) ConfirmOutgoing(chatJID, clientID, serverID, status string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM messages WHERE chat_jid = ? AND msg_id = ?)`, chatJID, serverID).Scan(&exists); err != nil {
		return fmt.Errorf("check echo: %w", err)
	}

	if exists {
		if _, err := tx.Exec(`DELETE FROM messages WHERE chat_jid = ? AND msg_id = ?`, chatJID, clientID); err != nil {
			return fmt.Errorf("drop optimistic row: %w", err)
		}
		if _, err := tx.Exec(`UPDATE messages SET key_id = ?, status = CASE WHEN status = '' THEN ? ELSE status END
			WHERE chat_jid = ? AND msg_id = ?`, serverID, status, chatJID, serverID); err != nil {
			return fmt.Errorf("update echo row: %w", err)
		}
	} else {
		if _, err := tx.Exec(`UPDATE messages SET msg_id = ?, key_id = ?, status = ?
			WHERE chat_jid = ? AND msg_id = ?`, serverID, serverID, status, chatJID, clientID); err != nil {
			return fmt.Errorf("confirm optimistic row: %w", err)
		}
	}
	return tx.Commit()
}

// SetMessageStatus sets the status of one message by chat and msg_id.
func (db *DB) SetMessageStatus(chatJID, msgID, status string) error {
	_, err := db.Exec(`UPDATE messages SET status = ? WHERE chat_jid = ? AND msg_id = ?`, status, chatJID, msgID)
	return err
}

var statusRank = map[string]int{
	"":             0,
	"QUEUED":       1,
	"PENDING":      2,
	"SENT":         2,
	"SERVER_ACK":   3,
	"DELIVERY_ACK": 4,
	"READ":         5,
	"PLAYED":       6,
}

// UpdateStatusByKey applies a delivery receipt to the message whose key_id
// (or msg_id) matches keyID. Receipts older than the stored status are
// ignored. It reports the owning chat and whether a row changed.
func (db *DB) UpdateStatusByKey(keyID, status string) (string, bool, error) {
	var chatJID, current string
	err := db.QueryRow(`SELECT chat_jid, status FROM messages WHERE key_id = ? OR msg_id = ? LIMIT 1`, keyID, keyID).
		Scan(&chatJID, &current)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if statusRank[status] < statusRank[current] {
		return chatJID, false, nil
	}
	if _, err := db.Exec(`UPDATE messages SET status = ? WHERE key_id = ? OR msg_id = ?`, status, keyID, keyID); err != nil {
		return "", false, err
	}
	return chatJID, true, nil
}

package store

import (
	"database/sql"
	"fmt"
)

// LIDMapping pairs a hidden-number user id (LID) with its phone number. Both
// are bare user parts, without the server suffix.
type LIDMapping struct {
	LID string
	PN  string
}

// SyncLIDMap replaces the known LID mappings with mappings.
func (db *DB) SyncLIDMap(mappings []LIDMapping) error {
	return db.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM lid_map`); err != nil {
			return fmt.Errorf("clear lid_map: %w", err)
		}
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO lid_map (lid, pn) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare lid_map insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()
		for _, m := range mappings {
			if _, err := stmt.Exec(m.LID, m.PN); err != nil {
				return fmt.Errorf("insert lid_map %q: %w", m.LID, err)
			}
		}
		return nil
	})
}

// mergeStep is one statement of the LID merge. Each step reads lid_map and
// leaves the rows of mapped LID chats in their phone number chats.
type mergeStep struct {
	name  string
	query string
}

var lidMergeSteps = []mergeStep{
	{"ensure phone chats", `
		INSERT INTO chats (jid, name, avatar_url, is_group, unread_count, last_message_at, last_message_preview, updated_at)
		SELECT lm.pn || '@s.whatsapp.net', c.name, c.avatar_url, c.is_group, c.unread_count,
			c.last_message_at, c.last_message_preview, c.updated_at
		FROM chats c JOIN lid_map lm ON c.jid = lm.lid || '@lid'
		WHERE true
		ON CONFLICT(jid) DO UPDATE SET
			unread_count = chats.unread_count + excluded.unread_count,
			last_message_preview = CASE WHEN excluded.last_message_at > chats.last_message_at
				THEN excluded.last_message_preview ELSE chats.last_message_preview END,
			last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
			name = COALESCE(NULLIF(chats.name, ''), excluded.name),
			avatar_url = COALESCE(NULLIF(chats.avatar_url, ''), excluded.avatar_url),
			updated_at = MAX(chats.updated_at, excluded.updated_at)`},
	{"move messages", `
		UPDATE OR IGNORE messages SET
			chat_jid = (SELECT lm.pn || '@s.whatsapp.net' FROM lid_map lm WHERE messages.chat_jid = lm.lid || '@lid'),
			sender_jid = COALESCE(
				(SELECT lm.pn || '@s.whatsapp.net' FROM lid_map lm WHERE messages.sender_jid = lm.lid || '@lid'),
				sender_jid)
		WHERE chat_jid IN (SELECT lid || '@lid' FROM lid_map)`},
	{"drop duplicate messages", `
		DELETE FROM messages WHERE chat_jid IN (SELECT lid || '@lid' FROM lid_map)`},
	{"move labels", `
		INSERT OR IGNORE INTO chat_labels (chat_jid, label_id)
		SELECT lm.pn || '@s.whatsapp.net', cl.label_id
		FROM chat_labels cl JOIN lid_map lm ON cl.chat_jid = lm.lid || '@lid'`},
	{"drop lid labels", `
		DELETE FROM chat_labels WHERE chat_jid IN (SELECT lid || '@lid' FROM lid_map)`},
	{"move contacts", `
		INSERT INTO contacts (jid, name, push_name, updated_at)
		SELECT lm.pn || '@s.whatsapp.net', ct.name, ct.push_name, ct.updated_at
		FROM contacts ct JOIN lid_map lm ON ct.jid = lm.lid || '@lid'
		WHERE true
		ON CONFLICT(jid) DO UPDATE SET
			name = COALESCE(NULLIF(contacts.name, ''), excluded.name),
			push_name = COALESCE(NULLIF(contacts.push_name, ''), excluded.push_name),
			updated_at = excluded.updated_at`},
	{"drop lid contacts", `
		DELETE FROM contacts WHERE jid IN (SELECT lid || '@lid' FROM lid_map)`},
}

// ReconcileLIDs folds every LID chat with a known phone number into the
// phone number chat: messages, labels, contact names and unread counts
// move over and the LID chat is removed. It returns how many chats were
// merged.
func (db *DB) ReconcileLIDs() (int64, error) {
	var merged int64
	err := db.inTx(func(tx *sql.Tx) error {
		for _, step := range lidMergeSteps {
			if _, err := tx.Exec(step.query); err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
		}
		res, err := tx.Exec(`DELETE FROM chats WHERE jid IN (SELECT lid || '@lid' FROM lid_map)`)
		if err != nil {
			return fmt.Errorf("drop lid chats: %w", err)
		}
		merged, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return merged, nil
}

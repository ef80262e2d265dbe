package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

func nowMs() int64 { return time.Now().UnixMilli() }

func isGroupJID(jid string) bool { return strings.HasSuffix(jid, "@g.us") }

// UpsertChat writes c as given, except that an empty avatar keeps the one
// already stored.
func (db *DB) UpsertChat(c *Chat) error {
	_, err := db.Exec(`
		INSERT INTO chats (jid, name, avatar_url, is_group, unread_count, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name = excluded.name,
			avatar_url = COALESCE(NULLIF(excluded.avatar_url, ''), chats.avatar_url),
			is_group = excluded.is_group,
			unread_count = excluded.unread_count,
			last_message_at = excluded.last_message_at,
			last_message_preview = excluded.last_message_preview,
			updated_at = excluded.updated_at`,
		c.JID, c.Name, c.AvatarURL, c.IsGroup, c.UnreadCount, c.LastMessageAt, c.LastMessagePreview, nowMs())
	return err
}

// TouchChat makes m the latest activity of its chat and reports whether the
// chat had to be created for it. An older m leaves the preview and time
// alone. A contact's name seeds a direct chat that has none.
func (db *DB) TouchChat(m *Message) (created bool, err error) {
	name := ""
	if !m.FromMe && !isGroupJID(m.ChatJID) {
		name = m.SenderName
	}
	preview, now := Preview(m), nowMs()

	err = db.inTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT OR IGNORE INTO chats (jid, name, is_group, last_message_at, last_message_preview, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			m.ChatJID, name, isGroupJID(m.ChatJID), m.Timestamp, preview, now)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			created = true
			return nil
		}
		_, err = tx.Exec(`
			UPDATE chats SET
				name = CASE WHEN name = '' THEN ? ELSE name END,
				last_message_preview = CASE WHEN ? >= last_message_at THEN ? ELSE last_message_preview END,
				last_message_at = MAX(last_message_at, ?),
				updated_at = ?
			WHERE jid = ?`,
			name, m.Timestamp, preview, m.Timestamp, now, m.ChatJID)
		return err
	})
	return created, err
}

// Preview is the one-line summary of a message shown in chat lists.
func Preview(m *Message) string {
	switch {
	case m.Body != "":
		return m.Body
	case m.Caption != "":
		return m.Caption
	case m.MessageType == "" || m.MessageType == "text":
		return ""
	}
	return "[" + m.MessageType + "]"
}

// setChat applies one SET clause to a chat and stamps updated_at.
func (db *DB) setChat(jid, set string, args ...any) error {
	args = append(args, nowMs(), jid)
	_, err := db.Exec(`UPDATE chats SET `+set+`, updated_at = ? WHERE jid = ?`, args...)
	return err
}

func (db *DB) IncrementUnread(jid string) error {
	return db.setChat(jid, `unread_count = unread_count + 1`)
}

func (db *DB) MarkChatRead(jid string) error {
	return db.setChat(jid, `unread_count = 0`)
}

// SetChatName names a chat that has no name yet. Named chats are left as
// they are.
func (db *DB) SetChatName(jid, name string) error {
	return db.setChat(jid, `name = CASE WHEN name = '' THEN ? ELSE name END`, name)
}

func (db *DB) SetChatAvatar(jid, url string) error {
	return db.setChat(jid, `avatar_url = ?`, url)
}

// chatSelect resolves the display name as chat name, then push name, then
// contact name, then the JID. Labels come back as names joined by \x1f.
const chatSelect = `
		SELECT c.jid,
			COALESCE(NULLIF(c.name,''), NULLIF(ct.push_name,''), NULLIF(ct.name,''), c.jid),
			c.avatar_url, c.is_group, c.unread_count, c.last_message_at, c.last_message_preview,
			COALESCE((SELECT group_concat(l.name, char(31)) FROM chat_labels cl
				JOIN labels l ON l.id = cl.label_id WHERE cl.chat_jid = c.jid), '')
		FROM chats c
		LEFT JOIN contacts ct ON ct.jid = c.jid`

func scanChat(row interface{ Scan(...any) error }) (Chat, error) {
	var c Chat
	var labels string
	err := row.Scan(&c.JID, &c.Name, &c.AvatarURL, &c.IsGroup, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview, &labels)
	if labels != "" {
		c.Labels = strings.Split(labels, "\x1f")
	}
	return c, err
}

// ListChats returns chats newest first. Unmerged @lid chats are hidden.
func (db *DB) ListChats(limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(chatSelect+`
		WHERE c.jid NOT LIKE '%@lid'
		ORDER BY c.last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns the chat with jid, or nil when there is none.
func (db *DB) GetChat(jid string) (*Chat, error) {
	c, err := scanChat(db.QueryRow(chatSelect+` WHERE c.jid = ?`, jid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

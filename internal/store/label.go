package store

import "time"

// UpsertLabel inserts or renames a label.
func (db *DB) UpsertLabel(l *Label) error {
	_, err := db.Exec(`
		INSERT INTO labels (id, name, color, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color, updated_at = excluded.updated_at`,
		l.ID, l.Name, l.Color, time.Now().UnixMilli())
	return err
}

// DeleteLabel removes a label and its chat associations.
func (db *DB) DeleteLabel(id string) error {
	if _, err := db.Exec(`DELETE FROM chat_labels WHERE label_id = ?`, id); err != nil {
		return err
	}
	_, err := db.Exec(`DELETE FROM labels WHERE id = ?`, id)
	return err
}

// SetChatLabel attaches (on) or detaches a label from a chat.
func (db *DB) SetChatLabel(chatJID, labelID string, on bool) error {
	if on {
		_, err := db.Exec(`INSERT OR IGNORE INTO chat_labels (chat_jid, label_id) VALUES (?, ?)`, chatJID, labelID)
		return err
	}
	_, err := db.Exec(`DELETE FROM chat_labels WHERE chat_jid = ? AND label_id = ?`, chatJID, labelID)
	return err
}

// ListLabels returns all labels ordered by name.
func (db *DB) ListLabels() ([]Label, error) {
	rows, err := db.Query(`SELECT id, name, color FROM labels ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var labels []Label
	for rows.Next() {
		var l Label
		if err := rows.Scan(&l.ID, &l.Name, &l.Color); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

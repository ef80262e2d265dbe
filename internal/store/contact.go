package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Blank names never overwrite a known one: history sync often carries a
// push name without the address-book name and the other way round.
const upsertContactSQL = `
	INSERT INTO contacts (jid, name, push_name, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(jid) DO UPDATE SET
		name = COALESCE(NULLIF(excluded.name, ''), contacts.name),
		push_name = COALESCE(NULLIF(excluded.push_name, ''), contacts.push_name),
		updated_at = excluded.updated_at`

// DisplayName is the best name to show for the contact: the saved name,
// then the push name, then the bare number.
func (c *Contact) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.PushName != "":
		return c.PushName
	}
	number, _, _ := strings.Cut(c.JID, "@")
	return number
}

// UpsertContact records c, keeping previously known names that c leaves blank.
func (db *DB) UpsertContact(c *Contact) error {
	if _, err := db.Exec(upsertContactSQL, c.JID, c.Name, c.PushName, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("upsert contact %q: %w", c.JID, err)
	}
	return nil
}

// BulkUpsertContacts applies UpsertContact to every contact in one transaction.
func (db *DB) BulkUpsertContacts(contacts []Contact) error {
	now := time.Now().UnixMilli()
	return db.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(upsertContactSQL)
		if err != nil {
			return fmt.Errorf("prepare contact upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()
		for _, c := range contacts {
			if c.JID == "" {
				continue
			}
			if _, err := stmt.Exec(c.JID, c.Name, c.PushName, now); err != nil {
				return fmt.Errorf("upsert contact %q: %w", c.JID, err)
			}
		}
		return nil
	})
}

// GetContact returns the contact for jid, or nil when it is unknown.
func (db *DB) GetContact(jid string) (*Contact, error) {
	c := Contact{JID: jid}
	err := db.QueryRow(`SELECT name, push_name FROM contacts WHERE jid = ?`, jid).Scan(&c.Name, &c.PushName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact %q: %w", jid, err)
	}
	return &c, nil
}

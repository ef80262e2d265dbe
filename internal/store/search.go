package store

import (
	"fmt"
	"strings"
)

// ftsQuery turns free text into an FTS5 query: every word must appear,
// and the last word may be a prefix, so typing "pag" finds "pagamento".
// Quoting keeps characters such as # - : out of the FTS5 syntax.
func ftsQuery(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	if n := len(words); n > 0 {
		words[n-1] += "*"
	}
	return strings.Join(words, " ")
}

// trailingScan appends extra destinations after a scanner's own, so
// scanMessage can read a row that carries additional columns.
type trailingScan struct {
	row   interface{ Scan(...any) error }
	extra []any
}

func (t trailingScan) Scan(dest ...any) error {
	return t.row.Scan(append(dest, t.extra...)...)
}

// SearchMessages returns messages whose body matches text, best match
// first, optionally limited to one chat. Blank text matches nothing.
func (db *DB) SearchMessages(text, chatJID string, limit int) ([]SearchResult, error) {
	match := ftsQuery(text)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT ` + messageColumns + `, f.snip
		FROM messages
		JOIN (
			SELECT rowid AS hit, rank, snippet(messages_fts, 0, '<<', '>>', '...', 32) AS snip
			FROM messages_fts WHERE messages_fts MATCH ?
		) f ON messages.id = f.hit
		WHERE chat_jid NOT LIKE '%@lid'`
	args := []any{match}
	if chatJID != "" {
		q += ` AND chat_jid = ?`
		args = append(args, chatJID)
	}
	q += ` ORDER BY f.rank, timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := scanMessage(trailingScan{row: rows, extra: []any{&r.Snippet}}, &r.Message); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

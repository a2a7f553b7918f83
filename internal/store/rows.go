package store

import "database/sql"

const rowColumns = `
	m.ROWID, COALESCE(m.guid, ''), COALESCE(m.text, ''),
	COALESCE(h.id, ''), m.is_from_me, m.date`

// MaxRowID returns the highest message row id in the given chat, or 0 for an
// empty chat. The cursor initializes from this so only new arrivals are
// processed.
func (db *DB) MaxRowID(chatRowID int64) (int64, error) {
	var max int64
	err := db.QueryRow(`
		SELECT COALESCE(MAX(m.ROWID), 0)
		FROM message m
		JOIN chat_message_join cmj ON m.ROWID = cmj.message_id
		WHERE cmj.chat_id = ?`, chatRowID).Scan(&max)
	return max, err
}

// MessagesAfter returns rows in the chat with id strictly greater than the
// cursor, ascending by row id.
func (db *DB) MessagesAfter(chatRowID, after int64) ([]MessageRow, error) {
	rows, err := db.Query(`
		SELECT`+rowColumns+`
		FROM message m
		JOIN chat_message_join cmj ON m.ROWID = cmj.message_id
		LEFT JOIN handle h ON m.handle_id = h.ROWID
		WHERE cmj.chat_id = ? AND m.ROWID > ?
		ORDER BY m.ROWID ASC`, chatRowID, after)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []MessageRow
	for rows.Next() {
		var r MessageRow
		if err := rows.Scan(&r.RowID, &r.GUID, &r.Text, &r.SenderID, &r.FromMe, &r.Date); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MessageByRowID re-fetches a single row, used by the retry ledger to check
// whether a previously empty text has materialized. Returns nil if the row
// no longer exists.
func (db *DB) MessageByRowID(rowID int64) (*MessageRow, error) {
	var r MessageRow
	err := db.QueryRow(`
		SELECT`+rowColumns+`
		FROM message m
		LEFT JOIN handle h ON m.handle_id = h.ROWID
		WHERE m.ROWID = ?`, rowID).
		Scan(&r.RowID, &r.GUID, &r.Text, &r.SenderID, &r.FromMe, &r.Date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

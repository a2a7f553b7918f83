package store

import (
	"database/sql"
	"errors"
	"strings"
)

// ErrChatNotFound is returned when no conversation matches the identifier.
var ErrChatNotFound = errors.New("chat not found")

const chatColumns = `
	c.ROWID, COALESCE(c.guid, ''), COALESCE(c.chat_identifier, ''),
	COALESCE(c.display_name, '')`

// ResolveChat maps an externally supplied identifier to a conversation.
// Resolution order:
//  1. exact match on chat guid or chat_identifier
//  2. substring match on display name or identifier, unless the identifier
//     looks canonical (canonical ids start with "chat" or carry a service
//     prefix like "iMessage;-;…")
//  3. participant handle match, for one-on-one chats addressed by a
//     person's handle instead of a chat id
func (db *DB) ResolveChat(identifier string) (*Chat, error) {
	c, err := db.chatBy(`WHERE c.guid = ? OR c.chat_identifier = ?`, identifier, identifier)
	if err != nil || c != nil {
		return c, err
	}

	if !looksCanonical(identifier) {
		pattern := "%" + identifier + "%"
		c, err = db.chatBy(`WHERE c.display_name LIKE ? OR c.chat_identifier LIKE ?`, pattern, pattern)
		if err != nil || c != nil {
			return c, err
		}
	}

	// Prefer the chat with the fewest participants so a bare handle lands on
	// the one-on-one conversation, not a group that includes the person.
	c, err = db.chatBy(`
		JOIN chat_handle_join chj ON c.ROWID = chj.chat_id
		JOIN handle h ON h.ROWID = chj.handle_id
		WHERE h.id = ?
		ORDER BY (SELECT COUNT(*) FROM chat_handle_join WHERE chat_id = c.ROWID) ASC`,
		identifier)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrChatNotFound
	}
	return c, nil
}

func (db *DB) chatBy(clause string, args ...any) (*Chat, error) {
	var c Chat
	err := db.QueryRow(`SELECT`+chatColumns+` FROM chat c `+clause+` LIMIT 1`, args...).
		Scan(&c.RowID, &c.GUID, &c.Identifier, &c.DisplayName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// looksCanonical reports whether the identifier carries canonical chat id
// structure. Bare handles ("+15551234567", "alice@example.com") and partial
// group names do not.
func looksCanonical(identifier string) bool {
	return strings.HasPrefix(identifier, "chat") || strings.Contains(identifier, ";")
}

// ListChats returns up to limit conversations, most recently created first.
// Used to show the operator what is available when resolution fails.
func (db *DB) ListChats(limit int) ([]Chat, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT`+chatColumns+`
		FROM chat c
		ORDER BY c.ROWID DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.RowID, &c.GUID, &c.Identifier, &c.DisplayName); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

package store

import (
	"fmt"
	"time"
)

// Fixture helpers build chat.db-shaped data for tests and local development.
// They only ever run against databases created by Migrate.

// InsertFixtureChat creates a chat with the given participant handles and
// returns its row id.
func (db *DB) InsertFixtureChat(guid, identifier, displayName string, handles []string) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO chat (guid, chat_identifier, display_name, service_name)
		VALUES (?, ?, ?, 'iMessage')`, guid, identifier, displayName)
	if err != nil {
		return 0, fmt.Errorf("insert chat: %w", err)
	}
	chatID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, h := range handles {
		handleID, err := db.ensureHandle(h)
		if err != nil {
			return 0, err
		}
		if _, err := db.Exec(`INSERT INTO chat_handle_join (chat_id, handle_id) VALUES (?, ?)`, chatID, handleID); err != nil {
			return 0, fmt.Errorf("join handle: %w", err)
		}
	}
	return chatID, nil
}

// InsertFixtureMessage appends a message row to a chat and returns its row id.
// An empty text is stored as NULL, matching rows whose payload has not
// materialized yet.
func (db *DB) InsertFixtureMessage(chatRowID int64, m *MessageRow) (int64, error) {
	var handleID any
	if m.SenderID != "" {
		id, err := db.ensureHandle(m.SenderID)
		if err != nil {
			return 0, err
		}
		handleID = id
	}
	var text any
	if m.Text != "" {
		text = m.Text
	}
	guid := m.GUID
	if guid == "" {
		guid = fmt.Sprintf("msg-%d-%d", chatRowID, time.Now().UnixNano())
	}
	res, err := db.Exec(`
		INSERT INTO message (guid, text, handle_id, date, is_from_me)
		VALUES (?, ?, ?, ?, ?)`, guid, text, handleID, m.Date, m.FromMe)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	msgID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := db.Exec(`INSERT INTO chat_message_join (chat_id, message_id) VALUES (?, ?)`, chatRowID, msgID); err != nil {
		return 0, fmt.Errorf("join message: %w", err)
	}
	return msgID, nil
}

// SetFixtureText fills in a message's text after the fact, the way the
// platform materializes payloads for self-authored rows.
func (db *DB) SetFixtureText(rowID int64, text string) error {
	_, err := db.Exec(`UPDATE message SET text = ? WHERE ROWID = ?`, text, rowID)
	return err
}

func (db *DB) ensureHandle(id string) (int64, error) {
	var handleID int64
	err := db.QueryRow(`SELECT ROWID FROM handle WHERE id = ?`, id).Scan(&handleID)
	if err == nil {
		return handleID, nil
	}
	res, err := db.Exec(`INSERT INTO handle (id, service) VALUES (?, 'iMessage')`, id)
	if err != nil {
		return 0, fmt.Errorf("insert handle: %w", err)
	}
	return res.LastInsertId()
}

// SeedDemo populates a fixture store with a group chat and a one-on-one
// conversation so the bridge can be exercised without a real message store.
func (db *DB) SeedDemo() error {
	now := ToAppleNS(time.Now())
	groupID, err := db.InsertFixtureChat("chat100000000000000001", "chat100000000000000001", "moji crew",
		[]string{"+15551234567", "+15559876543"})
	if err != nil {
		return err
	}
	oneOnOneID, err := db.InsertFixtureChat("iMessage;-;+15551234567", "+15551234567", "",
		[]string{"+15551234567"})
	if err != nil {
		return err
	}
	demo := []struct {
		chatID int64
		row    MessageRow
	}{
		{groupID, MessageRow{Text: "hey everyone", SenderID: "+15559876543", Date: now - 3e9}},
		{groupID, MessageRow{Text: "@moji meme: finals stress", SenderID: "+15551234567", Date: now - 2e9}},
		{oneOnOneID, MessageRow{Text: "@moji sticker: cute cat", SenderID: "+15551234567", Date: now - 1e9}},
	}
	for _, d := range demo {
		if _, err := db.InsertFixtureMessage(d.chatID, &d.row); err != nil {
			return err
		}
	}
	return nil
}

package store

// Chat represents a conversation record as observed in the message store.
type Chat struct {
	RowID       int64
	GUID        string
	Identifier  string
	DisplayName string
}

// MessageRow is an immutable observation of one message row. Text may be
// empty at first observation; it can materialize on a later re-fetch.
type MessageRow struct {
	RowID    int64
	GUID     string
	Text     string
	SenderID string
	FromMe   bool
	// Date is store-native: nanoseconds since the Apple epoch (2001-01-01).
	Date int64
}

package bus

import "time"

// Event represents a domain event published on the bus, e.g. "row.processed"
// or "dispatch.failed".
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Package migrations embeds the fixture schema: a minimal chat.db-compatible
// layout used by tests and the bridgectl seed command. The real message store
// is owned by the platform and never migrated by this code.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

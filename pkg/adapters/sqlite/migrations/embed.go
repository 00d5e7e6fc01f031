package migrations

import "embed"

// FS contains embedded SQLite migrations for the arbor schema.
//
//go:embed *.sql
var FS embed.FS

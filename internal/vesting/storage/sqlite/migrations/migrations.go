package migrations

import "embed"

// FS contains embedded SQLite migrations for vesting storage.
//
//go:embed *.sql
var FS embed.FS

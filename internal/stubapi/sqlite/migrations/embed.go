package migrations

import "embed"

// FS contains embedded SQLite migrations for the stub users store.
//
//go:embed *.sql
var FS embed.FS

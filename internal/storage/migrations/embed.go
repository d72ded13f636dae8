package migrations

import "embed"

// Postgres contains the embedded Postgres schema migrations.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite contains the embedded SQLite schema migrations.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

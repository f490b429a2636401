// Package migrations embeds the SQL schema migrations into the binary.
package migrations

import "embed"

// FS holds every NNNN_description.sql migration, applied in version order
// by database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS

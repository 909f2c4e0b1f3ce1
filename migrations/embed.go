// Package migrations holds the SQL schema applied by the database migrator.
package migrations

import "embed"

// FS contains every NNN_name.sql migration
//
//go:embed *.sql
var FS embed.FS

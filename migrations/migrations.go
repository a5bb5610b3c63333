// Package migrations embeds the versioned SQL schema files applied by db.Migrate.
// Files are named NNN_description.sql and applied in lexical order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

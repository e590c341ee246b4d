// Package migrations embeds the SQL schema migrations so the server
// binary can apply them at startup without shipping loose files.
package migrations

import "embed"

// FS holds the embedded goose migration files.
//
//go:embed *.sql
var FS embed.FS

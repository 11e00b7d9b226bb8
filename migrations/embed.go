// Package migrations embeds the SQL schema migrations for the review audit log.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

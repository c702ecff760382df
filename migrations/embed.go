// Package migrations embeds the goose SQL migration files applied to the
// local cache database on startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

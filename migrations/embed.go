// Package migrations embeds the goose migrations so binaries carry their schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

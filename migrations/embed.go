// Package migrations embeds the goose SQL migrations for the GAT schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

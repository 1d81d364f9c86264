// Package migrations holds the goose SQL migrations for the slot tables.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

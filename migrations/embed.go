// Package migrations holds the goose SQL migrations for the POC portal
// database, embedded so the binary carries its own schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

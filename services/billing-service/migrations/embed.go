// Package migrations contains embedded SQL migrations for billing accounts.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

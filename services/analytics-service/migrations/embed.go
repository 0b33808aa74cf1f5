// Package migrations contains the analytics service's embedded SQL migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package migrations embeds the local intent store schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package migrations embeds the SQL schema migrations so the migrate
// binary can run without the source tree present.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

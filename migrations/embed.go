// Package migrations holds the SQL schema applied by `florens migrate`.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

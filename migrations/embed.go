// Package migrations embeds the read-model schema so it can be applied at
// start-up regardless of working directory.
package migrations

import "embed"

// FS holds every .sql file in this directory, applied in name order.
//
//go:embed *.sql
var FS embed.FS

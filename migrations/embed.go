// Package migrations holds the versioned SQL schema of the ledger.
package migrations

import "embed"

// FS contains the up and down migrations, so the server can migrate without the source tree
//
//go:embed *.sql
var FS embed.FS

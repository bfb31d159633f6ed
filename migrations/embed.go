package migrations

import "embed"

// Files exposes the embedded schema migration steps. File names carry the
// schema version they produce and are applied in ascending order.
//
//go:embed *.sql
var Files embed.FS

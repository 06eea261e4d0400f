package migrations

import "embed"

// Files exposes every SQL migration shipped with the daemon.
//
//go:embed *.sql
var Files embed.FS

package persistence

import "embed"

//go:embed schema/*.sql
var MigrationsFS embed.FS

const MigrationsDir = "schema"

// Package db embeds the SQL migrations applied by "wadesk migrate".
package db

import "embed"

//go:embed migrations/*.sql
var MigrationsFS embed.FS

// Package migrations embeds the promo service's SQL migration files.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS

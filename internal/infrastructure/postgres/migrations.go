package postgres

import "embed"

// Migrations holds the golang-migrate files for the PostgreSQL schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Package migrations holds the schema, registered in the order the files sort.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()

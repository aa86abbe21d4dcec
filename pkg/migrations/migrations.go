// Package migrations holds the versioned schema migration list. The list is
// applied in order at every process start via BringUpToDate; already-applied
// entries are skipped through the migrator's bookkeeping table. Migrations
// that transform legacy shapes additionally gate themselves on a schema
// probe (table or column existence), so the list is safe to run against a
// fresh database, a current one, or a file written by an old release that
// predates the bookkeeping table.
package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// BringUpToDate applies every pending migration. A failure aborts the
// remaining migrations and must be treated as fatal by the caller; running
// against a half-migrated schema risks corrupting data.
func BringUpToDate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	err := migrator.Init(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return group, nil
}

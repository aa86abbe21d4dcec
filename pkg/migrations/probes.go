package migrations

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// tableExists reports whether a table of the given name exists. Probing
// sqlite_master keeps the legacy transforms from assuming what an old
// database file contains.
func tableExists(ctx context.Context, db bun.IDB, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return count > 0, nil
}

// columnExists reports whether the table has a column of the given name. A
// missing table counts as a missing column.
func columnExists(ctx context.Context, db bun.IDB, table, column string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&count)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return count > 0, nil
}

type columnDef struct {
	Table   string
	Column  string
	Type    string
	Default string
}

// addColumnIfAbsent adds the described column unless it is already present.
// SQLite only allows adding a NOT NULL column together with a default, so
// definitions with a Default produce a NOT NULL column and the rest stay
// nullable.
func addColumnIfAbsent(ctx context.Context, db bun.IDB, def columnDef) error {
	exists, err := columnExists(ctx, db, def.Table, def.Column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", def.Table, def.Column, def.Type)
	if def.Default != "" {
		ddl += " NOT NULL DEFAULT " + def.Default
	}
	_, err = db.ExecContext(ctx, ddl)
	return errors.WithStack(err)
}

package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		// Probed per column: legacy items tables predate all of these, and
		// the settings rebuild in the css consolidation produces a table
		// without the scaling pair.
		columns := []columnDef{
			{Table: "items", Column: "color", Type: "TEXT"},
			{Table: "items", Column: "show_in_notes", Type: "BOOLEAN", Default: "FALSE"},
			{Table: "items", Column: "book_title", Type: "TEXT"},
			{Table: "items", Column: "chapter", Type: "TEXT"},
			{Table: "items", Column: "page", Type: "INTEGER"},
			{Table: "timeline_settings", Column: "use_custom_scaling", Type: "BOOLEAN", Default: "FALSE"},
			{Table: "timeline_settings", Column: "custom_scale", Type: "REAL", Default: "1.0"},
		}
		for _, col := range columns {
			err := addColumnIfAbsent(ctx, db, col)
			if err != nil {
				return err
			}
		}
		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		statements := []string{
			"ALTER TABLE timeline_settings DROP COLUMN custom_scale",
			"ALTER TABLE timeline_settings DROP COLUMN use_custom_scaling",
			"ALTER TABLE items DROP COLUMN page",
			"ALTER TABLE items DROP COLUMN chapter",
			"ALTER TABLE items DROP COLUMN book_title",
			"ALTER TABLE items DROP COLUMN show_in_notes",
			"ALTER TABLE items DROP COLUMN color",
		}
		for _, stmt := range statements {
			_, err := db.Exec(stmt)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}

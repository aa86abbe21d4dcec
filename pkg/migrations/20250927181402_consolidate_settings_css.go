package migrations

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		// Old releases split the stylesheet over font_css, main_css, and
		// items_css and carried no timestamps on settings rows.
		exists, err := columnExists(ctx, db, "timeline_settings", "font_css")
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			// SQLite cannot drop several columns in place, so rebuild the
			// table: create the new shape, copy rows with the css columns
			// merged, then swap it in.
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE timeline_settings_new (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
					timeline_id INTEGER REFERENCES timelines (id) NOT NULL,
					font TEXT NOT NULL DEFAULT 'Arial',
					font_size INTEGER NOT NULL DEFAULT 16,
					pixels_per_subtick INTEGER NOT NULL DEFAULT 20,
					custom_css TEXT NOT NULL DEFAULT '',
					show_guides BOOLEAN NOT NULL DEFAULT TRUE,
					window_x INTEGER NOT NULL DEFAULT 100,
					window_y INTEGER NOT NULL DEFAULT 100,
					window_width INTEGER NOT NULL DEFAULT 1200,
					window_height INTEGER NOT NULL DEFAULT 800
				)
`)
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO timeline_settings_new (id, timeline_id, font, font_size, pixels_per_subtick, custom_css, show_guides, window_x, window_y, window_width, window_height)
				SELECT
					id,
					timeline_id,
					COALESCE(font, 'Arial'),
					COALESCE(font_size, 16),
					COALESCE(pixels_per_subtick, 20),
					TRIM(COALESCE(font_css, '') || char(10) || COALESCE(main_css, '') || char(10) || COALESCE(items_css, ''), char(10)),
					COALESCE(show_guides, TRUE),
					COALESCE(window_x, 100),
					COALESCE(window_y, 100),
					COALESCE(window_width, 1200),
					COALESCE(window_height, 800)
				FROM timeline_settings
`)
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = tx.ExecContext(ctx, "DROP TABLE timeline_settings")
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = tx.ExecContext(ctx, "ALTER TABLE timeline_settings_new RENAME TO timeline_settings")
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = tx.ExecContext(ctx, "CREATE UNIQUE INDEX IF NOT EXISTS ux_timeline_settings_timeline_id ON timeline_settings (timeline_id)")
			return errors.WithStack(err)
		})
	}

	down := func(_ context.Context, _ *bun.DB) error {
		// The split between the three source columns cannot be reconstructed
		// from the merged text.
		return nil
	}

	Migrations.MustRegister(up, down)
}

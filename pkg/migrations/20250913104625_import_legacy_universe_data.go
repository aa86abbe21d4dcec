package migrations

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		// Old releases stored a single timeline in a universe_data table.
		// Only database files written by those releases have it.
		exists, err := tableExists(ctx, db, "universe_data")
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			// Copy the legacy row into timelines unless a timeline with the
			// same title and author already exists.
			_, err := tx.ExecContext(ctx, `
				INSERT INTO timelines (title, author, description, start_year, granularity)
				SELECT
					COALESCE(title, 'Untitled Timeline'),
					COALESCE(author, ''),
					COALESCE(description, ''),
					COALESCE(start_year, 0),
					COALESCE(granularity, 4)
				FROM universe_data
				WHERE NOT EXISTS (
					SELECT 1 FROM timelines
					WHERE timelines.title = COALESCE(universe_data.title, 'Untitled Timeline')
						AND timelines.author = COALESCE(universe_data.author, '')
				)
`)
			if err != nil {
				return errors.WithStack(err)
			}

			// Every timeline gets a settings row. The column defaults match
			// what the settings service synthesizes on first read.
			_, err = tx.ExecContext(ctx, `
				INSERT INTO timeline_settings (timeline_id)
				SELECT id FROM timelines
				WHERE NOT EXISTS (
					SELECT 1 FROM timeline_settings WHERE timeline_settings.timeline_id = timelines.id
				)
`)
			if err != nil {
				return errors.WithStack(err)
			}

			_, err = tx.ExecContext(ctx, "DROP TABLE universe_data")
			return errors.WithStack(err)
		})
	}

	down := func(_ context.Context, _ *bun.DB) error {
		// The legacy table was dropped after import; there is nothing to
		// restore.
		return nil
	}

	Migrations.MustRegister(up, down)
}

package migrations

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		// Old releases attached a picture to at most one item through an
		// item_id column on pictures. Attachments live in item_pictures now.
		exists, err := columnExists(ctx, db, "pictures", "item_id")
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			// Preserve existing attachments as junction rows before the
			// column goes away.
			_, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO item_pictures (item_id, picture_id)
				SELECT item_id, id FROM pictures WHERE item_id IS NOT NULL
`)
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = tx.ExecContext(ctx, `
				CREATE TABLE pictures_new (
					id TEXT PRIMARY KEY,
					created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
					timeline_id INTEGER REFERENCES timelines (id) NOT NULL,
					file_path TEXT NOT NULL,
					file_name TEXT NOT NULL,
					file_size INTEGER NOT NULL DEFAULT 0,
					file_type TEXT NOT NULL DEFAULT '',
					width INTEGER NOT NULL DEFAULT 0,
					height INTEGER NOT NULL DEFAULT 0,
					title TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT ''
				)
`)
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO pictures_new (id, created_at, updated_at, timeline_id, file_path, file_name, file_size, file_type, width, height, title, description)
				SELECT
					id,
					created_at,
					updated_at,
					timeline_id,
					file_path,
					COALESCE(file_name, ''),
					COALESCE(file_size, 0),
					COALESCE(file_type, ''),
					COALESCE(width, 0),
					COALESCE(height, 0),
					COALESCE(title, ''),
					COALESCE(description, '')
				FROM pictures
`)
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = tx.ExecContext(ctx, "DROP TABLE pictures")
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = tx.ExecContext(ctx, "ALTER TABLE pictures_new RENAME TO pictures")
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = tx.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS ix_pictures_timeline_id ON pictures (timeline_id)")
			return errors.WithStack(err)
		})
	}

	down := func(_ context.Context, db *bun.DB) error {
		// Restore the single-attachment column; pictures attached to several
		// items keep an arbitrary one.
		_, err := db.Exec("ALTER TABLE pictures ADD COLUMN item_id TEXT REFERENCES items (id)")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			UPDATE pictures SET item_id = (
				SELECT item_id FROM item_pictures
				WHERE item_pictures.picture_id = pictures.id
				LIMIT 1
			)
`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}

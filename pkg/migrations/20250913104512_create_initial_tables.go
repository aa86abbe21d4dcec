package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	// IF NOT EXISTS throughout: database files written by old releases
	// already contain some of these tables, and the legacy transforms that
	// follow expect them untouched.
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS timelines (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				author TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				start_year INTEGER NOT NULL DEFAULT 0,
				granularity INTEGER NOT NULL DEFAULT 4
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_timelines_title_author ON timelines (title, author)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS timeline_settings (
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
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_timeline_settings_timeline_id ON timeline_settings (timeline_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS item_types (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_item_types_name ON item_types (name)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			INSERT OR IGNORE INTO item_types (name) VALUES
				('Event'),
				('Period'),
				('Age'),
				('Picture'),
				('Note'),
				('Bookmark'),
				('Character'),
				('Timeline_start'),
				('Timeline_end')
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS items (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				timeline_id INTEGER REFERENCES timelines (id) NOT NULL,
				type_id INTEGER REFERENCES item_types (id) NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '',
				year INTEGER NOT NULL DEFAULT 0,
				subtick INTEGER NOT NULL DEFAULT 0,
				original_subtick INTEGER NOT NULL DEFAULT 0,
				end_year INTEGER,
				end_subtick INTEGER,
				original_end_subtick INTEGER,
				creation_granularity INTEGER NOT NULL DEFAULT 4,
				item_index INTEGER NOT NULL DEFAULT 0
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_items_timeline_id ON items (timeline_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_items_timeline_id_year_subtick ON items (timeline_id, year, subtick)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS tags (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		// Case-insensitive unique constraint
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_tags_name ON tags (name COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS item_tags (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				item_id TEXT REFERENCES items (id) NOT NULL,
				tag_id INTEGER REFERENCES tags (id) NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_item_tags_item_id_tag_id ON item_tags (item_id, tag_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_item_tags_tag_id ON item_tags (tag_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS stories (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT ''
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_stories_title ON stories (title)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS item_story_refs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				item_id TEXT REFERENCES items (id) NOT NULL,
				story_id TEXT REFERENCES stories (id) NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_item_story_refs_item_id_story_id ON item_story_refs (item_id, story_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_item_story_refs_story_id ON item_story_refs (story_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS pictures (
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
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_pictures_timeline_id ON pictures (timeline_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS item_pictures (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				item_id TEXT REFERENCES items (id) NOT NULL,
				picture_id TEXT REFERENCES pictures (id) NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_item_pictures_item_id_picture_id ON item_pictures (item_id, picture_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_item_pictures_picture_id ON item_pictures (picture_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS notes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				timeline_id INTEGER REFERENCES timelines (id) NOT NULL,
				year INTEGER NOT NULL DEFAULT 0,
				subtick INTEGER NOT NULL DEFAULT 0,
				content TEXT NOT NULL DEFAULT ''
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_notes_timeline_id_year_subtick ON notes (timeline_id, year, subtick)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS characters (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				timeline_id INTEGER REFERENCES timelines (id) NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				color TEXT,
				birth_year INTEGER,
				birth_subtick INTEGER,
				death_year INTEGER,
				death_subtick INTEGER
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_characters_timeline_id ON characters (timeline_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS character_relationships (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				timeline_id INTEGER REFERENCES timelines (id) NOT NULL,
				character_a_id TEXT REFERENCES characters (id) NOT NULL,
				character_b_id TEXT REFERENCES characters (id) NOT NULL,
				relation TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT ''
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_character_relationships_a_b_relation ON character_relationships (character_a_id, character_b_id, relation)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS item_characters (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				item_id TEXT REFERENCES items (id) NOT NULL,
				character_id TEXT REFERENCES characters (id) NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_item_characters_item_id_character_id ON item_characters (item_id, character_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_item_characters_character_id ON item_characters (character_id)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS item_characters")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS character_relationships")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS characters")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS notes")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS item_pictures")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS pictures")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS item_story_refs")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS stories")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS item_tags")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS tags")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS items")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS item_types")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS timeline_settings")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS timelines")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}

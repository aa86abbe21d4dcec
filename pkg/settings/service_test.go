package settings

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/WolfyD/story-timeline-sub000/pkg/migrations"
	"github.com/WolfyD/story-timeline-sub000/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createTestTimeline(t *testing.T, db *bun.DB, title string) *models.Timeline {
	t.Helper()

	now := time.Now()
	timeline := &models.Timeline{
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       title,
		Granularity: 4,
	}
	_, err := db.NewInsert().Model(timeline).Returning("*").Exec(context.Background())
	require.NoError(t, err)
	return timeline
}

func TestService_GetSettings(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	timeline := createTestTimeline(t, db, "Chronicles")

	t.Run("synthesizes and persists defaults on first read", func(t *testing.T) {
		settings, err := svc.GetSettings(ctx, timeline.ID)
		require.NoError(t, err)
		assert.NotZero(t, settings.ID)
		assert.Equal(t, timeline.ID, settings.TimelineID)
		assert.Equal(t, "Arial", settings.Font)
		assert.Equal(t, 16, settings.FontSize)
		assert.Equal(t, 20, settings.PixelsPerSubtick)
		assert.True(t, settings.ShowGuides)
		assert.Equal(t, 1200, settings.WindowWidth)
		assert.Equal(t, 1.0, settings.CustomScale)

		// The second read returns the stored row, not a new one.
		again, err := svc.GetSettings(ctx, timeline.ID)
		require.NoError(t, err)
		assert.Equal(t, settings.ID, again.ID)
	})

	t.Run("missing timeline", func(t *testing.T) {
		_, err := svc.GetSettings(ctx, 9999)
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "not_found", codeErr.Code)
		assert.Equal(t, "Timeline not found.", codeErr.Message)
	})
}

func TestService_UpdateSettings(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	t.Run("creates the row when none exists", func(t *testing.T) {
		timeline := createTestTimeline(t, db, "First")

		settings, err := svc.UpdateSettings(ctx, &models.TimelineSettings{
			TimelineID:       timeline.ID,
			Font:             "Georgia",
			FontSize:         18,
			PixelsPerSubtick: 25,
			CustomCSS:        "body { margin: 0; }",
			ShowGuides:       false,
			WindowX:          10,
			WindowY:          20,
			WindowWidth:      800,
			WindowHeight:     600,
			UseCustomScaling: true,
			CustomScale:      1.5,
		})
		require.NoError(t, err)
		assert.NotZero(t, settings.ID)
		assert.Equal(t, "Georgia", settings.Font)
		assert.Equal(t, 1.5, settings.CustomScale)
	})

	t.Run("updates the existing row in place", func(t *testing.T) {
		timeline := createTestTimeline(t, db, "Second")

		original, err := svc.GetSettings(ctx, timeline.ID)
		require.NoError(t, err)

		updated, err := svc.UpdateSettings(ctx, &models.TimelineSettings{
			TimelineID: timeline.ID,
			Font:       "Georgia",
			FontSize:   12,
			ShowGuides: true,
		})
		require.NoError(t, err)
		assert.Equal(t, original.ID, updated.ID)
		assert.Equal(t, "Georgia", updated.Font)
		assert.Equal(t, 12, updated.FontSize)
		assert.Equal(t, original.CreatedAt.Unix(), updated.CreatedAt.Unix())

		// Only one row per timeline.
		count, err := db.NewSelect().
			Model((*models.TimelineSettings)(nil)).
			Where("timeline_id = ?", timeline.ID).
			Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("zero display fields fall back to defaults", func(t *testing.T) {
		timeline := createTestTimeline(t, db, "Third")

		settings, err := svc.UpdateSettings(ctx, &models.TimelineSettings{
			TimelineID: timeline.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, "Arial", settings.Font)
		assert.Equal(t, 16, settings.FontSize)
		assert.Equal(t, 20, settings.PixelsPerSubtick)
		assert.Equal(t, 1.0, settings.CustomScale)
		assert.False(t, settings.ShowGuides)
	})

	t.Run("missing timeline", func(t *testing.T) {
		_, err := svc.UpdateSettings(ctx, &models.TimelineSettings{TimelineID: 9999})
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "not_found", codeErr.Code)
	})
}

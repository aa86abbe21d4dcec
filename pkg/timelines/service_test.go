package timelines

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/WolfyD/story-timeline-sub000/internal/testgen"
	"github.com/WolfyD/story-timeline-sub000/pkg/binder"
	"github.com/WolfyD/story-timeline-sub000/pkg/characters"
	"github.com/WolfyD/story-timeline-sub000/pkg/config"
	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/WolfyD/story-timeline-sub000/pkg/items"
	"github.com/WolfyD/story-timeline-sub000/pkg/migrations"
	"github.com/WolfyD/story-timeline-sub000/pkg/models"
	"github.com/WolfyD/story-timeline-sub000/pkg/notes"
	"github.com/WolfyD/story-timeline-sub000/pkg/pictures"
	"github.com/WolfyD/story-timeline-sub000/pkg/settings"
	"github.com/WolfyD/story-timeline-sub000/pkg/stories"
	"github.com/robinjoseph08/golib/pointerutil"
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

func setupTestService(t *testing.T) (*Service, *bun.DB, *config.Config) {
	t.Helper()

	db := setupTestDB(t)
	cfg := config.NewForTest()
	cfg.MediaDirectory = t.TempDir()
	b, err := binder.New()
	require.NoError(t, err)
	return NewService(db, cfg, b), db, cfg
}

func newItemsService(t *testing.T, db *bun.DB) *items.Service {
	t.Helper()

	b, err := binder.New()
	require.NoError(t, err)
	return items.NewService(db, b)
}

func TestService_CreateTimeline(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	t.Run("creates a timeline", func(t *testing.T) {
		timeline, err := svc.CreateTimeline(ctx, CreateTimelineParams{
			Title:       "  Chronicles of the North  ",
			Author:      "R. Holt",
			Description: "A frozen realm.",
			StartYear:   100,
			Granularity: 8,
		})
		require.NoError(t, err)
		assert.NotZero(t, timeline.ID)
		assert.Equal(t, "Chronicles of the North", timeline.Title)
		assert.Equal(t, "R. Holt", timeline.Author)
		assert.Equal(t, "A frozen realm.", timeline.Description)
		assert.Equal(t, 100, timeline.StartYear)
		assert.Equal(t, 8, timeline.Granularity)
		assert.False(t, timeline.CreatedAt.IsZero())
	})

	t.Run("defaults the granularity", func(t *testing.T) {
		timeline, err := svc.CreateTimeline(ctx, CreateTimelineParams{Title: "Plain"})
		require.NoError(t, err)
		assert.Equal(t, 4, timeline.Granularity)
	})

	t.Run("generates a default title with a dedupe suffix", func(t *testing.T) {
		first, err := svc.CreateTimeline(ctx, CreateTimelineParams{Author: "Anon"})
		require.NoError(t, err)
		assert.Equal(t, "New Timeline", first.Title)

		second, err := svc.CreateTimeline(ctx, CreateTimelineParams{Author: "Anon"})
		require.NoError(t, err)
		assert.Equal(t, "New Timeline 2", second.Title)

		third, err := svc.CreateTimeline(ctx, CreateTimelineParams{Author: "Anon"})
		require.NoError(t, err)
		assert.Equal(t, "New Timeline 3", third.Title)
	})

	t.Run("returns conflict for a duplicate title and author", func(t *testing.T) {
		_, err := svc.CreateTimeline(ctx, CreateTimelineParams{
			Title:  "Chronicles of the North",
			Author: "R. Holt",
		})
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "conflict", codeErr.Code)
		assert.Equal(t, "A timeline with this title and author already exists.", codeErr.Message)
	})

	t.Run("allows the same title under a different author", func(t *testing.T) {
		timeline, err := svc.CreateTimeline(ctx, CreateTimelineParams{
			Title:  "Chronicles of the North",
			Author: "J. Vale",
		})
		require.NoError(t, err)
		assert.Equal(t, "J. Vale", timeline.Author)
	})
}

func TestService_RetrieveTimeline(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	timeline, err := svc.CreateTimeline(ctx, CreateTimelineParams{Title: "Chronicles"})
	require.NoError(t, err)

	t.Run("retrieves by id", func(t *testing.T) {
		found, err := svc.RetrieveTimeline(ctx, RetrieveTimelineOptions{ID: &timeline.ID})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "Chronicles", found.Title)
	})

	t.Run("returns nil when missing", func(t *testing.T) {
		found, err := svc.RetrieveTimeline(ctx, RetrieveTimelineOptions{ID: pointerutil.Int(timeline.ID + 100)})
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestService_ListTimelines(t *testing.T) {
	svc, db, _ := setupTestService(t)
	itemsSvc := newItemsService(t, db)
	ctx := context.Background()

	annals, err := svc.CreateTimeline(ctx, CreateTimelineParams{Title: "Annals"})
	require.NoError(t, err)
	_, err = svc.CreateTimeline(ctx, CreateTimelineParams{Title: "Blank"})
	require.NoError(t, err)

	for _, params := range []items.CreateItemParams{
		{TimelineID: annals.ID, Title: "Founding", Year: 100},
		{TimelineID: annals.ID, Title: "The Regency", Type: models.ItemTypePeriod, Year: 200, EndYear: pointerutil.Int(250)},
		{TimelineID: annals.ID, Title: "Council", Year: 300, EndYear: pointerutil.Int(999)},
	} {
		_, err := itemsSvc.CreateItem(ctx, params)
		require.NoError(t, err)
	}

	t.Run("computes aggregates per timeline", func(t *testing.T) {
		timelines, err := svc.ListTimelines(ctx, ListTimelinesOptions{})
		require.NoError(t, err)
		require.Len(t, timelines, 2)

		assert.Equal(t, "Annals", timelines[0].Title)
		assert.Equal(t, 3, timelines[0].ItemCount)
		require.NotNil(t, timelines[0].MinYear)
		assert.Equal(t, 100, *timelines[0].MinYear)
		// Only ranged types extend the range with their end year; the
		// event's stray end_year doesn't count.
		require.NotNil(t, timelines[0].MaxYear)
		assert.Equal(t, 300, *timelines[0].MaxYear)

		assert.Equal(t, "Blank", timelines[1].Title)
		assert.Zero(t, timelines[1].ItemCount)
		assert.Nil(t, timelines[1].MinYear)
		assert.Nil(t, timelines[1].MaxYear)
	})

	t.Run("uses the period end as the upper bound when it is the latest", func(t *testing.T) {
		_, err := itemsSvc.CreateItem(ctx, items.CreateItemParams{
			TimelineID: annals.ID,
			Title:      "The Long Age",
			Type:       models.ItemTypeAge,
			Year:       400,
			EndYear:    pointerutil.Int(500),
		})
		require.NoError(t, err)

		timelines, err := svc.ListTimelines(ctx, ListTimelinesOptions{})
		require.NoError(t, err)
		require.NotNil(t, timelines[0].MaxYear)
		assert.Equal(t, 500, *timelines[0].MaxYear)
	})

	t.Run("paginates with total", func(t *testing.T) {
		timelines, total, err := svc.ListTimelinesWithTotal(ctx, ListTimelinesOptions{
			Limit:  pointerutil.Int(1),
			Offset: pointerutil.Int(1),
		})
		require.NoError(t, err)
		require.Len(t, timelines, 1)
		assert.Equal(t, "Blank", timelines[0].Title)
		assert.Equal(t, 2, total)
	})
}

func TestService_UpdateTimeline(t *testing.T) {
	svc, db, _ := setupTestService(t)
	itemsSvc := newItemsService(t, db)
	ctx := context.Background()

	t.Run("updates the given columns", func(t *testing.T) {
		timeline, err := svc.CreateTimeline(ctx, CreateTimelineParams{Title: "Draft", Author: "Anon"})
		require.NoError(t, err)

		updated, err := svc.UpdateTimeline(ctx, timeline.ID, UpdateTimelineParams{
			Title:     pointerutil.String("Annals of the West"),
			StartYear: pointerutil.Int(50),
		})
		require.NoError(t, err)
		assert.Equal(t, "Annals of the West", updated.Title)
		assert.Equal(t, 50, updated.StartYear)
		assert.Equal(t, "Anon", updated.Author)

		found, err := svc.RetrieveTimeline(ctx, RetrieveTimelineOptions{ID: &timeline.ID})
		require.NoError(t, err)
		assert.Equal(t, "Annals of the West", found.Title)
		assert.Equal(t, 50, found.StartYear)
	})

	t.Run("reprojects items when the granularity changes", func(t *testing.T) {
		timeline, err := svc.CreateTimeline(ctx, CreateTimelineParams{
			Title:       "T",
			Author:      "A",
			Granularity: 4,
		})
		require.NoError(t, err)

		item, err := itemsSvc.CreateItem(ctx, items.CreateItemParams{
			TimelineID: timeline.ID,
			Title:      "Founding",
			Type:       models.ItemTypeEvent,
			Year:       1000,
			Subtick:    2,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ItemTypeEvent, item.TypeName)
		assert.Equal(t, 1, item.ItemIndex)
		assert.Empty(t, item.TagNames())

		updated, err := svc.UpdateTimeline(ctx, timeline.ID, UpdateTimelineParams{Granularity: pointerutil.Int(8)})
		require.NoError(t, err)
		assert.Equal(t, 8, updated.Granularity)

		got, err := itemsSvc.RetrieveItem(ctx, items.RetrieveItemOptions{ID: &item.ID})
		require.NoError(t, err)
		assert.Equal(t, 4, got.Subtick)
		assert.Equal(t, 2, got.OriginalSubtick)
		assert.Equal(t, 4, got.CreationGranularity)
	})

	t.Run("is a noop without fields", func(t *testing.T) {
		timeline, err := svc.CreateTimeline(ctx, CreateTimelineParams{Title: "Static"})
		require.NoError(t, err)

		updated, err := svc.UpdateTimeline(ctx, timeline.ID, UpdateTimelineParams{})
		require.NoError(t, err)
		assert.Equal(t, "Static", updated.Title)
	})

	t.Run("returns conflict when renaming onto an existing timeline", func(t *testing.T) {
		_, err := svc.CreateTimeline(ctx, CreateTimelineParams{Title: "Taken", Author: "Anon"})
		require.NoError(t, err)
		victim, err := svc.CreateTimeline(ctx, CreateTimelineParams{Title: "Renamable", Author: "Anon"})
		require.NoError(t, err)

		_, err = svc.UpdateTimeline(ctx, victim.ID, UpdateTimelineParams{Title: pointerutil.String("Taken")})
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "conflict", codeErr.Code)
	})

	t.Run("rejects a blank title", func(t *testing.T) {
		timeline, err := svc.CreateTimeline(ctx, CreateTimelineParams{Title: "Named"})
		require.NoError(t, err)

		_, err = svc.UpdateTimeline(ctx, timeline.ID, UpdateTimelineParams{Title: pointerutil.String("   ")})
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "validation_error", codeErr.Code)
	})

	t.Run("returns not found for a missing timeline", func(t *testing.T) {
		_, err := svc.UpdateTimeline(ctx, 9999, UpdateTimelineParams{Title: pointerutil.String("Ghost")})
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "not_found", codeErr.Code)
		assert.Equal(t, "Timeline not found.", codeErr.Message)
	})
}

func TestService_DeleteTimeline(t *testing.T) {
	svc, db, cfg := setupTestService(t)
	ctx := context.Background()

	b, err := binder.New()
	require.NoError(t, err)
	itemsSvc := items.NewService(db, b)
	notesSvc := notes.NewService(db, b)
	charsSvc := characters.NewService(db, b)
	picsSvc := pictures.NewService(db, cfg)
	settingsSvc := settings.NewService(db)

	t.Run("cascades to everything scoped to the timeline", func(t *testing.T) {
		doomed, err := svc.CreateTimeline(ctx, CreateTimelineParams{Title: "Doomed"})
		require.NoError(t, err)
		keeper, err := svc.CreateTimeline(ctx, CreateTimelineParams{Title: "Keeper"})
		require.NoError(t, err)

		picture, err := picsSvc.SaveNewImage(ctx, pictures.SaveImageParams{
			TimelineID: doomed.ID,
			FileName:   "map.png",
			Title:      "map",
			Data:       testgen.PNGBytes(t, 8, 8),
		})
		require.NoError(t, err)
		keeperPicture, err := picsSvc.SaveNewImage(ctx, pictures.SaveImageParams{
			TimelineID: keeper.ID,
			FileName:   "crest.png",
			Title:      "crest",
			Data:       testgen.PNGBytes(t, 8, 8),
		})
		require.NoError(t, err)

		item, err := itemsSvc.CreateItem(ctx, items.CreateItemParams{
			TimelineID: doomed.ID,
			Title:      "The Fall of Redford",
			Year:       300,
			Tags:       []string{"war"},
			Stories:    []stories.StoryRef{{Title: "The Fall"}},
			PictureIDs: []string{picture.ID},
		})
		require.NoError(t, err)
		keeperItem, err := itemsSvc.CreateItem(ctx, items.CreateItemParams{
			TimelineID: keeper.ID,
			Title:      "Still Standing",
			Year:       1,
			Tags:       []string{"war"},
			PictureIDs: []string{keeperPicture.ID},
		})
		require.NoError(t, err)

		_, err = notesSvc.CreateNote(ctx, notes.CreateNoteParams{
			TimelineID: doomed.ID,
			Year:       300,
			Content:    "check the siege dates",
		})
		require.NoError(t, err)

		hero, err := charsSvc.CreateCharacter(ctx, characters.CreateCharacterParams{
			TimelineID: doomed.ID,
			Name:       "Aldous",
		})
		require.NoError(t, err)
		rival, err := charsSvc.CreateCharacter(ctx, characters.CreateCharacterParams{
			TimelineID: doomed.ID,
			Name:       "Brin",
		})
		require.NoError(t, err)
		_, err = charsSvc.CreateRelationship(ctx, characters.CreateRelationshipParams{
			CharacterAID: hero.ID,
			CharacterBID: rival.ID,
			Relation:     "rival",
		})
		require.NoError(t, err)
		require.NoError(t, charsSvc.AddItemCharacter(ctx, item.ID, hero.ID))

		_, err = settingsSvc.GetSettings(ctx, doomed.ID)
		require.NoError(t, err)

		err = svc.DeleteTimeline(ctx, doomed.ID)
		require.NoError(t, err)

		found, err := svc.RetrieveTimeline(ctx, RetrieveTimelineOptions{ID: &doomed.ID})
		require.NoError(t, err)
		assert.Nil(t, found)

		gone, err := itemsSvc.RetrieveItem(ctx, items.RetrieveItemOptions{ID: &item.ID})
		require.NoError(t, err)
		assert.Nil(t, gone)

		for _, scoped := range []interface{}{
			(*models.Note)(nil),
			(*models.Character)(nil),
			(*models.CharacterRelationship)(nil),
			(*models.TimelineSettings)(nil),
			(*models.Picture)(nil),
		} {
			count, err := db.NewSelect().Model(scoped).Where("timeline_id = ?", doomed.ID).Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, count)
		}

		refCount, err := db.NewSelect().Model((*models.ItemCharacter)(nil)).Where("item_id = ?", item.ID).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, refCount)

		_, err = os.Stat(filepath.Join(cfg.MediaDirectory, "pictures", strconv.Itoa(doomed.ID)))
		assert.True(t, os.IsNotExist(err))

		// Tags and stories are global; only the junction rows go.
		tagCount, err := db.NewSelect().Model((*models.Tag)(nil)).Where("t.name = ?", "war").Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, tagCount)
		storyCount, err := db.NewSelect().Model((*models.Story)(nil)).Where("s.title = ?", "The Fall").Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, storyCount)

		// The other timeline is untouched.
		still, err := itemsSvc.RetrieveItem(ctx, items.RetrieveItemOptions{ID: &keeperItem.ID})
		require.NoError(t, err)
		require.NotNil(t, still)
		require.Len(t, still.Pictures(), 1)
		_, err = os.Stat(keeperPicture.FilePath)
		require.NoError(t, err)
	})

	t.Run("returns not found for a missing timeline", func(t *testing.T) {
		err := svc.DeleteTimeline(ctx, 9999)
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "not_found", codeErr.Code)
		assert.Equal(t, "Timeline not found.", codeErr.Message)
	})
}

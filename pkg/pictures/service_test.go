package pictures

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/WolfyD/story-timeline-sub000/internal/testgen"
	"github.com/WolfyD/story-timeline-sub000/pkg/config"
	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/WolfyD/story-timeline-sub000/pkg/migrations"
	"github.com/WolfyD/story-timeline-sub000/pkg/models"
	"github.com/google/uuid"
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

func setupTestService(t *testing.T) (*Service, *bun.DB) {
	t.Helper()

	db := setupTestDB(t)
	cfg := config.NewForTest()
	cfg.MediaDirectory = t.TempDir()
	return NewService(db, cfg), db
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

func createTestItem(t *testing.T, db *bun.DB, timelineID int, title string) *models.Item {
	t.Helper()

	id, err := uuid.NewRandom()
	require.NoError(t, err)

	now := time.Now()
	item := &models.Item{
		ID:                  id.String(),
		CreatedAt:           now,
		UpdatedAt:           now,
		TimelineID:          timelineID,
		TypeID:              1, // Event
		Title:               title,
		Year:                100,
		Subtick:             1,
		OriginalSubtick:     1,
		CreationGranularity: 4,
	}
	_, err = db.NewInsert().Model(item).Returning("*").Exec(context.Background())
	require.NoError(t, err)
	return item
}

func saveTestPicture(t *testing.T, svc *Service, timelineID int, name string) *models.Picture {
	t.Helper()

	picture, err := svc.SaveNewImage(context.Background(), SaveImageParams{
		TimelineID: timelineID,
		FileName:   name + ".png",
		Title:      name,
		Data:       testgen.PNGBytes(t, 8, 8),
	})
	require.NoError(t, err)
	return picture
}

func TestService_SaveNewImage(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	timeline := createTestTimeline(t, db, "Chronicles")

	t.Run("stores a small png byte-for-byte", func(t *testing.T) {
		data := testgen.PNGBytes(t, 20, 10)
		picture, err := svc.SaveNewImage(ctx, SaveImageParams{
			TimelineID:  timeline.ID,
			FileName:    "My Cool Picture.png",
			Title:       "A portrait",
			Description: "Found in the archives.",
			Data:        data,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, picture.ID)
		assert.Equal(t, "image/png", picture.FileType)
		assert.Equal(t, 20, picture.Width)
		assert.Equal(t, 10, picture.Height)
		assert.Equal(t, int64(len(data)), picture.FileSize)
		assert.True(t, strings.HasPrefix(picture.FileName, "my_cool_picture_"))
		assert.True(t, strings.HasSuffix(picture.FileName, ".png"))

		expectedDir := filepath.Join(svc.mediaDir, "pictures", strconv.Itoa(timeline.ID))
		assert.Equal(t, filepath.Join(expectedDir, picture.FileName), picture.FilePath)

		stored, err := os.ReadFile(picture.FilePath)
		require.NoError(t, err)
		assert.Equal(t, data, stored)
	})

	t.Run("downscales oversized images to jpeg", func(t *testing.T) {
		svc.maxDimension = 16

		picture, err := svc.SaveNewImage(ctx, SaveImageParams{
			TimelineID: timeline.ID,
			FileName:   "huge scan.jpg",
			Data:       testgen.JPEGBytes(t, 64, 32),
		})
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", picture.FileType)
		assert.Equal(t, 16, picture.Width)
		assert.Equal(t, 8, picture.Height)
		assert.True(t, strings.HasSuffix(picture.FileName, ".jpg"))

		svc.maxDimension = defaultMaxDimension
	})

	t.Run("keeps png format when downscaling", func(t *testing.T) {
		svc.maxDimension = 16

		picture, err := svc.SaveNewImage(ctx, SaveImageParams{
			TimelineID: timeline.ID,
			FileName:   "map.png",
			Data:       testgen.PNGBytes(t, 64, 64),
		})
		require.NoError(t, err)
		assert.Equal(t, "image/png", picture.FileType)
		assert.Equal(t, 16, picture.Width)
		assert.Equal(t, 16, picture.Height)
		assert.True(t, strings.HasSuffix(picture.FileName, ".png"))

		svc.maxDimension = defaultMaxDimension
	})

	t.Run("re-encodes bulky files even within dimension bounds", func(t *testing.T) {
		svc.maxEncodedBytes = 64

		picture, err := svc.SaveNewImage(ctx, SaveImageParams{
			TimelineID: timeline.ID,
			FileName:   "dense.png",
			Data:       testgen.PNGBytes(t, 32, 32),
		})
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", picture.FileType)
		assert.Equal(t, 32, picture.Width)
		assert.Equal(t, 32, picture.Height)

		svc.maxEncodedBytes = defaultMaxEncodedBytes
	})

	t.Run("rejects data that isn't an image", func(t *testing.T) {
		_, err := svc.SaveNewImage(ctx, SaveImageParams{
			TimelineID: timeline.ID,
			FileName:   "notes.txt",
			Data:       []byte("not an image at all"),
		})
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "unsupported_media_type", codeErr.Code)
	})

	t.Run("rejects empty data", func(t *testing.T) {
		_, err := svc.SaveNewImage(ctx, SaveImageParams{
			TimelineID: timeline.ID,
			FileName:   "empty.png",
		})
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "validation_error", codeErr.Code)
	})

	t.Run("returns not found for a missing timeline", func(t *testing.T) {
		_, err := svc.SaveNewImage(ctx, SaveImageParams{
			TimelineID: timeline.ID + 100,
			FileName:   "lost.png",
			Data:       testgen.PNGBytes(t, 4, 4),
		})
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "not_found", codeErr.Code)
		assert.Equal(t, "Timeline not found.", codeErr.Message)
	})
}

func TestService_RetrievePicture(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	timeline := createTestTimeline(t, db, "Chronicles")
	picture := saveTestPicture(t, svc, timeline.ID, "portrait")

	t.Run("retrieves by id", func(t *testing.T) {
		found, err := svc.RetrievePicture(ctx, RetrievePictureOptions{ID: &picture.ID})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, picture.FileName, found.FileName)
	})

	t.Run("returns nil when missing", func(t *testing.T) {
		found, err := svc.RetrievePicture(ctx, RetrievePictureOptions{ID: pointerutil.String("no-such-picture")})
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestService_ListPictures(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	timeline := createTestTimeline(t, db, "Chronicles")
	other := createTestTimeline(t, db, "Apocrypha")
	item := createTestItem(t, db, timeline.ID, "The Siege")

	shared := saveTestPicture(t, svc, timeline.ID, "shared")
	saveTestPicture(t, svc, timeline.ID, "unused")
	saveTestPicture(t, svc, other.ID, "elsewhere")

	require.NoError(t, svc.AddItemPicture(ctx, item.ID, shared.ID))

	t.Run("filters by timeline and counts usage", func(t *testing.T) {
		pictures, err := svc.ListPictures(ctx, ListPicturesOptions{TimelineID: &timeline.ID})
		require.NoError(t, err)
		require.Len(t, pictures, 2)
		assert.Equal(t, shared.ID, pictures[0].ID)
		assert.Equal(t, 1, pictures[0].UsageCount)
		assert.Equal(t, 0, pictures[1].UsageCount)
	})

	t.Run("paginates with total", func(t *testing.T) {
		pictures, total, err := svc.ListPicturesWithTotal(ctx, ListPicturesOptions{Limit: pointerutil.Int(2)})
		require.NoError(t, err)
		assert.Len(t, pictures, 2)
		assert.Equal(t, 3, total)
	})

	t.Run("skips pictures whose file is gone", func(t *testing.T) {
		ghost := saveTestPicture(t, svc, other.ID, "ghost")
		require.NoError(t, os.Remove(ghost.FilePath))

		pictures, err := svc.ListPictures(ctx, ListPicturesOptions{TimelineID: &other.ID})
		require.NoError(t, err)
		require.Len(t, pictures, 1)
		assert.Equal(t, "elsewhere", pictures[0].Title)

		// The row itself survives for a cleanup pass to reclaim.
		found, err := svc.RetrievePicture(ctx, RetrievePictureOptions{ID: &ghost.ID})
		require.NoError(t, err)
		assert.NotNil(t, found)
	})
}

func TestService_UpdatePicture(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	timeline := createTestTimeline(t, db, "Chronicles")
	picture := saveTestPicture(t, svc, timeline.ID, "portrait")

	t.Run("updates title and description", func(t *testing.T) {
		picture.Title = "The Queen's Portrait"
		picture.Description = "Restored in 412."
		err := svc.UpdatePicture(ctx, picture, UpdatePictureOptions{Columns: []string{"title", "description"}})
		require.NoError(t, err)

		found, err := svc.RetrievePicture(ctx, RetrievePictureOptions{ID: &picture.ID})
		require.NoError(t, err)
		assert.Equal(t, "The Queen's Portrait", found.Title)
		assert.Equal(t, "Restored in 412.", found.Description)
	})

	t.Run("ignores file columns", func(t *testing.T) {
		original, err := svc.RetrievePicture(ctx, RetrievePictureOptions{ID: &picture.ID})
		require.NoError(t, err)

		picture.FilePath = "/tmp/forged"
		err = svc.UpdatePicture(ctx, picture, UpdatePictureOptions{Columns: []string{"file_path"}})
		require.NoError(t, err)

		found, err := svc.RetrievePicture(ctx, RetrievePictureOptions{ID: &picture.ID})
		require.NoError(t, err)
		assert.Equal(t, original.FilePath, found.FilePath)
	})

	t.Run("returns not found for a missing picture", func(t *testing.T) {
		missing := &models.Picture{ID: "no-such-picture", Title: "Ghost"}
		err := svc.UpdatePicture(ctx, missing, UpdatePictureOptions{Columns: []string{"title"}})
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "not_found", codeErr.Code)
	})
}

func TestService_ItemPictureReferences(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	timeline := createTestTimeline(t, db, "Chronicles")
	item := createTestItem(t, db, timeline.ID, "The Siege")
	other := createTestItem(t, db, timeline.ID, "The Coronation")
	picture := saveTestPicture(t, svc, timeline.ID, "battle-map")

	t.Run("links a picture to several items", func(t *testing.T) {
		require.NoError(t, svc.AddItemPicture(ctx, item.ID, picture.ID))
		require.NoError(t, svc.AddItemPicture(ctx, other.ID, picture.ID))
		// Linking twice is a noop.
		require.NoError(t, svc.AddItemPicture(ctx, item.ID, picture.ID))

		count, err := svc.GetPictureUsageCount(ctx, picture.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		pictures, err := svc.ListItemPictures(ctx, item.ID)
		require.NoError(t, err)
		require.Len(t, pictures, 1)
		assert.Equal(t, picture.ID, pictures[0].ID)
	})

	t.Run("unlinks without touching the file", func(t *testing.T) {
		require.NoError(t, svc.RemoveItemPicture(ctx, item.ID, picture.ID))

		count, err := svc.GetPictureUsageCount(ctx, picture.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		_, err = os.Stat(picture.FilePath)
		require.NoError(t, err)
	})

	t.Run("returns not found for a missing item", func(t *testing.T) {
		err := svc.AddItemPicture(ctx, "no-such-item", picture.ID)
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "not_found", codeErr.Code)
		assert.Equal(t, "Item not found.", codeErr.Message)
	})

	t.Run("returns not found for a missing picture", func(t *testing.T) {
		err := svc.AddItemPicture(ctx, item.ID, "no-such-picture")
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "not_found", codeErr.Code)
		assert.Equal(t, "Picture not found.", codeErr.Message)
	})
}

func TestService_DeletePicture(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	timeline := createTestTimeline(t, db, "Chronicles")
	item := createTestItem(t, db, timeline.ID, "The Siege")
	picture := saveTestPicture(t, svc, timeline.ID, "doomed")
	require.NoError(t, svc.AddItemPicture(ctx, item.ID, picture.ID))

	t.Run("deletes the row, references, and file", func(t *testing.T) {
		err := svc.DeletePicture(ctx, picture.ID)
		require.NoError(t, err)

		found, err := svc.RetrievePicture(ctx, RetrievePictureOptions{ID: &picture.ID})
		require.NoError(t, err)
		assert.Nil(t, found)

		count, err := svc.GetPictureUsageCount(ctx, picture.ID)
		require.NoError(t, err)
		assert.Zero(t, count)

		_, err = os.Stat(picture.FilePath)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("returns not found for a missing picture", func(t *testing.T) {
		err := svc.DeletePicture(ctx, picture.ID)
		require.Error(t, err)

		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "not_found", codeErr.Code)
	})
}

func TestService_CleanupOrphanedImages(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	timeline := createTestTimeline(t, db, "Chronicles")
	other := createTestTimeline(t, db, "Apocrypha")
	item := createTestItem(t, db, timeline.ID, "The Siege")

	kept := saveTestPicture(t, svc, timeline.ID, "kept")
	orphanOne := saveTestPicture(t, svc, timeline.ID, "orphan-one")
	orphanTwo := saveTestPicture(t, svc, timeline.ID, "orphan-two")
	elsewhere := saveTestPicture(t, svc, other.ID, "elsewhere")

	require.NoError(t, svc.AddItemPicture(ctx, item.ID, kept.ID))

	t.Run("scoped to a timeline", func(t *testing.T) {
		deleted, err := svc.CleanupOrphanedImages(ctx, CleanupOrphanedImagesOptions{TimelineID: &timeline.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		for _, picture := range []*models.Picture{orphanOne, orphanTwo} {
			found, err := svc.RetrievePicture(ctx, RetrievePictureOptions{ID: &picture.ID})
			require.NoError(t, err)
			assert.Nil(t, found)

			_, err = os.Stat(picture.FilePath)
			assert.True(t, os.IsNotExist(err))
		}

		// The referenced picture and the other timeline's orphan survive.
		found, err := svc.RetrievePicture(ctx, RetrievePictureOptions{ID: &kept.ID})
		require.NoError(t, err)
		assert.NotNil(t, found)
		found, err = svc.RetrievePicture(ctx, RetrievePictureOptions{ID: &elsewhere.ID})
		require.NoError(t, err)
		assert.NotNil(t, found)
	})

	t.Run("unscoped cleanup sweeps every timeline", func(t *testing.T) {
		deleted, err := svc.CleanupOrphanedImages(ctx, CleanupOrphanedImagesOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		found, err := svc.RetrievePicture(ctx, RetrievePictureOptions{ID: &elsewhere.ID})
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("returns zero when nothing is orphaned", func(t *testing.T) {
		deleted, err := svc.CleanupOrphanedImages(ctx, CleanupOrphanedImagesOptions{})
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}

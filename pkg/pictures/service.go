package pictures

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/WolfyD/story-timeline-sub000/pkg/config"
	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/WolfyD/story-timeline-sub000/pkg/fileutils"
	"github.com/WolfyD/story-timeline-sub000/pkg/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

type SaveImageParams struct {
	TimelineID  int
	FileName    string
	Title       string
	Description string
	Data        []byte
}

type RetrievePictureOptions struct {
	ID *string
}

type ListPicturesOptions struct {
	Limit      *int
	Offset     *int
	TimelineID *int

	includeTotal bool
}

type UpdatePictureOptions struct {
	Columns []string
}

type CleanupOrphanedImagesOptions struct {
	TimelineID *int
}

const (
	defaultMaxDimension    = 2048
	defaultMaxEncodedBytes = 5 << 20
)

type Service struct {
	db  *bun.DB
	log logger.Logger

	mediaDir        string
	maxDimension    int
	maxEncodedBytes int
}

func NewService(db *bun.DB, cfg *config.Config) *Service {
	return &Service{
		db:              db,
		log:             logger.New(),
		mediaDir:        cfg.MediaDirectory,
		maxDimension:    defaultMaxDimension,
		maxEncodedBytes: defaultMaxEncodedBytes,
	}
}

// SaveNewImage processes an uploaded image and stores it under the
// timeline's media directory along with its metadata row. The returned
// picture describes the file as written, which may be smaller than the
// upload.
func (svc *Service) SaveNewImage(ctx context.Context, params SaveImageParams) (*models.Picture, error) {
	if len(params.Data) == 0 {
		return nil, errcodes.ValidationError("Image data cannot be empty.")
	}

	exists, err := svc.db.
		NewSelect().
		Model((*models.Timeline)(nil)).
		Where("tl.id = ?", params.TimelineID).
		Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !exists {
		return nil, errcodes.NotFound("Timeline")
	}

	processed, err := svc.processImage(params.Data)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(params.FileName, filepath.Ext(params.FileName))
	if base == "" {
		base = params.Title
	}
	filename, err := fileutils.GenerateMediaFilename(base, processed.ext)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(svc.mediaDir, "pictures", strconv.Itoa(params.TimelineID))
	if err := fileutils.EnsureDir(dir); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, processed.data, 0644); err != nil {
		return nil, errors.WithStack(err)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	now := time.Now()
	picture := &models.Picture{
		ID:          id.String(),
		CreatedAt:   now,
		UpdatedAt:   now,
		TimelineID:  params.TimelineID,
		FilePath:    path,
		FileName:    filename,
		FileSize:    int64(len(processed.data)),
		FileType:    processed.fileType,
		Width:       processed.width,
		Height:      processed.height,
		Title:       params.Title,
		Description: params.Description,
	}
	_, err = svc.db.
		NewInsert().
		Model(picture).
		Returning("*").
		Exec(ctx)
	if err != nil {
		// Don't leave the file behind when the row couldn't be written.
		if rmErr := os.Remove(path); rmErr != nil {
			svc.log.Warn("failed to remove image file after insert error", logger.Data{"path": path, "err": rmErr.Error()})
		}
		return nil, errors.WithStack(err)
	}

	return picture, nil
}

func (svc *Service) RetrievePicture(ctx context.Context, opts RetrievePictureOptions) (*models.Picture, error) {
	picture := &models.Picture{}

	q := svc.db.
		NewSelect().
		Model(picture)

	if opts.ID != nil {
		q = q.Where("p.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	return picture, nil
}

func (svc *Service) ListPictures(ctx context.Context, opts ListPicturesOptions) ([]*models.Picture, error) {
	p, _, err := svc.listPicturesWithTotal(ctx, opts)
	return p, errors.WithStack(err)
}

func (svc *Service) ListPicturesWithTotal(ctx context.Context, opts ListPicturesOptions) ([]*models.Picture, int, error) {
	opts.includeTotal = true
	return svc.listPicturesWithTotal(ctx, opts)
}

func (svc *Service) listPicturesWithTotal(ctx context.Context, opts ListPicturesOptions) ([]*models.Picture, int, error) {
	var pictures []*models.Picture
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&pictures).
		ColumnExpr("p.*").
		ColumnExpr("(SELECT COUNT(*) FROM item_pictures ipc WHERE ipc.picture_id = p.id) AS usage_count").
		Order("p.created_at ASC", "p.id ASC")

	if opts.TimelineID != nil {
		q = q.Where("p.timeline_id = ?", *opts.TimelineID)
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return svc.filterReadable(pictures), total, nil
}

// filterReadable drops pictures whose backing file is gone. The rows stay in
// the database for a cleanup pass to reclaim; listings just skip them instead
// of failing.
func (svc *Service) filterReadable(pictures []*models.Picture) []*models.Picture {
	readable := make([]*models.Picture, 0, len(pictures))
	for _, picture := range pictures {
		if !fileutils.FileExists(picture.FilePath) {
			svc.log.Warn("skipping picture with missing file", logger.Data{"path": picture.FilePath})
			continue
		}
		readable = append(readable, picture)
	}
	return readable
}

var updatablePictureColumns = map[string]bool{
	"title":       true,
	"description": true,
}

func (svc *Service) UpdatePicture(ctx context.Context, picture *models.Picture, opts UpdatePictureOptions) error {
	// File columns describe the stored bytes and are never edited directly.
	columns := make([]string, 0, len(opts.Columns))
	for _, col := range opts.Columns {
		if updatablePictureColumns[col] {
			columns = append(columns, col)
		}
	}
	if len(columns) == 0 {
		return nil
	}

	picture.UpdatedAt = time.Now()
	columns = append(columns, "updated_at")

	result, err := svc.db.
		NewUpdate().
		Model(picture).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errcodes.NotFound("Picture")
	}
	return nil
}

// DeletePicture deletes a picture row with its item references and then
// removes the file. Files are removed only after the rows are gone; a
// leftover file is recoverable, a dangling row is not.
func (svc *Service) DeletePicture(ctx context.Context, pictureID string) error {
	picture, err := svc.RetrievePicture(ctx, RetrievePictureOptions{ID: &pictureID})
	if err != nil {
		return err
	}
	if picture == nil {
		return errcodes.NotFound("Picture")
	}

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.ItemPicture)(nil)).
			Where("picture_id = ?", pictureID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.Picture)(nil)).
			Where("id = ?", pictureID).
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return err
	}

	if err := os.Remove(picture.FilePath); err != nil && !os.IsNotExist(err) {
		svc.log.Warn("failed to remove image file", logger.Data{"path": picture.FilePath, "err": err.Error()})
	}
	return nil
}

// AddImageReference links a picture to an item. It takes a bun.IDB so item
// writes can run it inside their own transaction. Linking a picture the
// item already has is a noop.
func AddImageReference(ctx context.Context, idb bun.IDB, itemID string, pictureID string) error {
	ref := &models.ItemPicture{
		ItemID:    itemID,
		PictureID: pictureID,
	}
	_, err := idb.
		NewInsert().
		Model(ref).
		On("CONFLICT (item_id, picture_id) DO NOTHING").
		Exec(ctx)
	return errors.WithStack(err)
}

// RemoveImageReference unlinks a picture from an item. The picture row and
// file are kept; CleanupOrphanedImages reclaims pictures nothing references
// anymore.
func RemoveImageReference(ctx context.Context, idb bun.IDB, itemID string, pictureID string) error {
	_, err := idb.
		NewDelete().
		Model((*models.ItemPicture)(nil)).
		Where("item_id = ?", itemID).
		Where("picture_id = ?", pictureID).
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) AddItemPicture(ctx context.Context, itemID string, pictureID string) error {
	exists, err := itemExists(ctx, svc.db, itemID)
	if err != nil {
		return err
	}
	if !exists {
		return errcodes.NotFound("Item")
	}

	picture, err := svc.RetrievePicture(ctx, RetrievePictureOptions{ID: &pictureID})
	if err != nil {
		return err
	}
	if picture == nil {
		return errcodes.NotFound("Picture")
	}

	return AddImageReference(ctx, svc.db, itemID, pictureID)
}

func (svc *Service) RemoveItemPicture(ctx context.Context, itemID string, pictureID string) error {
	exists, err := itemExists(ctx, svc.db, itemID)
	if err != nil {
		return err
	}
	if !exists {
		return errcodes.NotFound("Item")
	}

	return RemoveImageReference(ctx, svc.db, itemID, pictureID)
}

// GetPictureUsageCount returns the number of items referencing the picture.
func (svc *Service) GetPictureUsageCount(ctx context.Context, pictureID string) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.ItemPicture)(nil)).
		Where("picture_id = ?", pictureID).
		Count(ctx)
	return count, errors.WithStack(err)
}

// ListItemPictures returns the pictures referenced by an item in the order
// they were stored.
func (svc *Service) ListItemPictures(ctx context.Context, itemID string) ([]*models.Picture, error) {
	pictures := []*models.Picture{}

	err := svc.db.
		NewSelect().
		Model(&pictures).
		Join("INNER JOIN item_pictures ipc ON ipc.picture_id = p.id").
		Where("ipc.item_id = ?", itemID).
		Order("p.created_at ASC", "p.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return svc.filterReadable(pictures), nil
}

// CleanupOrphanedImages deletes pictures with no item references, removing
// their files after the rows are gone. It returns the number of pictures
// deleted.
func (svc *Service) CleanupOrphanedImages(ctx context.Context, opts CleanupOrphanedImagesOptions) (int, error) {
	var orphans []*models.Picture

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			Model(&orphans).
			Where("p.id NOT IN (SELECT DISTINCT picture_id FROM item_pictures)")
		if opts.TimelineID != nil {
			q = q.Where("p.timeline_id = ?", *opts.TimelineID)
		}
		if err := q.Scan(ctx); err != nil {
			return errors.WithStack(err)
		}
		if len(orphans) == 0 {
			return nil
		}

		ids := make([]string, 0, len(orphans))
		for _, picture := range orphans {
			ids = append(ids, picture.ID)
		}
		_, err := tx.NewDelete().
			Model((*models.Picture)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return 0, err
	}

	for _, picture := range orphans {
		if err := os.Remove(picture.FilePath); err != nil && !os.IsNotExist(err) {
			svc.log.Warn("failed to remove orphaned image file", logger.Data{"path": picture.FilePath, "err": err.Error()})
		}
	}

	return len(orphans), nil
}

func itemExists(ctx context.Context, idb bun.IDB, itemID string) (bool, error) {
	exists, err := idb.
		NewSelect().
		Model((*models.Item)(nil)).
		Where("i.id = ?", itemID).
		Exists(ctx)
	return exists, errors.WithStack(err)
}

package items

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"time"

	"github.com/WolfyD/story-timeline-sub000/pkg/binder"
	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/WolfyD/story-timeline-sub000/pkg/models"
	"github.com/WolfyD/story-timeline-sub000/pkg/pictures"
	"github.com/WolfyD/story-timeline-sub000/pkg/stories"
	"github.com/WolfyD/story-timeline-sub000/pkg/tags"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

type RetrieveItemOptions struct {
	ID *string
}

type ListItemsOptions struct {
	Limit      *int
	Offset     *int
	TimelineID *int
	Type       *string

	includeTotal bool
}

type Service struct {
	db     *bun.DB
	log    logger.Logger
	binder *binder.Binder
}

func NewService(db *bun.DB, b *binder.Binder) *Service {
	return &Service{db, logger.New(), b}
}

// CreateItem writes a new item with its tag, story, and picture associations
// in one transaction. The item records the subtick and granularity it was
// entered under so the position survives later granularity changes.
func (svc *Service) CreateItem(ctx context.Context, params CreateItemParams) (*models.Item, error) {
	if err := svc.binder.Bind(ctx, &params); err != nil {
		return nil, err
	}

	timeline, err := retrieveTimeline(ctx, svc.db, params.TimelineID)
	if err != nil {
		return nil, err
	}
	if timeline == nil {
		return nil, errcodes.NotFound("Timeline")
	}

	if err := validateRange(params.Year, params.Subtick, params.EndYear, params.EndSubtick); err != nil {
		return nil, err
	}

	itemType, err := resolveItemType(ctx, svc.db, params.Type)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	now := time.Now()
	item := &models.Item{
		ID:                  id.String(),
		CreatedAt:           now,
		UpdatedAt:           now,
		TimelineID:          params.TimelineID,
		TypeID:              itemType.ID,
		Title:               strings.TrimSpace(params.Title),
		Description:         params.Description,
		Content:             params.Content,
		Year:                params.Year,
		Subtick:             params.Subtick,
		EndYear:             params.EndYear,
		EndSubtick:          params.EndSubtick,
		OriginalSubtick:     params.Subtick,
		OriginalEndSubtick:  params.EndSubtick,
		CreationGranularity: timeline.Granularity,
		BookTitle:           params.BookTitle,
		Chapter:             params.Chapter,
		Page:                params.Page,
		ShowInNotes:         params.ShowInNotes,
	}
	if params.Color != nil && *params.Color != "" {
		item.Color = params.Color
	}

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// New items go to the end of the timeline's display order. The
		// sequence starts at 1; a reindex pass compacts it to 0..N-1.
		err := tx.NewSelect().
			ColumnExpr("COALESCE(MAX(item_index), 0) + 1").
			Table("items").
			Where("timeline_id = ?", params.TimelineID).
			Scan(ctx, &item.ItemIndex)
		if err != nil {
			return errors.WithStack(err)
		}

		if _, err := tx.NewInsert().Model(item).Returning("*").Exec(ctx); err != nil {
			return errors.WithStack(err)
		}

		if len(params.Tags) > 0 {
			if err := tags.SetItemTags(ctx, tx, item.ID, params.Tags); err != nil {
				return err
			}
		}
		if len(params.Stories) > 0 {
			if err := stories.SetItemStories(ctx, tx, item.ID, params.Stories); err != nil {
				return err
			}
		}
		return linkPictures(ctx, tx, item.ID, params.PictureIDs)
	})
	if err != nil {
		return nil, err
	}

	return svc.RetrieveItem(ctx, RetrieveItemOptions{ID: &item.ID})
}

func (svc *Service) RetrieveItem(ctx context.Context, opts RetrieveItemOptions) (*models.Item, error) {
	item := &models.Item{}

	q := svc.db.
		NewSelect().
		Model(item).
		ColumnExpr("i.*").
		ColumnExpr("ity.name AS type_name").
		Join("INNER JOIN item_types ity ON ity.id = i.type_id").
		Relation("ItemTags.Tag").
		Relation("ItemStoryRefs.Story").
		Relation("ItemPictures.Picture").
		Relation("ItemCharacters.Character")

	if opts.ID != nil {
		q = q.Where("i.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	return item, nil
}

func (svc *Service) ListItems(ctx context.Context, opts ListItemsOptions) ([]*models.Item, error) {
	i, _, err := svc.listItemsWithTotal(ctx, opts)
	return i, errors.WithStack(err)
}

func (svc *Service) ListItemsWithTotal(ctx context.Context, opts ListItemsOptions) ([]*models.Item, int, error) {
	opts.includeTotal = true
	return svc.listItemsWithTotal(ctx, opts)
}

func (svc *Service) listItemsWithTotal(ctx context.Context, opts ListItemsOptions) ([]*models.Item, int, error) {
	items := []*models.Item{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&items).
		ColumnExpr("i.*").
		ColumnExpr("ity.name AS type_name").
		Join("INNER JOIN item_types ity ON ity.id = i.type_id").
		Relation("ItemTags.Tag").
		Relation("ItemStoryRefs.Story").
		Relation("ItemPictures.Picture").
		Relation("ItemCharacters.Character").
		Order("i.year ASC", "i.subtick ASC", "i.item_index ASC", "i.id ASC")

	if opts.TimelineID != nil {
		q = q.Where("i.timeline_id = ?", *opts.TimelineID)
	}
	if opts.Type != nil {
		q = q.Where("LOWER(ity.name) = LOWER(?)", *opts.Type)
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

	return items, total, nil
}

// UpdateItem applies the given fields and association sets. Editing the
// subtick or end subtick re-anchors the recorded entry position to the
// timeline's current granularity, so later granularity changes project from
// what the user last typed.
func (svc *Service) UpdateItem(ctx context.Context, itemID string, params UpdateItemParams) (*models.Item, error) {
	if err := svc.binder.Bind(ctx, &params); err != nil {
		return nil, err
	}

	item, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: &itemID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, errcodes.NotFound("Item")
	}

	timeline, err := retrieveTimeline(ctx, svc.db, item.TimelineID)
	if err != nil {
		return nil, err
	}
	if timeline == nil {
		return nil, errcodes.NotFound("Timeline")
	}

	columns := []string{}
	if params.Type != nil {
		itemType, err := resolveItemType(ctx, svc.db, *params.Type)
		if err != nil {
			return nil, err
		}
		item.TypeID = itemType.ID
		columns = append(columns, "type_id")
	}
	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			return nil, errcodes.ValidationError("Item title cannot be empty.")
		}
		item.Title = title
		columns = append(columns, "title")
	}
	if params.Description != nil {
		item.Description = *params.Description
		columns = append(columns, "description")
	}
	if params.Content != nil {
		item.Content = *params.Content
		columns = append(columns, "content")
	}
	if params.Year != nil {
		item.Year = *params.Year
		columns = append(columns, "year")
	}

	positionEdited := false
	if params.Subtick != nil && *params.Subtick != item.Subtick {
		item.Subtick = *params.Subtick
		columns = append(columns, "subtick")
		positionEdited = true
	}
	if params.ClearEnd {
		if item.EndYear != nil || item.EndSubtick != nil {
			item.EndYear = nil
			item.EndSubtick = nil
			columns = append(columns, "end_year", "end_subtick")
			positionEdited = true
		}
	} else {
		if params.EndYear != nil {
			item.EndYear = params.EndYear
			columns = append(columns, "end_year")
		}
		if params.EndSubtick != nil && !intPtrEqual(params.EndSubtick, item.EndSubtick) {
			item.EndSubtick = params.EndSubtick
			columns = append(columns, "end_subtick")
			positionEdited = true
		}
	}
	if positionEdited {
		item.OriginalSubtick = item.Subtick
		item.OriginalEndSubtick = item.EndSubtick
		item.CreationGranularity = timeline.Granularity
		columns = append(columns, "original_subtick", "original_end_subtick", "creation_granularity")
	}
	if err := validateRange(item.Year, item.Subtick, item.EndYear, item.EndSubtick); err != nil {
		return nil, err
	}

	if params.BookTitle != nil {
		item.BookTitle = params.BookTitle
		columns = append(columns, "book_title")
	}
	if params.Chapter != nil {
		item.Chapter = params.Chapter
		columns = append(columns, "chapter")
	}
	if params.Page != nil {
		item.Page = params.Page
		columns = append(columns, "page")
	}
	if params.Color != nil {
		// An empty string clears the color.
		if *params.Color == "" {
			item.Color = nil
		} else {
			item.Color = params.Color
		}
		columns = append(columns, "color")
	}
	if params.ShowInNotes != nil {
		item.ShowInNotes = *params.ShowInNotes
		columns = append(columns, "show_in_notes")
	}

	hasAssociations := params.Tags != nil || params.Stories != nil || params.PictureIDs != nil
	if len(columns) == 0 && !hasAssociations {
		return item, nil
	}

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if len(columns) > 0 {
			item.UpdatedAt = time.Now()
			columns = append(columns, "updated_at")

			_, err := tx.NewUpdate().
				Model(item).
				Column(columns...).
				WherePK().
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		if params.Tags != nil {
			if err := tags.SetItemTags(ctx, tx, item.ID, params.Tags); err != nil {
				return err
			}
		}
		if params.Stories != nil {
			if err := stories.SetItemStories(ctx, tx, item.ID, params.Stories); err != nil {
				return err
			}
		}
		if params.PictureIDs != nil {
			if err := replacePictures(ctx, tx, item.ID, params.PictureIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return svc.RetrieveItem(ctx, RetrieveItemOptions{ID: &item.ID})
}

// DeleteItem deletes an item with all of its associations. Pictures whose
// last reference this was are deleted too, files included; pictures still
// referenced by other items are left alone.
func (svc *Service) DeleteItem(ctx context.Context, itemID string) error {
	var orphanPictures []*models.Picture

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(&orphanPictures).
			Join("INNER JOIN item_pictures ipc ON ipc.picture_id = p.id").
			Where("ipc.item_id = ?", itemID).
			Where("NOT EXISTS (SELECT 1 FROM item_pictures other WHERE other.picture_id = p.id AND other.item_id <> ?)", itemID).
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		for _, junction := range []interface{}{
			(*models.ItemTag)(nil),
			(*models.ItemStoryRef)(nil),
			(*models.ItemPicture)(nil),
			(*models.ItemCharacter)(nil),
		} {
			_, err := tx.NewDelete().
				Model(junction).
				Where("item_id = ?", itemID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		if len(orphanPictures) > 0 {
			ids := make([]string, 0, len(orphanPictures))
			for _, picture := range orphanPictures {
				ids = append(ids, picture.ID)
			}
			_, err := tx.NewDelete().
				Model((*models.Picture)(nil)).
				Where("id IN (?)", bun.In(ids)).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		result, err := tx.NewDelete().
			Model((*models.Item)(nil)).
			Where("id = ?", itemID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return errcodes.NotFound("Item")
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, picture := range orphanPictures {
		if err := os.Remove(picture.FilePath); err != nil && !os.IsNotExist(err) {
			svc.log.Warn("failed to remove image file", logger.Data{"path": picture.FilePath, "err": err.Error()})
		}
	}
	return nil
}

// ReindexItems rewrites a timeline's item_index sequence to be dense,
// ordered by position and previous index. It takes a bun.IDB so timeline
// writes can run it inside their own transaction. UpdatedAt is left alone;
// display order is bookkeeping, not an edit.
func ReindexItems(ctx context.Context, idb bun.IDB, timelineID int) (int, error) {
	var items []*models.Item

	err := idb.NewSelect().
		Model(&items).
		Column("i.id", "i.item_index").
		Where("i.timeline_id = ?", timelineID).
		OrderExpr("i.year ASC, i.subtick ASC, i.item_index ASC, i.id ASC").
		Scan(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	updated := 0
	for index, item := range items {
		if item.ItemIndex == index {
			continue
		}
		item.ItemIndex = index

		_, err := idb.NewUpdate().
			Model(item).
			Column("item_index").
			WherePK().
			Exec(ctx)
		if err != nil {
			return 0, errors.WithStack(err)
		}
		updated++
	}

	return updated, nil
}

func (svc *Service) ReindexItems(ctx context.Context, timelineID int) (int, error) {
	var updated int
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		updated, err = ReindexItems(ctx, tx, timelineID)
		return err
	})
	return updated, err
}

// ReprojectItems rewrites the displayed subticks of a timeline's items for a
// new granularity. Each item projects from the position recorded at entry,
// so repeated granularity changes never accumulate rounding drift. It takes
// a bun.IDB so timeline writes can run it inside their own transaction.
func ReprojectItems(ctx context.Context, idb bun.IDB, timelineID int, granularity int) (int, error) {
	var items []*models.Item

	err := idb.NewSelect().
		Model(&items).
		Column("i.id", "i.subtick", "i.end_subtick", "i.original_subtick", "i.original_end_subtick", "i.creation_granularity").
		Where("i.timeline_id = ?", timelineID).
		Scan(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	updated := 0
	for _, item := range items {
		subtick := item.DisplaySubtick(granularity)
		endSubtick := item.DisplayEndSubtick(granularity)
		if subtick == item.Subtick && intPtrEqual(endSubtick, item.EndSubtick) {
			continue
		}
		item.Subtick = subtick
		item.EndSubtick = endSubtick

		_, err := idb.NewUpdate().
			Model(item).
			Column("subtick", "end_subtick").
			WherePK().
			Exec(ctx)
		if err != nil {
			return 0, errors.WithStack(err)
		}
		updated++
	}

	return updated, nil
}

func linkPictures(ctx context.Context, idb bun.IDB, itemID string, pictureIDs []string) error {
	for _, pictureID := range pictureIDs {
		exists, err := idb.NewSelect().
			Model((*models.Picture)(nil)).
			Where("p.id = ?", pictureID).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFound("Picture")
		}
		if err := pictures.AddImageReference(ctx, idb, itemID, pictureID); err != nil {
			return err
		}
	}
	return nil
}

func replacePictures(ctx context.Context, idb bun.IDB, itemID string, pictureIDs []string) error {
	q := idb.NewDelete().
		Model((*models.ItemPicture)(nil)).
		Where("item_id = ?", itemID)
	if len(pictureIDs) > 0 {
		q = q.Where("picture_id NOT IN (?)", bun.In(pictureIDs))
	}
	if _, err := q.Exec(ctx); err != nil {
		return errors.WithStack(err)
	}
	return linkPictures(ctx, idb, itemID, pictureIDs)
}

// resolveItemType maps a type name to its seeded row, case-insensitively.
// Blank and unrecognized names both fall back to Event rather than failing;
// old database files carried free-form type strings.
func resolveItemType(ctx context.Context, idb bun.IDB, name string) (*models.ItemType, error) {
	if strings.TrimSpace(name) == "" {
		name = models.ItemTypeEvent
	}

	itemType := &models.ItemType{}
	err := idb.NewSelect().
		Model(itemType).
		Where("LOWER(ity.name) = LOWER(?)", name).
		Scan(ctx)
	if err == nil {
		return itemType, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(err)
	}

	err = idb.NewSelect().
		Model(itemType).
		Where("ity.name = ?", models.ItemTypeEvent).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return itemType, nil
}

func retrieveTimeline(ctx context.Context, idb bun.IDB, timelineID int) (*models.Timeline, error) {
	timeline := &models.Timeline{}

	err := idb.NewSelect().
		Model(timeline).
		Where("tl.id = ?", timelineID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	return timeline, nil
}

func validateRange(year, subtick int, endYear, endSubtick *int) error {
	if endYear == nil {
		return nil
	}
	if *endYear < year {
		return errcodes.ValidationError("Item end cannot precede its start.")
	}
	end := 0
	if endSubtick != nil {
		end = *endSubtick
	}
	if *endYear == year && end < subtick {
		return errcodes.ValidationError("Item end cannot precede its start.")
	}
	return nil
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

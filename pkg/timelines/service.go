package timelines

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/WolfyD/story-timeline-sub000/pkg/binder"
	"github.com/WolfyD/story-timeline-sub000/pkg/config"
	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/WolfyD/story-timeline-sub000/pkg/fileutils"
	"github.com/WolfyD/story-timeline-sub000/pkg/items"
	"github.com/WolfyD/story-timeline-sub000/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

const defaultTitle = "New Timeline"

type RetrieveTimelineOptions struct {
	ID *int
}

type ListTimelinesOptions struct {
	Limit  *int
	Offset *int

	includeTotal bool
}

type Service struct {
	db     *bun.DB
	log    logger.Logger
	binder *binder.Binder

	mediaDir string
}

func NewService(db *bun.DB, cfg *config.Config, b *binder.Binder) *Service {
	return &Service{
		db:       db,
		log:      logger.New(),
		binder:   b,
		mediaDir: cfg.MediaDirectory,
	}
}

// CreateTimeline writes a new timeline. When no title is given one is
// generated, with a numeric suffix when the plain default is already taken
// by the same author. (title, author) is unique.
func (svc *Service) CreateTimeline(ctx context.Context, params CreateTimelineParams) (*models.Timeline, error) {
	if err := svc.binder.Bind(ctx, &params); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(params.Title)
	author := strings.TrimSpace(params.Author)
	if title == "" {
		var err error
		title, err = svc.generateDefaultTitle(ctx, author)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	timeline := &models.Timeline{
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       title,
		Author:      author,
		Description: params.Description,
		StartYear:   params.StartYear,
		Granularity: params.Granularity,
	}

	_, err := svc.db.
		NewInsert().
		Model(timeline).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, errcodes.Conflict("A timeline with this title and author already exists.")
		}
		return nil, errors.WithStack(err)
	}

	return timeline, nil
}

func (svc *Service) generateDefaultTitle(ctx context.Context, author string) (string, error) {
	title := defaultTitle
	for n := 2; ; n++ {
		exists, err := svc.db.
			NewSelect().
			Model((*models.Timeline)(nil)).
			Where("tl.title = ?", title).
			Where("tl.author = ?", author).
			Exists(ctx)
		if err != nil {
			return "", errors.WithStack(err)
		}
		if !exists {
			return title, nil
		}
		title = fmt.Sprintf("%s %d", defaultTitle, n)
	}
}

func (svc *Service) RetrieveTimeline(ctx context.Context, opts RetrieveTimelineOptions) (*models.Timeline, error) {
	timeline := &models.Timeline{}

	q := svc.db.
		NewSelect().
		Model(timeline)

	if opts.ID != nil {
		q = q.Where("tl.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	return timeline, nil
}

func (svc *Service) ListTimelines(ctx context.Context, opts ListTimelinesOptions) ([]*models.Timeline, error) {
	tl, _, err := svc.listTimelinesWithTotal(ctx, opts)
	return tl, errors.WithStack(err)
}

func (svc *Service) ListTimelinesWithTotal(ctx context.Context, opts ListTimelinesOptions) ([]*models.Timeline, int, error) {
	opts.includeTotal = true
	return svc.listTimelinesWithTotal(ctx, opts)
}

// listTimelinesWithTotal lists timelines with their item counts and year
// ranges. Ranged types contribute their end year as the upper bound.
func (svc *Service) listTimelinesWithTotal(ctx context.Context, opts ListTimelinesOptions) ([]*models.Timeline, int, error) {
	timelines := []*models.Timeline{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&timelines).
		ColumnExpr("tl.*").
		ColumnExpr("(SELECT COUNT(*) FROM items i WHERE i.timeline_id = tl.id) AS item_count").
		ColumnExpr("(SELECT MIN(i.year) FROM items i WHERE i.timeline_id = tl.id) AS min_year").
		ColumnExpr("(SELECT MAX(CASE WHEN ity.name IN (?) AND i.end_year IS NOT NULL THEN i.end_year ELSE i.year END) "+
			"FROM items i INNER JOIN item_types ity ON ity.id = i.type_id WHERE i.timeline_id = tl.id) AS max_year", bun.In(models.RangedItemTypeNames)).
		Order("tl.title ASC", "tl.id ASC")

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

	return timelines, total, nil
}

// UpdateTimeline applies the given fields. A granularity change rewrites the
// displayed subticks of every item on the timeline in the same transaction.
func (svc *Service) UpdateTimeline(ctx context.Context, timelineID int, params UpdateTimelineParams) (*models.Timeline, error) {
	if err := svc.binder.Bind(ctx, &params); err != nil {
		return nil, err
	}

	timeline, err := svc.RetrieveTimeline(ctx, RetrieveTimelineOptions{ID: &timelineID})
	if err != nil {
		return nil, err
	}
	if timeline == nil {
		return nil, errcodes.NotFound("Timeline")
	}

	columns := []string{}
	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			return nil, errcodes.ValidationError("Timeline title cannot be empty.")
		}
		timeline.Title = title
		columns = append(columns, "title")
	}
	if params.Author != nil {
		timeline.Author = strings.TrimSpace(*params.Author)
		columns = append(columns, "author")
	}
	if params.Description != nil {
		timeline.Description = *params.Description
		columns = append(columns, "description")
	}
	if params.StartYear != nil {
		timeline.StartYear = *params.StartYear
		columns = append(columns, "start_year")
	}

	granularityChanged := false
	if params.Granularity != nil && *params.Granularity != timeline.Granularity {
		timeline.Granularity = *params.Granularity
		columns = append(columns, "granularity")
		granularityChanged = true
	}

	if len(columns) == 0 {
		return timeline, nil
	}

	timeline.UpdatedAt = time.Now()
	columns = append(columns, "updated_at")

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model(timeline).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return errcodes.Conflict("A timeline with this title and author already exists.")
			}
			return errors.WithStack(err)
		}

		if granularityChanged {
			if _, err := items.ReprojectItems(ctx, tx, timeline.ID, timeline.Granularity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return timeline, nil
}

// DeleteTimeline deletes a timeline and everything scoped to it: items with
// their association rows, notes, characters and relationships, settings, and
// picture rows. The media directory is removed after the commit; a removal
// failure is logged, not fatal, since the rows are already gone.
func (svc *Service) DeleteTimeline(ctx context.Context, timelineID int) error {
	timeline, err := svc.RetrieveTimeline(ctx, RetrieveTimelineOptions{ID: &timelineID})
	if err != nil {
		return err
	}
	if timeline == nil {
		return errcodes.NotFound("Timeline")
	}

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.ItemTag)(nil)).
			Where("item_id IN (SELECT id FROM items WHERE timeline_id = ?)", timelineID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.ItemStoryRef)(nil)).
			Where("item_id IN (SELECT id FROM items WHERE timeline_id = ?)", timelineID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.ItemPicture)(nil)).
			Where("item_id IN (SELECT id FROM items WHERE timeline_id = ?) OR picture_id IN (SELECT id FROM pictures WHERE timeline_id = ?)", timelineID, timelineID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.ItemCharacter)(nil)).
			Where("item_id IN (SELECT id FROM items WHERE timeline_id = ?) OR character_id IN (SELECT id FROM characters WHERE timeline_id = ?)", timelineID, timelineID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		for _, scoped := range []interface{}{
			(*models.CharacterRelationship)(nil),
			(*models.Character)(nil),
			(*models.Note)(nil),
			(*models.Item)(nil),
			(*models.TimelineSettings)(nil),
			(*models.Picture)(nil),
		} {
			_, err := tx.NewDelete().
				Model(scoped).
				Where("timeline_id = ?", timelineID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		_, err = tx.NewDelete().
			Model((*models.Timeline)(nil)).
			Where("id = ?", timelineID).
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return err
	}

	dir := filepath.Join(svc.mediaDir, "pictures", strconv.Itoa(timelineID))
	if err := fileutils.RemoveDirTree(dir); err != nil {
		svc.log.Warn("failed to remove timeline media directory", logger.Data{"path": dir, "err": err.Error()})
	}
	return nil
}

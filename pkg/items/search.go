package items

import (
	"context"
	"strings"

	"github.com/WolfyD/story-timeline-sub000/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// SearchItemsOptions are ANDed together. Tags matches items carrying any of
// the given tag names. The year bounds apply to an item's start position;
// when a bound's subtick is nil the whole year is included.
type SearchItemsOptions struct {
	Limit        *int
	Offset       *int
	TimelineID   *int
	Text         *string
	Tags         []string
	StoryID      *string
	StoryTitle   *string
	Type         *string
	StartYear    *int
	StartSubtick *int
	EndYear      *int
	EndSubtick   *int

	includeTotal bool
}

func (svc *Service) SearchItems(ctx context.Context, opts SearchItemsOptions) ([]*models.Item, error) {
	i, _, err := svc.searchItemsWithTotal(ctx, opts)
	return i, errors.WithStack(err)
}

func (svc *Service) SearchItemsWithTotal(ctx context.Context, opts SearchItemsOptions) ([]*models.Item, int, error) {
	opts.includeTotal = true
	return svc.searchItemsWithTotal(ctx, opts)
}

func (svc *Service) searchItemsWithTotal(ctx context.Context, opts SearchItemsOptions) ([]*models.Item, int, error) {
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
	if opts.Text != nil {
		pattern := "%" + strings.ToLower(*opts.Text) + "%"
		q = q.Where("(LOWER(i.title) LIKE ? OR LOWER(i.description) LIKE ? OR LOWER(i.content) LIKE ?)", pattern, pattern, pattern)
	}
	if len(opts.Tags) > 0 {
		names := make([]string, 0, len(opts.Tags))
		for _, name := range opts.Tags {
			names = append(names, strings.ToLower(strings.TrimSpace(name)))
		}
		q = q.Where("i.id IN (SELECT itg.item_id FROM item_tags itg INNER JOIN tags t ON t.id = itg.tag_id WHERE LOWER(t.name) IN (?))", bun.In(names))
	}
	if opts.StoryID != nil {
		q = q.Where("i.id IN (SELECT isr.item_id FROM item_story_refs isr WHERE isr.story_id = ?)", *opts.StoryID)
	}
	if opts.StoryTitle != nil {
		pattern := "%" + strings.ToLower(*opts.StoryTitle) + "%"
		q = q.Where("i.id IN (SELECT isr.item_id FROM item_story_refs isr INNER JOIN stories s ON s.id = isr.story_id WHERE LOWER(s.title) LIKE ?)", pattern)
	}
	if opts.Type != nil {
		q = q.Where("LOWER(ity.name) = LOWER(?)", *opts.Type)
	}
	if opts.StartYear != nil {
		if opts.StartSubtick != nil {
			q = q.Where("(i.year > ? OR (i.year = ? AND i.subtick >= ?))", *opts.StartYear, *opts.StartYear, *opts.StartSubtick)
		} else {
			q = q.Where("i.year >= ?", *opts.StartYear)
		}
	}
	if opts.EndYear != nil {
		if opts.EndSubtick != nil {
			q = q.Where("(i.year < ? OR (i.year = ? AND i.subtick <= ?))", *opts.EndYear, *opts.EndYear, *opts.EndSubtick)
		} else {
			q = q.Where("i.year <= ?", *opts.EndYear)
		}
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

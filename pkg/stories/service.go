package stories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/WolfyD/story-timeline-sub000/pkg/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// StoryRef is how callers reference a story when writing items: an id, a
// title, or both. Unknown ids are created on the fly because the desktop
// client mints its own story ids.
type StoryRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type RetrieveStoryOptions struct {
	ID    *string
	Title *string
}

type ListStoriesOptions struct {
	Limit  *int
	Offset *int
	Search *string

	includeTotal bool
}

type UpdateStoryOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateStory(ctx context.Context, story *models.Story) error {
	story.Title = strings.TrimSpace(story.Title)
	if story.Title == "" {
		return errcodes.ValidationError("Story title cannot be empty.")
	}
	return insertStory(ctx, svc.db, story)
}

func insertStory(ctx context.Context, idb bun.IDB, story *models.Story) error {
	if story.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		story.ID = id.String()
	}

	now := time.Now()
	if story.CreatedAt.IsZero() {
		story.CreatedAt = now
	}
	story.UpdatedAt = story.CreatedAt

	_, err := idb.
		NewInsert().
		Model(story).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

// FindOrCreateStory resolves a story reference: by id first, then by a
// case-insensitive title match, creating the story when neither finds one.
// It takes a bun.IDB so item writes can run it inside their own transaction.
func FindOrCreateStory(ctx context.Context, idb bun.IDB, ref StoryRef) (*models.Story, error) {
	ref.ID = strings.TrimSpace(ref.ID)
	ref.Title = strings.TrimSpace(ref.Title)
	if ref.ID == "" && ref.Title == "" {
		return nil, errcodes.ValidationError("Story reference needs an id or a title.")
	}

	if ref.ID != "" {
		story, err := retrieveStory(ctx, idb, RetrieveStoryOptions{ID: &ref.ID})
		if err != nil {
			return nil, err
		}
		if story != nil {
			return story, nil
		}
	}
	if ref.Title != "" {
		story, err := retrieveStory(ctx, idb, RetrieveStoryOptions{Title: &ref.Title})
		if err != nil {
			return nil, err
		}
		if story != nil {
			return story, nil
		}
	}

	title := ref.Title
	if title == "" {
		// A bare unknown id still has to produce a usable row.
		title = "Untitled Story"
	}
	story := &models.Story{
		ID:    ref.ID,
		Title: title,
	}
	err := insertStory(ctx, idb, story)
	if err != nil {
		// Handle race condition: if another writer created the same story
		// between our retrieve and create, retry the retrieve
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return retrieveStory(ctx, idb, RetrieveStoryOptions{ID: &story.ID})
		}
		return nil, err
	}
	return story, nil
}

func (svc *Service) RetrieveStory(ctx context.Context, opts RetrieveStoryOptions) (*models.Story, error) {
	return retrieveStory(ctx, svc.db, opts)
}

func retrieveStory(ctx context.Context, idb bun.IDB, opts RetrieveStoryOptions) (*models.Story, error) {
	story := &models.Story{}

	q := idb.
		NewSelect().
		Model(story)

	if opts.ID != nil {
		q = q.Where("s.id = ?", *opts.ID)
	}
	if opts.Title != nil {
		// Case-insensitive match
		q = q.Where("LOWER(s.title) = LOWER(?)", *opts.Title)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	return story, nil
}

func (svc *Service) ListStories(ctx context.Context, opts ListStoriesOptions) ([]*models.Story, error) {
	s, _, err := svc.listStoriesWithTotal(ctx, opts)
	return s, errors.WithStack(err)
}

func (svc *Service) ListStoriesWithTotal(ctx context.Context, opts ListStoriesOptions) ([]*models.Story, int, error) {
	opts.includeTotal = true
	return svc.listStoriesWithTotal(ctx, opts)
}

func (svc *Service) listStoriesWithTotal(ctx context.Context, opts ListStoriesOptions) ([]*models.Story, int, error) {
	var stories []*models.Story
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&stories).
		ColumnExpr("s.*").
		ColumnExpr("(SELECT COUNT(*) FROM item_story_refs isr WHERE isr.story_id = s.id) AS item_count").
		Order("s.title ASC")

	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("LOWER(s.title) LIKE ?", "%"+strings.ToLower(*opts.Search)+"%")
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

	return stories, total, nil
}

func (svc *Service) UpdateStory(ctx context.Context, story *models.Story, opts UpdateStoryOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	now := time.Now()
	story.UpdatedAt = now
	columns := append(opts.Columns, "updated_at")

	result, err := svc.db.
		NewUpdate().
		Model(story).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errcodes.NotFound("Story")
	}
	return nil
}

// DeleteStory deletes a story and its item associations. The items
// themselves are untouched.
func (svc *Service) DeleteStory(ctx context.Context, storyID string) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.ItemStoryRef)(nil)).
			Where("story_id = ?", storyID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		result, err := tx.NewDelete().
			Model((*models.Story)(nil)).
			Where("id = ?", storyID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return errcodes.NotFound("Story")
		}
		return nil
	})
}

// SetItemStories replaces an item's story references with the given refs.
// Unknown stories are created, junction rows that fell out of the set are
// removed, and rows that are already correct are left untouched.
func SetItemStories(ctx context.Context, idb bun.IDB, itemID string, refs []StoryRef) error {
	storyIDs := make([]string, 0, len(refs))
	for _, ref := range refs {
		if strings.TrimSpace(ref.ID) == "" && strings.TrimSpace(ref.Title) == "" {
			continue
		}
		story, err := FindOrCreateStory(ctx, idb, ref)
		if err != nil {
			return err
		}
		storyIDs = append(storyIDs, story.ID)
	}

	q := idb.
		NewDelete().
		Model((*models.ItemStoryRef)(nil)).
		Where("item_id = ?", itemID)
	if len(storyIDs) > 0 {
		q = q.Where("story_id NOT IN (?)", bun.In(storyIDs))
	}
	if _, err := q.Exec(ctx); err != nil {
		return errors.WithStack(err)
	}

	for _, storyID := range storyIDs {
		ref := &models.ItemStoryRef{
			ItemID:  itemID,
			StoryID: storyID,
		}
		_, err := idb.
			NewInsert().
			Model(ref).
			On("CONFLICT (item_id, story_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

// ListItemStories returns the stories an item is associated with, ordered
// by title.
func (svc *Service) ListItemStories(ctx context.Context, itemID string) ([]*models.Story, error) {
	stories := []*models.Story{}

	err := svc.db.
		NewSelect().
		Model(&stories).
		Join("INNER JOIN item_story_refs isr ON isr.story_id = s.id").
		Where("isr.item_id = ?", itemID).
		Order("s.title ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return stories, nil
}

// ListStoryItems returns the items associated with a story in timeline
// order.
func (svc *Service) ListStoryItems(ctx context.Context, storyID string) ([]*models.Item, error) {
	items := []*models.Item{}

	err := svc.db.
		NewSelect().
		Model(&items).
		Join("INNER JOIN item_story_refs isr ON isr.item_id = i.id").
		Where("isr.story_id = ?", storyID).
		Order("i.year ASC", "i.subtick ASC", "i.item_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return items, nil
}

package tags

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/WolfyD/story-timeline-sub000/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type ListTagsOptions struct {
	Limit  *int
	Offset *int
	Search *string

	includeTotal bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// FindOrCreateTag finds an existing tag or creates a new one (case-insensitive
// match). It takes a bun.IDB so item writes can run it inside their own
// transaction.
func FindOrCreateTag(ctx context.Context, idb bun.IDB, name string) (*models.Tag, error) {
	// Normalize the name by trimming whitespace
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errcodes.ValidationError("Tag name cannot be empty.")
	}

	tag, err := retrieveTagByName(ctx, idb, name)
	if err != nil {
		return nil, err
	}
	if tag != nil {
		return tag, nil
	}

	// Create new tag
	now := time.Now()
	tag = &models.Tag{
		CreatedAt: now,
		UpdatedAt: now,
		Name:      name,
	}
	_, err = idb.
		NewInsert().
		Model(tag).
		Returning("*").
		Exec(ctx)
	if err != nil {
		// Handle race condition: if another writer created the same tag
		// between our retrieve and create, retry the retrieve
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return retrieveTagByName(ctx, idb, name)
		}
		return nil, errors.WithStack(err)
	}
	return tag, nil
}

func retrieveTagByName(ctx context.Context, idb bun.IDB, name string) (*models.Tag, error) {
	tag := &models.Tag{}

	err := idb.
		NewSelect().
		Model(tag).
		// Case-insensitive match
		Where("LOWER(t.name) = LOWER(?)", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	return tag, nil
}

// SetItemTags replaces an item's tag set with the given names. Missing tags
// are created, junction rows that fell out of the set are removed, and rows
// that are already correct are left untouched.
func SetItemTags(ctx context.Context, idb bun.IDB, itemID string, names []string) error {
	tagIDs := make([]int, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		tag, err := FindOrCreateTag(ctx, idb, name)
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, tag.ID)
	}

	q := idb.
		NewDelete().
		Model((*models.ItemTag)(nil)).
		Where("item_id = ?", itemID)
	if len(tagIDs) > 0 {
		q = q.Where("tag_id NOT IN (?)", bun.In(tagIDs))
	}
	if _, err := q.Exec(ctx); err != nil {
		return errors.WithStack(err)
	}

	for _, tagID := range tagIDs {
		itemTag := &models.ItemTag{
			ItemID: itemID,
			TagID:  tagID,
		}
		_, err := idb.
			NewInsert().
			Model(itemTag).
			On("CONFLICT (item_id, tag_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

// AddItemTag attaches a tag to an item by name, creating the tag if it
// doesn't exist yet. Attaching a tag the item already has is a noop.
func (svc *Service) AddItemTag(ctx context.Context, itemID string, name string) (*models.Tag, error) {
	exists, err := itemExists(ctx, svc.db, itemID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errcodes.NotFound("Item")
	}

	var tag *models.Tag
	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		tag, err = FindOrCreateTag(ctx, tx, name)
		if err != nil {
			return err
		}

		itemTag := &models.ItemTag{
			ItemID: itemID,
			TagID:  tag.ID,
		}
		_, err = tx.
			NewInsert().
			Model(itemTag).
			On("CONFLICT (item_id, tag_id) DO NOTHING").
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	return tag, nil
}

// RemoveItemTag detaches a tag from an item by name. The tag row itself is
// kept; CleanupOrphanedTags reclaims tags nothing references anymore.
func (svc *Service) RemoveItemTag(ctx context.Context, itemID string, name string) error {
	exists, err := itemExists(ctx, svc.db, itemID)
	if err != nil {
		return err
	}
	if !exists {
		return errcodes.NotFound("Item")
	}

	_, err = svc.db.
		NewDelete().
		Model((*models.ItemTag)(nil)).
		Where("item_id = ?", itemID).
		Where("tag_id IN (SELECT id FROM tags WHERE LOWER(name) = LOWER(?))", strings.TrimSpace(name)).
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) ListTags(ctx context.Context, opts ListTagsOptions) ([]*models.Tag, error) {
	t, _, err := svc.listTagsWithTotal(ctx, opts)
	return t, errors.WithStack(err)
}

func (svc *Service) ListTagsWithTotal(ctx context.Context, opts ListTagsOptions) ([]*models.Tag, int, error) {
	opts.includeTotal = true
	return svc.listTagsWithTotal(ctx, opts)
}

func (svc *Service) listTagsWithTotal(ctx context.Context, opts ListTagsOptions) ([]*models.Tag, int, error) {
	var tags []*models.Tag
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&tags).
		ColumnExpr("t.*").
		ColumnExpr("(SELECT COUNT(*) FROM item_tags itg WHERE itg.tag_id = t.id) AS item_count").
		Order("t.name ASC")

	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("LOWER(t.name) LIKE ?", "%"+strings.ToLower(*opts.Search)+"%")
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

	return tags, total, nil
}

// ListItemTags returns an item's tags ordered by name.
func (svc *Service) ListItemTags(ctx context.Context, itemID string) ([]*models.Tag, error) {
	tags := []*models.Tag{}

	err := svc.db.
		NewSelect().
		Model(&tags).
		Join("INNER JOIN item_tags itg ON itg.tag_id = t.id").
		Where("itg.item_id = ?", itemID).
		Order("t.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return tags, nil
}

// CleanupOrphanedTags deletes tags with no item associations.
func (svc *Service) CleanupOrphanedTags(ctx context.Context) (int, error) {
	result, err := svc.db.
		NewDelete().
		Model((*models.Tag)(nil)).
		Where("id NOT IN (SELECT DISTINCT tag_id FROM item_tags)").
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func itemExists(ctx context.Context, idb bun.IDB, itemID string) (bool, error) {
	exists, err := idb.
		NewSelect().
		Model((*models.Item)(nil)).
		Where("i.id = ?", itemID).
		Exists(ctx)
	return exists, errors.WithStack(err)
}

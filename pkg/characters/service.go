package characters

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/WolfyD/story-timeline-sub000/pkg/binder"
	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/WolfyD/story-timeline-sub000/pkg/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveCharacterOptions struct {
	ID *string
}

type ListCharactersOptions struct {
	Limit      *int
	Offset     *int
	TimelineID *int
	Search     *string

	includeTotal bool
}

type ListRelationshipsOptions struct {
	TimelineID  *int
	CharacterID *string
}

type Service struct {
	db     *bun.DB
	binder *binder.Binder
}

func NewService(db *bun.DB, b *binder.Binder) *Service {
	return &Service{db, b}
}

func (svc *Service) CreateCharacter(ctx context.Context, params CreateCharacterParams) (*models.Character, error) {
	if err := svc.binder.Bind(ctx, &params); err != nil {
		return nil, err
	}
	if err := validateLifespan(params.BirthYear, params.BirthSubtick, params.DeathYear, params.DeathSubtick); err != nil {
		return nil, err
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

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	now := time.Now()
	character := &models.Character{
		ID:           id.String(),
		CreatedAt:    now,
		UpdatedAt:    now,
		TimelineID:   params.TimelineID,
		Name:         strings.TrimSpace(params.Name),
		Description:  params.Description,
		BirthYear:    params.BirthYear,
		BirthSubtick: params.BirthSubtick,
		DeathYear:    params.DeathYear,
		DeathSubtick: params.DeathSubtick,
	}
	if params.Color != nil && *params.Color != "" {
		character.Color = params.Color
	}

	_, err = svc.db.
		NewInsert().
		Model(character).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return character, nil
}

func (svc *Service) RetrieveCharacter(ctx context.Context, opts RetrieveCharacterOptions) (*models.Character, error) {
	character := &models.Character{}

	q := svc.db.
		NewSelect().
		Model(character)

	if opts.ID != nil {
		q = q.Where("c.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	return character, nil
}

func (svc *Service) ListCharacters(ctx context.Context, opts ListCharactersOptions) ([]*models.Character, error) {
	c, _, err := svc.listCharactersWithTotal(ctx, opts)
	return c, errors.WithStack(err)
}

func (svc *Service) ListCharactersWithTotal(ctx context.Context, opts ListCharactersOptions) ([]*models.Character, int, error) {
	opts.includeTotal = true
	return svc.listCharactersWithTotal(ctx, opts)
}

func (svc *Service) listCharactersWithTotal(ctx context.Context, opts ListCharactersOptions) ([]*models.Character, int, error) {
	var characters []*models.Character
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&characters).
		Order("c.name ASC")

	if opts.TimelineID != nil {
		q = q.Where("c.timeline_id = ?", *opts.TimelineID)
	}
	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("LOWER(c.name) LIKE ?", "%"+strings.ToLower(*opts.Search)+"%")
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

	return characters, total, nil
}

func (svc *Service) UpdateCharacter(ctx context.Context, characterID string, params UpdateCharacterParams) (*models.Character, error) {
	if err := svc.binder.Bind(ctx, &params); err != nil {
		return nil, err
	}

	character, err := svc.RetrieveCharacter(ctx, RetrieveCharacterOptions{ID: &characterID})
	if err != nil {
		return nil, err
	}
	if character == nil {
		return nil, errcodes.NotFound("Character")
	}

	columns := []string{}
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, errcodes.ValidationError("Character name cannot be empty.")
		}
		character.Name = name
		columns = append(columns, "name")
	}
	if params.Description != nil {
		character.Description = *params.Description
		columns = append(columns, "description")
	}
	if params.Color != nil {
		// An empty string clears the color.
		if *params.Color == "" {
			character.Color = nil
		} else {
			character.Color = params.Color
		}
		columns = append(columns, "color")
	}
	if params.BirthYear != nil {
		character.BirthYear = params.BirthYear
		columns = append(columns, "birth_year")
	}
	if params.BirthSubtick != nil {
		character.BirthSubtick = params.BirthSubtick
		columns = append(columns, "birth_subtick")
	}
	if params.DeathYear != nil {
		character.DeathYear = params.DeathYear
		columns = append(columns, "death_year")
	}
	if params.DeathSubtick != nil {
		character.DeathSubtick = params.DeathSubtick
		columns = append(columns, "death_subtick")
	}
	if err := validateLifespan(character.BirthYear, character.BirthSubtick, character.DeathYear, character.DeathSubtick); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return character, nil
	}

	character.UpdatedAt = time.Now()
	columns = append(columns, "updated_at")

	_, err = svc.db.
		NewUpdate().
		Model(character).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return character, nil
}

// DeleteCharacter deletes a character along with its relationships and item
// references. The items themselves are untouched.
func (svc *Service) DeleteCharacter(ctx context.Context, characterID string) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.ItemCharacter)(nil)).
			Where("character_id = ?", characterID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.CharacterRelationship)(nil)).
			Where("character_a_id = ? OR character_b_id = ?", characterID, characterID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		result, err := tx.NewDelete().
			Model((*models.Character)(nil)).
			Where("id = ?", characterID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return errcodes.NotFound("Character")
		}
		return nil
	})
}

// CreateRelationship links two characters of the same timeline. The pair
// plus relation is unique; the reverse direction is a distinct relationship.
func (svc *Service) CreateRelationship(ctx context.Context, params CreateRelationshipParams) (*models.CharacterRelationship, error) {
	if err := svc.binder.Bind(ctx, &params); err != nil {
		return nil, err
	}
	if params.CharacterAID == params.CharacterBID {
		return nil, errcodes.ValidationError("A character cannot have a relationship with itself.")
	}

	characterA, err := svc.RetrieveCharacter(ctx, RetrieveCharacterOptions{ID: &params.CharacterAID})
	if err != nil {
		return nil, err
	}
	characterB, err := svc.RetrieveCharacter(ctx, RetrieveCharacterOptions{ID: &params.CharacterBID})
	if err != nil {
		return nil, err
	}
	if characterA == nil || characterB == nil {
		return nil, errcodes.NotFound("Character")
	}
	if characterA.TimelineID != characterB.TimelineID {
		return nil, errcodes.ValidationError("Characters must belong to the same timeline.")
	}

	now := time.Now()
	relationship := &models.CharacterRelationship{
		CreatedAt:    now,
		UpdatedAt:    now,
		TimelineID:   characterA.TimelineID,
		CharacterAID: params.CharacterAID,
		CharacterBID: params.CharacterBID,
		Relation:     strings.TrimSpace(params.Relation),
		Description:  params.Description,
	}
	_, err = svc.db.
		NewInsert().
		Model(relationship).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, errcodes.Conflict("Relationship already exists.")
		}
		return nil, errors.WithStack(err)
	}

	return relationship, nil
}

// ListRelationships returns relationships with both characters loaded. With
// CharacterID set it matches either side of the pair.
func (svc *Service) ListRelationships(ctx context.Context, opts ListRelationshipsOptions) ([]*models.CharacterRelationship, error) {
	relationships := []*models.CharacterRelationship{}

	q := svc.db.
		NewSelect().
		Model(&relationships).
		Relation("CharacterA").
		Relation("CharacterB").
		Order("cr.id ASC")

	if opts.TimelineID != nil {
		q = q.Where("cr.timeline_id = ?", *opts.TimelineID)
	}
	if opts.CharacterID != nil {
		q = q.Where("(cr.character_a_id = ? OR cr.character_b_id = ?)", *opts.CharacterID, *opts.CharacterID)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return relationships, nil
}

func (svc *Service) DeleteRelationship(ctx context.Context, relationshipID int) error {
	result, err := svc.db.
		NewDelete().
		Model((*models.CharacterRelationship)(nil)).
		Where("id = ?", relationshipID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errcodes.NotFound("Relationship")
	}
	return nil
}

// AddItemCharacter references a character from an item. Referencing a
// character the item already has is a noop.
func (svc *Service) AddItemCharacter(ctx context.Context, itemID string, characterID string) error {
	exists, err := itemExists(ctx, svc.db, itemID)
	if err != nil {
		return err
	}
	if !exists {
		return errcodes.NotFound("Item")
	}

	character, err := svc.RetrieveCharacter(ctx, RetrieveCharacterOptions{ID: &characterID})
	if err != nil {
		return err
	}
	if character == nil {
		return errcodes.NotFound("Character")
	}

	itemCharacter := &models.ItemCharacter{
		ItemID:      itemID,
		CharacterID: characterID,
	}
	_, err = svc.db.
		NewInsert().
		Model(itemCharacter).
		On("CONFLICT (item_id, character_id) DO NOTHING").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RemoveItemCharacter(ctx context.Context, itemID string, characterID string) error {
	exists, err := itemExists(ctx, svc.db, itemID)
	if err != nil {
		return err
	}
	if !exists {
		return errcodes.NotFound("Item")
	}

	_, err = svc.db.
		NewDelete().
		Model((*models.ItemCharacter)(nil)).
		Where("item_id = ?", itemID).
		Where("character_id = ?", characterID).
		Exec(ctx)
	return errors.WithStack(err)
}

// ListItemCharacters returns the characters referenced by an item, ordered
// by name.
func (svc *Service) ListItemCharacters(ctx context.Context, itemID string) ([]*models.Character, error) {
	characters := []*models.Character{}

	err := svc.db.
		NewSelect().
		Model(&characters).
		Join("INNER JOIN item_characters ich ON ich.character_id = c.id").
		Where("ich.item_id = ?", itemID).
		Order("c.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return characters, nil
}

// ListCharacterItems returns the items referencing a character in timeline
// order.
func (svc *Service) ListCharacterItems(ctx context.Context, characterID string) ([]*models.Item, error) {
	items := []*models.Item{}

	err := svc.db.
		NewSelect().
		Model(&items).
		Join("INNER JOIN item_characters ich ON ich.item_id = i.id").
		Where("ich.character_id = ?", characterID).
		Order("i.year ASC", "i.subtick ASC", "i.item_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return items, nil
}

func validateLifespan(birthYear, birthSubtick, deathYear, deathSubtick *int) error {
	if birthYear == nil || deathYear == nil {
		return nil
	}
	if *deathYear < *birthYear {
		return errcodes.ValidationError("Character death cannot precede birth.")
	}
	if *deathYear == *birthYear && birthSubtick != nil && deathSubtick != nil && *deathSubtick < *birthSubtick {
		return errcodes.ValidationError("Character death cannot precede birth.")
	}
	return nil
}

func itemExists(ctx context.Context, idb bun.IDB, itemID string) (bool, error) {
	exists, err := idb.
		NewSelect().
		Model((*models.Item)(nil)).
		Where("i.id = ?", itemID).
		Exists(ctx)
	return exists, errors.WithStack(err)
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Item is a single dated entry on a timeline. Year and subtick place the
// item on the axis; ranged types (Period, Age) also carry an end position.
// OriginalSubtick, OriginalEndSubtick, and CreationGranularity preserve the
// position as it was entered so it can be re-projected when the timeline's
// granularity changes; see ProjectSubtick.
type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID                  string    `bun:",pk" json:"id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	TimelineID          int       `bun:",nullzero" json:"timeline_id"`
	TypeID              int       `bun:",nullzero" json:"type_id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Content             string    `json:"content"`
	Year                int       `json:"year"`
	Subtick             int       `json:"subtick"`
	EndYear             *int      `json:"end_year,omitempty"`
	EndSubtick          *int      `json:"end_subtick,omitempty"`
	OriginalSubtick     int       `json:"original_subtick"`
	OriginalEndSubtick  *int      `json:"original_end_subtick,omitempty"`
	CreationGranularity int       `bun:",nullzero,default:4" json:"creation_granularity"`
	BookTitle           *string   `json:"book_title,omitempty"`
	Chapter             *string   `json:"chapter,omitempty"`
	Page                *int      `json:"page,omitempty"`
	Color               *string   `json:"color,omitempty"`
	ItemIndex           int       `bun:"item_index" json:"item_index"`
	ShowInNotes         bool      `json:"show_in_notes"`

	// TypeName is the resolved item_types.name, populated by item queries.
	TypeName string `bun:",scanonly" json:"type_name"`

	Type           *ItemType        `bun:"rel:belongs-to,join:type_id=id" json:"type,omitempty"`
	ItemTags       []*ItemTag       `bun:"rel:has-many,join:id=item_id" json:"item_tags,omitempty"`
	ItemPictures   []*ItemPicture   `bun:"rel:has-many,join:id=item_id" json:"item_pictures,omitempty"`
	ItemStoryRefs  []*ItemStoryRef  `bun:"rel:has-many,join:id=item_id" json:"item_story_refs,omitempty"`
	ItemCharacters []*ItemCharacter `bun:"rel:has-many,join:id=item_id" json:"item_characters,omitempty"`
}

// IsRanged reports whether the item's type spans a year range.
func (i *Item) IsRanged() bool {
	for _, name := range RangedItemTypeNames {
		if i.TypeName == name {
			return true
		}
	}
	return false
}

// DisplaySubtick projects the item's start position onto the given
// granularity.
func (i *Item) DisplaySubtick(granularity int) int {
	return ProjectSubtick(i.OriginalSubtick, i.CreationGranularity, granularity)
}

// DisplayEndSubtick projects the item's end position onto the given
// granularity, or nil when the item has none.
func (i *Item) DisplayEndSubtick(granularity int) *int {
	if i.OriginalEndSubtick == nil {
		return nil
	}
	v := ProjectSubtick(*i.OriginalEndSubtick, i.CreationGranularity, granularity)
	return &v
}

// TagNames returns the names of the tags attached to the item, in load
// order. Empty until the item was queried with its tag relations.
func (i *Item) TagNames() []string {
	names := make([]string, 0, len(i.ItemTags))
	for _, it := range i.ItemTags {
		if it.Tag != nil {
			names = append(names, it.Tag.Name)
		}
	}
	return names
}

// Pictures returns the pictures referenced by the item.
func (i *Item) Pictures() []*Picture {
	pictures := make([]*Picture, 0, len(i.ItemPictures))
	for _, ip := range i.ItemPictures {
		if ip.Picture != nil {
			pictures = append(pictures, ip.Picture)
		}
	}
	return pictures
}

// Stories returns the stories the item is associated with.
func (i *Item) Stories() []*Story {
	stories := make([]*Story, 0, len(i.ItemStoryRefs))
	for _, ref := range i.ItemStoryRefs {
		if ref.Story != nil {
			stories = append(stories, ref.Story)
		}
	}
	return stories
}

// Characters returns the characters referenced by the item.
func (i *Item) Characters() []*Character {
	characters := make([]*Character, 0, len(i.ItemCharacters))
	for _, ic := range i.ItemCharacters {
		if ic.Character != nil {
			characters = append(characters, ic.Character)
		}
	}
	return characters
}

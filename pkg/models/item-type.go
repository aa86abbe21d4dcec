package models

import (
	"github.com/uptrace/bun"
)

// Item type names. The lookup set is seeded by the initial migration; items
// reference a type by id and the service layer resolves names to ids, so
// callers only ever see these strings.
const (
	ItemTypeEvent         = "Event"
	ItemTypePeriod        = "Period"
	ItemTypeAge           = "Age"
	ItemTypePicture       = "Picture"
	ItemTypeNote          = "Note"
	ItemTypeBookmark      = "Bookmark"
	ItemTypeCharacter     = "Character"
	ItemTypeTimelineStart = "Timeline_start"
	ItemTypeTimelineEnd   = "Timeline_end"
)

// ItemTypeNames lists every seeded item type, in seed order.
var ItemTypeNames = []string{
	ItemTypeEvent,
	ItemTypePeriod,
	ItemTypeAge,
	ItemTypePicture,
	ItemTypeNote,
	ItemTypeBookmark,
	ItemTypeCharacter,
	ItemTypeTimelineStart,
	ItemTypeTimelineEnd,
}

// RangedItemTypeNames are the types whose end_year counts toward a
// timeline's year range.
var RangedItemTypeNames = []string{ItemTypePeriod, ItemTypeAge}

type ItemType struct {
	bun.BaseModel `bun:"table:item_types,alias:ity"`

	ID   int    `bun:",pk,nullzero" json:"id"`
	Name string `bun:",nullzero" json:"name"`
}

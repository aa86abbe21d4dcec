package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Story is a narrative thread that items can be associated with. Ids are
// opaque strings supplied by the caller or generated on first use.
type Story struct {
	bun.BaseModel `bun:"table:stories,alias:s"`

	ID          string    `bun:",pk" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Title       string    `bun:",nullzero" json:"title"`
	Description string    `json:"description"`

	// ItemCount is populated by story listings.
	ItemCount int `bun:",scanonly" json:"item_count"`
}

type ItemStoryRef struct {
	bun.BaseModel `bun:"table:item_story_refs,alias:isr"`

	ID      int    `bun:",pk,nullzero" json:"id"`
	ItemID  string `bun:",nullzero" json:"item_id"`
	StoryID string `bun:",nullzero" json:"story_id"`
	Story   *Story `bun:"rel:belongs-to,join:story_id=id" json:"story,omitempty"`
}

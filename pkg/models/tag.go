package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Tag is a shared label. Tags are created implicitly the first time a name
// is used and matched case-insensitively after that.
type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:t"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `bun:",nullzero" json:"name"`

	// ItemCount is populated by tag listings.
	ItemCount int `bun:",scanonly" json:"item_count"`
}

type ItemTag struct {
	bun.BaseModel `bun:"table:item_tags,alias:itg"`

	ID     int    `bun:",pk,nullzero" json:"id"`
	ItemID string `bun:",nullzero" json:"item_id"`
	TagID  int    `bun:",nullzero" json:"tag_id"`
	Tag    *Tag   `bun:"rel:belongs-to,join:tag_id=id" json:"tag,omitempty"`
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Picture is the metadata row for an image stored in the timeline's media
// directory; the bytes live on disk at FilePath. Items reference pictures
// through the item_pictures junction so one image can back several items. A
// picture with zero references is orphaned and eligible for cleanup.
type Picture struct {
	bun.BaseModel `bun:"table:pictures,alias:p"`

	ID          string    `bun:",pk" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	TimelineID  int       `bun:",nullzero" json:"timeline_id"`
	FilePath    string    `bun:",nullzero" json:"file_path"`
	FileName    string    `bun:",nullzero" json:"file_name"`
	FileSize    int64     `json:"file_size"`
	FileType    string    `json:"file_type"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Title       string    `json:"title"`
	Description string    `json:"description"`

	// UsageCount is the number of items referencing the picture, populated
	// by picture queries.
	UsageCount int `bun:",scanonly" json:"usage_count"`
}

type ItemPicture struct {
	bun.BaseModel `bun:"table:item_pictures,alias:ipc"`

	ID        int      `bun:",pk,nullzero" json:"id"`
	ItemID    string   `bun:",nullzero" json:"item_id"`
	PictureID string   `bun:",nullzero" json:"picture_id"`
	Picture   *Picture `bun:"rel:belongs-to,join:picture_id=id" json:"picture,omitempty"`
}

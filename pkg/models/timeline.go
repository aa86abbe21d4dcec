package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Timeline struct {
	bun.BaseModel `bun:"table:timelines,alias:tl"`

	ID          int       `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Title       string    `bun:",nullzero" json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	StartYear   int       `json:"start_year"`
	Granularity int       `bun:",nullzero,default:4" json:"granularity"`

	// Aggregates computed by ListTimelines.
	ItemCount int  `bun:",scanonly" json:"item_count"`
	MinYear   *int `bun:",scanonly" json:"min_year,omitempty"`
	MaxYear   *int `bun:",scanonly" json:"max_year,omitempty"`
}

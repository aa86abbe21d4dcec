package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Note is a free-standing annotation pinned to a position on a timeline,
// not tied to any item.
type Note struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	ID         int       `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	TimelineID int       `bun:",nullzero" json:"timeline_id"`
	Year       int       `json:"year"`
	Subtick    int       `json:"subtick"`
	Content    string    `json:"content"`
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Character is a person (or similar actor) scoped to one timeline. Birth
// and death positions are optional.
type Character struct {
	bun.BaseModel `bun:"table:characters,alias:c"`

	ID           string    `bun:",pk" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	TimelineID   int       `bun:",nullzero" json:"timeline_id"`
	Name         string    `bun:",nullzero" json:"name"`
	Description  string    `json:"description"`
	Color        *string   `json:"color,omitempty"`
	BirthYear    *int      `json:"birth_year,omitempty"`
	BirthSubtick *int      `json:"birth_subtick,omitempty"`
	DeathYear    *int      `json:"death_year,omitempty"`
	DeathSubtick *int      `json:"death_subtick,omitempty"`
}

// CharacterRelationship links two characters of the same timeline with a
// named relation ("parent", "rival", ...). The pair plus relation is unique.
type CharacterRelationship struct {
	bun.BaseModel `bun:"table:character_relationships,alias:cr"`

	ID           int        `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	TimelineID   int        `bun:",nullzero" json:"timeline_id"`
	CharacterAID string     `bun:",nullzero" json:"character_a_id"`
	CharacterBID string     `bun:",nullzero" json:"character_b_id"`
	Relation     string     `bun:",nullzero" json:"relation"`
	Description  string     `json:"description"`
	CharacterA   *Character `bun:"rel:belongs-to,join:character_a_id=id" json:"character_a,omitempty"`
	CharacterB   *Character `bun:"rel:belongs-to,join:character_b_id=id" json:"character_b,omitempty"`
}

type ItemCharacter struct {
	bun.BaseModel `bun:"table:item_characters,alias:ich"`

	ID          int        `bun:",pk,nullzero" json:"id"`
	ItemID      string     `bun:",nullzero" json:"item_id"`
	CharacterID string     `bun:",nullzero" json:"character_id"`
	Character   *Character `bun:"rel:belongs-to,join:character_id=id" json:"character,omitempty"`
}

package characters

type CreateCharacterParams struct {
	TimelineID   int     `json:"timeline_id" validate:"required,min=1"`
	Name         string  `json:"name" validate:"required,max=200"`
	Description  string  `json:"description" validate:"max=5000"`
	Color        *string `json:"color,omitempty" validate:"omitempty,color"`
	BirthYear    *int    `json:"birth_year,omitempty"`
	BirthSubtick *int    `json:"birth_subtick,omitempty" validate:"omitempty,min=0"`
	DeathYear    *int    `json:"death_year,omitempty"`
	DeathSubtick *int    `json:"death_subtick,omitempty" validate:"omitempty,min=0"`
}

type UpdateCharacterParams struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	Color        *string `json:"color,omitempty" validate:"omitempty,color"`
	BirthYear    *int    `json:"birth_year,omitempty"`
	BirthSubtick *int    `json:"birth_subtick,omitempty" validate:"omitempty,min=0"`
	DeathYear    *int    `json:"death_year,omitempty"`
	DeathSubtick *int    `json:"death_subtick,omitempty" validate:"omitempty,min=0"`
}

type CreateRelationshipParams struct {
	CharacterAID string `json:"character_a_id" validate:"required"`
	CharacterBID string `json:"character_b_id" validate:"required"`
	Relation     string `json:"relation" validate:"required,max=100"`
	Description  string `json:"description" validate:"max=2000"`
}

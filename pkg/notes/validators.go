package notes

type CreateNoteParams struct {
	TimelineID int    `json:"timeline_id" validate:"required,min=1"`
	Year       int    `json:"year"`
	Subtick    int    `json:"subtick" validate:"min=0"`
	Content    string `json:"content" validate:"required,max=10000"`
}

type UpdateNoteParams struct {
	Year    *int    `json:"year,omitempty"`
	Subtick *int    `json:"subtick,omitempty" validate:"omitempty,min=0"`
	Content *string `json:"content,omitempty" validate:"omitempty,max=10000"`
}

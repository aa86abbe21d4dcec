package items

import (
	"github.com/WolfyD/story-timeline-sub000/pkg/stories"
)

type CreateItemParams struct {
	TimelineID  int     `json:"timeline_id" validate:"required,min=1"`
	Type        string  `json:"type" validate:"omitempty,max=50"`
	Title       string  `json:"title" validate:"required,max=500"`
	Description string  `json:"description" validate:"max=5000"`
	Content     string  `json:"content"`
	Year        int     `json:"year"`
	Subtick     int     `json:"subtick" validate:"min=0"`
	EndYear     *int    `json:"end_year,omitempty"`
	EndSubtick  *int    `json:"end_subtick,omitempty" validate:"omitempty,min=0"`
	BookTitle   *string `json:"book_title,omitempty" validate:"omitempty,max=500"`
	Chapter     *string `json:"chapter,omitempty" validate:"omitempty,max=200"`
	Page        *int    `json:"page,omitempty" validate:"omitempty,min=0"`
	Color       *string `json:"color,omitempty" validate:"omitempty,color"`
	ShowInNotes bool    `json:"show_in_notes"`

	Tags       []string           `json:"tags,omitempty"`
	Stories    []stories.StoryRef `json:"stories,omitempty"`
	PictureIDs []string           `json:"picture_ids,omitempty"`
}

type UpdateItemParams struct {
	Type        *string `json:"type,omitempty" validate:"omitempty,max=50"`
	Title       *string `json:"title,omitempty" validate:"omitempty,max=500"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	Content     *string `json:"content,omitempty"`
	Year        *int    `json:"year,omitempty"`
	Subtick     *int    `json:"subtick,omitempty" validate:"omitempty,min=0"`
	EndYear     *int    `json:"end_year,omitempty"`
	EndSubtick  *int    `json:"end_subtick,omitempty" validate:"omitempty,min=0"`
	// ClearEnd empties the end position; it wins over EndYear and EndSubtick.
	ClearEnd    bool    `json:"clear_end,omitempty"`
	BookTitle   *string `json:"book_title,omitempty" validate:"omitempty,max=500"`
	Chapter     *string `json:"chapter,omitempty" validate:"omitempty,max=200"`
	Page        *int    `json:"page,omitempty" validate:"omitempty,min=0"`
	Color       *string `json:"color,omitempty" validate:"omitempty,color"`
	ShowInNotes *bool   `json:"show_in_notes,omitempty"`

	// Nil slices leave the associations alone; non-nil slices replace them.
	Tags       []string           `json:"tags,omitempty"`
	Stories    []stories.StoryRef `json:"stories,omitempty"`
	PictureIDs []string           `json:"picture_ids,omitempty"`
}

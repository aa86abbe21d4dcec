package timelines

type CreateTimelineParams struct {
	Title       string `json:"title" validate:"omitempty,max=300"`
	Author      string `json:"author" validate:"max=200"`
	Description string `json:"description" validate:"max=5000"`
	StartYear   int    `json:"start_year"`
	Granularity int    `json:"granularity" validate:"omitempty,min=1,max=1000"`
}

type UpdateTimelineParams struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,max=300"`
	Author      *string `json:"author,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	StartYear   *int    `json:"start_year,omitempty"`
	Granularity *int    `json:"granularity,omitempty" validate:"omitempty,min=1,max=1000"`
}

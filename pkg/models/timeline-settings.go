package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TimelineSettings holds the display and layout preferences of one timeline.
// Exactly one row exists per timeline; it is synthesized from defaults on
// first access.
type TimelineSettings struct {
	bun.BaseModel `bun:"table:timeline_settings,alias:ts"`

	ID               int       `bun:",pk,nullzero" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	TimelineID       int       `bun:",nullzero" json:"timeline_id"`
	Font             string    `bun:",nullzero" json:"font"`
	FontSize         int       `bun:",nullzero" json:"font_size"`
	PixelsPerSubtick int       `bun:",nullzero" json:"pixels_per_subtick"`
	CustomCSS        string    `bun:"custom_css" json:"custom_css"`
	ShowGuides       bool      `json:"show_guides"`
	WindowX          int       `json:"window_x"`
	WindowY          int       `json:"window_y"`
	WindowWidth      int       `json:"window_width"`
	WindowHeight     int       `json:"window_height"`
	UseCustomScaling bool      `json:"use_custom_scaling"`
	CustomScale      float64   `json:"custom_scale"`
}

// DefaultTimelineSettings returns the settings that are persisted for a
// timeline the first time its settings are read.
func DefaultTimelineSettings() *TimelineSettings {
	return &TimelineSettings{
		Font:             "Arial",
		FontSize:         16,
		PixelsPerSubtick: 20,
		ShowGuides:       true,
		WindowX:          100,
		WindowY:          100,
		WindowWidth:      1200,
		WindowHeight:     800,
		UseCustomScaling: false,
		CustomScale:      1.0,
	}
}

package settings

import (
	"context"
	"database/sql"
	"time"

	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/WolfyD/story-timeline-sub000/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// GetSettings retrieves the settings of a timeline. The first read for a
// timeline persists the defaults so later updates have a row to land on.
func (svc *Service) GetSettings(ctx context.Context, timelineID int) (*models.TimelineSettings, error) {
	settings := &models.TimelineSettings{}
	err := svc.db.
		NewSelect().
		Model(settings).
		Where("timeline_id = ?", timelineID).
		Scan(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(err)
	}

	exists, err := svc.db.
		NewSelect().
		Model((*models.Timeline)(nil)).
		Where("id = ?", timelineID).
		Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !exists {
		return nil, errcodes.NotFound("Timeline")
	}

	now := time.Now()
	settings = models.DefaultTimelineSettings()
	settings.CreatedAt = now
	settings.UpdatedAt = now
	settings.TimelineID = timelineID

	_, err = svc.db.
		NewInsert().
		Model(settings).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return settings, nil
}

// UpdateSettings stores the given settings for their timeline, creating the
// row if it doesn't exist yet. Zero display fields fall back to the
// defaults so a partial struct can't wipe out the font or the subtick
// scale.
func (svc *Service) UpdateSettings(ctx context.Context, settings *models.TimelineSettings) (*models.TimelineSettings, error) {
	exists, err := svc.db.
		NewSelect().
		Model((*models.Timeline)(nil)).
		Where("id = ?", settings.TimelineID).
		Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !exists {
		return nil, errcodes.NotFound("Timeline")
	}

	defaults := models.DefaultTimelineSettings()
	if settings.Font == "" {
		settings.Font = defaults.Font
	}
	if settings.FontSize == 0 {
		settings.FontSize = defaults.FontSize
	}
	if settings.PixelsPerSubtick == 0 {
		settings.PixelsPerSubtick = defaults.PixelsPerSubtick
	}
	if settings.CustomScale == 0 {
		settings.CustomScale = defaults.CustomScale
	}

	now := time.Now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	_, err = svc.db.
		NewInsert().
		Model(settings).
		On("CONFLICT (timeline_id) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Set("font = EXCLUDED.font").
		Set("font_size = EXCLUDED.font_size").
		Set("pixels_per_subtick = EXCLUDED.pixels_per_subtick").
		Set("custom_css = EXCLUDED.custom_css").
		Set("show_guides = EXCLUDED.show_guides").
		Set("window_x = EXCLUDED.window_x").
		Set("window_y = EXCLUDED.window_y").
		Set("window_width = EXCLUDED.window_width").
		Set("window_height = EXCLUDED.window_height").
		Set("use_custom_scaling = EXCLUDED.use_custom_scaling").
		Set("custom_scale = EXCLUDED.custom_scale").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return settings, nil
}

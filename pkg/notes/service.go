package notes

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/WolfyD/story-timeline-sub000/pkg/binder"
	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/WolfyD/story-timeline-sub000/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveNoteOptions struct {
	ID *int
}

type ListNotesOptions struct {
	Limit      *int
	Offset     *int
	TimelineID *int

	includeTotal bool
}

type Service struct {
	db     *bun.DB
	binder *binder.Binder
}

func NewService(db *bun.DB, b *binder.Binder) *Service {
	return &Service{db, b}
}

func (svc *Service) CreateNote(ctx context.Context, params CreateNoteParams) (*models.Note, error) {
	if err := svc.binder.Bind(ctx, &params); err != nil {
		return nil, err
	}

	exists, err := svc.db.
		NewSelect().
		Model((*models.Timeline)(nil)).
		Where("tl.id = ?", params.TimelineID).
		Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !exists {
		return nil, errcodes.NotFound("Timeline")
	}

	now := time.Now()
	note := &models.Note{
		CreatedAt:  now,
		UpdatedAt:  now,
		TimelineID: params.TimelineID,
		Year:       params.Year,
		Subtick:    params.Subtick,
		Content:    strings.TrimSpace(params.Content),
	}
	_, err = svc.db.
		NewInsert().
		Model(note).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return note, nil
}

func (svc *Service) RetrieveNote(ctx context.Context, opts RetrieveNoteOptions) (*models.Note, error) {
	note := &models.Note{}

	q := svc.db.
		NewSelect().
		Model(note)

	if opts.ID != nil {
		q = q.Where("n.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	return note, nil
}

func (svc *Service) ListNotes(ctx context.Context, opts ListNotesOptions) ([]*models.Note, error) {
	n, _, err := svc.listNotesWithTotal(ctx, opts)
	return n, errors.WithStack(err)
}

func (svc *Service) ListNotesWithTotal(ctx context.Context, opts ListNotesOptions) ([]*models.Note, int, error) {
	opts.includeTotal = true
	return svc.listNotesWithTotal(ctx, opts)
}

func (svc *Service) listNotesWithTotal(ctx context.Context, opts ListNotesOptions) ([]*models.Note, int, error) {
	var notes []*models.Note
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&notes).
		Order("n.year ASC", "n.subtick ASC", "n.id ASC")

	if opts.TimelineID != nil {
		q = q.Where("n.timeline_id = ?", *opts.TimelineID)
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return notes, total, nil
}

func (svc *Service) UpdateNote(ctx context.Context, noteID int, params UpdateNoteParams) (*models.Note, error) {
	if err := svc.binder.Bind(ctx, &params); err != nil {
		return nil, err
	}

	note, err := svc.RetrieveNote(ctx, RetrieveNoteOptions{ID: &noteID})
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, errcodes.NotFound("Note")
	}

	columns := []string{}
	if params.Year != nil {
		note.Year = *params.Year
		columns = append(columns, "year")
	}
	if params.Subtick != nil {
		note.Subtick = *params.Subtick
		columns = append(columns, "subtick")
	}
	if params.Content != nil {
		content := strings.TrimSpace(*params.Content)
		if content == "" {
			return nil, errcodes.ValidationError("Note content cannot be empty.")
		}
		note.Content = content
		columns = append(columns, "content")
	}
	if len(columns) == 0 {
		return note, nil
	}

	note.UpdatedAt = time.Now()
	columns = append(columns, "updated_at")

	_, err = svc.db.
		NewUpdate().
		Model(note).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return note, nil
}

func (svc *Service) DeleteNote(ctx context.Context, noteID int) error {
	result, err := svc.db.
		NewDelete().
		Model((*models.Note)(nil)).
		Where("id = ?", noteID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errcodes.NotFound("Note")
	}
	return nil
}

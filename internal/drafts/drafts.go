package drafts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/marketbook/internal/db"
	"github.com/example/marketbook/internal/domain/availability"
	"github.com/example/marketbook/internal/internaltypes"
)

// Draft is a checkout in progress: the booking host's copy of the
// date/time the visitor has picked so far.
type Draft struct {
	ID              string
	BusinessID      string
	DurationMinutes int
	Date            string // YYYY-MM-DD, empty until a date is picked
	Time            string // HH:MM, empty until a time is picked

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.BusinessID) == "" {
		return fmt.Errorf("business_id required")
	}
	if d.DurationMinutes < 1 {
		return fmt.Errorf("duration_minutes must be >= 1")
	}
	return validateSelection(d.Date, d.Time)
}

// Complete reports whether both a date and a time are chosen.
func (d Draft) Complete() bool { return d.Date != "" && d.Time != "" }

func validateSelection(date, t string) error {
	if date != "" {
		if _, err := availability.ParseDate(date, nil); err != nil {
			return err
		}
	}
	if t != "" {
		if date == "" {
			return fmt.Errorf("time requires a date")
		}
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("invalid time %q (want HH:MM)", t)
		}
	}
	return nil
}

// Store persists drafts.
type Store interface {
	Create(ctx context.Context, d Draft) (Draft, error)
	Get(ctx context.Context, id string) (Draft, error)
	SetSelection(ctx context.Context, id, date, t string) error
	List(ctx context.Context, limit int) ([]Draft, error)
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Create(ctx context.Context, d Draft) (Draft, error) {
	if err := d.Validate(); err != nil {
		return Draft{}, err
	}
	d.ID = uuid.NewString()
	err := r.db.QueryRow(ctx, `
INSERT INTO checkout_drafts(id,business_id,duration_minutes,booking_date,booking_time)
VALUES ($1,$2,$3,$4,$5)
RETURNING created_at, updated_at`,
		d.ID, d.BusinessID, d.DurationMinutes, d.Date, d.Time,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Draft{}, db.WrapNotFound(err)
	}
	return d, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Draft, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Draft{}, internaltypes.ErrNotFound
	}
	var d Draft
	err := r.db.QueryRow(ctx, `
SELECT id,business_id,duration_minutes,booking_date,booking_time,created_at,updated_at
FROM checkout_drafts
WHERE id=$1`, id).
		Scan(&d.ID, &d.BusinessID, &d.DurationMinutes, &d.Date, &d.Time, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Draft{}, db.WrapNotFound(err)
	}
	return d, nil
}

func (r *Repo) SetSelection(ctx context.Context, id, date, t string) error {
	if err := validateSelection(date, t); err != nil {
		return err
	}
	n, err := r.db.Exec(ctx, `UPDATE checkout_drafts SET booking_date=$2, booking_time=$3, updated_at=now() WHERE id=$1`, id, date, t)
	if err != nil {
		return db.WrapNotFound(err)
	}
	if n == 0 {
		return internaltypes.ErrNotFound
	}
	return nil
}

func (r *Repo) List(ctx context.Context, limit int) ([]Draft, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
SELECT id,business_id,duration_minutes,booking_date,booking_time,created_at,updated_at
FROM checkout_drafts
ORDER BY updated_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.BusinessID, &d.DurationMinutes, &d.Date, &d.Time, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Recorder returns a picker selection callback that writes every pick into
// the draft. Failures are logged; the callback has no error channel.
func Recorder(ctx context.Context, s Store, draftID string, log *zap.Logger) func(date, t string) {
	if log == nil {
		log = zap.NewNop()
	}
	return func(date, t string) {
		if err := s.SetSelection(ctx, draftID, date, t); err != nil {
			log.Error("persist draft selection failed",
				zap.String("draft_id", draftID),
				zap.String("date", date),
				zap.String("time", t),
				zap.Error(err),
			)
		}
	}
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	appErrors "github.com/ferreiralabs/zapcrm-backend/internal/errors"
	"github.com/ferreiralabs/zapcrm-backend/internal/model"
)

type ScheduleRepositoryInterface interface {
	ListDue(ctx context.Context, from, to time.Time) ([]*model.Schedule, error)
	GetByID(ctx context.Context, id int) (*model.Schedule, error)
	MarkQueued(ctx context.Context, id int) (bool, error)
	MarkSent(ctx context.Context, id int, at time.Time) error
	MarkFailed(ctx context.Context, id int) error
}

type ScheduleRepository struct {
	DB *sql.DB
}

const scheduleColumns = `
    s.id, s.company_id, s.contact_id, s.body, s.status, s.send_at, s.sent_at,
    s.created_at, s.updated_at, c.number, c.name`

func scanSchedule(row interface{ Scan(...any) error }) (*model.Schedule, error) {
	var s model.Schedule
	err := row.Scan(
		&s.ID, &s.CompanyID, &s.ContactID, &s.Body, &s.Status, &s.SendAt, &s.SentAt,
		&s.CreatedAt, &s.UpdatedAt, &s.ContactNumber, &s.ContactName,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListDue returns unsent PENDENTE schedules whose send_at falls inside
// [from, to].
func (r *ScheduleRepository) ListDue(ctx context.Context, from, to time.Time) ([]*model.Schedule, error) {
	query := `SELECT` + scheduleColumns + `
        FROM schedules s
        JOIN contacts c ON c.id = s.contact_id
        WHERE s.status = $1 AND s.sent_at IS NULL AND s.send_at BETWEEN $2 AND $3
        ORDER BY s.send_at`
	rows, err := r.DB.QueryContext(ctx, query, model.SchedulePending, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := []*model.Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id int) (*model.Schedule, error) {
	query := `SELECT` + scheduleColumns + `
        FROM schedules s
        JOIN contacts c ON c.id = s.contact_id
        WHERE s.id=$1`
	s, err := scanSchedule(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewScheduleNotFound(id)
		}
		return nil, err
	}
	return s, nil
}

// MarkQueued flips PENDENTE to AGENDADA atomically. The status guard in the
// WHERE clause keeps the next verifier tick from re-selecting the row; the
// returned bool reports whether this caller won the flip.
func (r *ScheduleRepository) MarkQueued(ctx context.Context, id int) (bool, error) {
	query := `UPDATE schedules SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	res, err := r.DB.ExecContext(ctx, query, model.ScheduleQueued, id, model.SchedulePending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ScheduleRepository) MarkSent(ctx context.Context, id int, at time.Time) error {
	query := `UPDATE schedules SET status=$1, sent_at=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, model.ScheduleSent, at, id)
	return err
}

func (r *ScheduleRepository) MarkFailed(ctx context.Context, id int) error {
	query := `UPDATE schedules SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.ExecContext(ctx, query, model.ScheduleFailed, id)
	return err
}

var _ ScheduleRepositoryInterface = (*ScheduleRepository)(nil)

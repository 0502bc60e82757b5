package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ferreiralabs/zapcrm-backend/internal/model"
)

type UserRepositoryInterface interface {
	ListStaleOnline(ctx context.Context, olderThan time.Time) ([]model.User, error)
	SetOffline(ctx context.Context, id int) error
}

type UserRepository struct {
	DB *sql.DB
}

// ListStaleOnline returns users still flagged online whose last update is
// older than the cutoff.
func (r *UserRepository) ListStaleOnline(ctx context.Context, olderThan time.Time) ([]model.User, error) {
	query := `
        SELECT id, company_id, name, online, updated_at
        FROM users
        WHERE online = TRUE AND updated_at < $1
    `
	rows, err := r.DB.QueryContext(ctx, query, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.CompanyID, &u.Name, &u.Online, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) SetOffline(ctx context.Context, id int) error {
	query := `UPDATE users SET online=FALSE, updated_at=NOW() WHERE id=$1`
	_, err := r.DB.ExecContext(ctx, query, id)
	return err
}

var _ UserRepositoryInterface = (*UserRepository)(nil)

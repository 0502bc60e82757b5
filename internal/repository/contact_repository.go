package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ferreiralabs/zapcrm-backend/internal/model"
)

type ContactRepositoryInterface interface {
	GetListItem(ctx context.Context, id int) (*model.ContactListItem, error)
	// ListValidItems returns the campaign recipient snapshot: list items with
	// a validated channel identity, in stable id order.
	ListValidItems(ctx context.Context, contactListID int) ([]model.ContactListItem, error)
	CountValidItems(ctx context.Context, contactListID int) (int, error)
}

type ContactRepository struct {
	DB *sql.DB
}

func (r *ContactRepository) GetListItem(ctx context.Context, id int) (*model.ContactListItem, error) {
	query := `
        SELECT id, contact_list_id, name, number, email, is_whatsapp_valid
        FROM contact_list_items
        WHERE id = $1
    `
	var item model.ContactListItem
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.ContactListID, &item.Name, &item.Number, &item.Email, &item.IsWhatsappValid,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *ContactRepository) ListValidItems(ctx context.Context, contactListID int) ([]model.ContactListItem, error) {
	query := `
        SELECT id, contact_list_id, name, number, email, is_whatsapp_valid
        FROM contact_list_items
        WHERE contact_list_id = $1 AND is_whatsapp_valid = TRUE
        ORDER BY id
    `
	rows, err := r.DB.QueryContext(ctx, query, contactListID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.ContactListItem{}
	for rows.Next() {
		var item model.ContactListItem
		if err := rows.Scan(&item.ID, &item.ContactListID, &item.Name, &item.Number, &item.Email, &item.IsWhatsappValid); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ContactRepository) CountValidItems(ctx context.Context, contactListID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM contact_list_items WHERE contact_list_id=$1 AND is_whatsapp_valid=TRUE`
	err := r.DB.QueryRowContext(ctx, query, contactListID).Scan(&count)
	return count, err
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)

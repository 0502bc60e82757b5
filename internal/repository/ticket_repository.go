package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ferreiralabs/zapcrm-backend/internal/model"
)

type TicketRepositoryInterface interface {
	FindOrCreate(ctx context.Context, contactID, whatsappID, companyID int, status string) (*model.Ticket, error)
	UpdateStatus(ctx context.Context, id int, status string) error
}

type TicketRepository struct {
	DB *sql.DB
}

// FindOrCreate returns the tracking ticket for the contact/channel/company
// triple, creating it with the given status when absent.
func (r *TicketRepository) FindOrCreate(ctx context.Context, contactID, whatsappID, companyID int, status string) (*model.Ticket, error) {
	insert := `
        INSERT INTO tickets (contact_id, whatsapp_id, company_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        ON CONFLICT (contact_id, whatsapp_id, company_id) DO NOTHING
    `
	if _, err := r.DB.ExecContext(ctx, insert, contactID, whatsappID, companyID, status); err != nil {
		return nil, err
	}

	query := `
        SELECT id, contact_id, whatsapp_id, company_id, status, created_at, updated_at
        FROM tickets
        WHERE contact_id=$1 AND whatsapp_id=$2 AND company_id=$3
    `
	var t model.Ticket
	err := r.DB.QueryRowContext(ctx, query, contactID, whatsappID, companyID).Scan(
		&t.ID, &t.ContactID, &t.WhatsappID, &t.CompanyID, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket for contact %d vanished after upsert", contactID)
		}
		return nil, err
	}
	return &t, nil
}

func (r *TicketRepository) UpdateStatus(ctx context.Context, id int, status string) error {
	query := `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.ExecContext(ctx, query, status, id)
	return err
}

var _ TicketRepositoryInterface = (*TicketRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/ferreiralabs/zapcrm-backend/internal/errors"
	"github.com/ferreiralabs/zapcrm-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	ListDue(ctx context.Context, from, to time.Time) ([]*model.Campaign, error)
	UpdateStatus(ctx context.Context, id int, status model.CampaignStatus) error
	Finalize(ctx context.Context, id int, completedAt time.Time) error

	// Campaign shipping (the dedup unit)
	FindOrCreateShipping(ctx context.Context, s *model.CampaignShipping) (*model.CampaignShipping, bool, error)
	RefreshShipping(ctx context.Context, id int, number, message, confirmationMessage string) error
	ClaimShippingJob(ctx context.Context, id int, jobID string) (bool, error)
	GetShippingByID(ctx context.Context, id int) (*model.CampaignShipping, error)
	MarkShippingDelivered(ctx context.Context, id int, at time.Time) error
	MarkShippingConfirmationRequested(ctx context.Context, id int, at time.Time) error
	CountShippingDelivered(ctx context.Context, campaignID int) (int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `
    id, company_id, name, contact_list_id, whatsapp_id, queue_id, user_id,
    status, confirmation,
    message1, message2, message3, message4, message5,
    confirmation_message1, confirmation_message2, confirmation_message3,
    confirmation_message4, confirmation_message5,
    media_path, media_name, scheduled_at, completed_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.Name, &c.ContactListID, &c.WhatsappID, &c.QueueID, &c.UserID,
		&c.Status, &c.Confirmation,
		&c.Message1, &c.Message2, &c.Message3, &c.Message4, &c.Message5,
		&c.ConfirmationMessage1, &c.ConfirmationMessage2, &c.ConfirmationMessage3,
		&c.ConfirmationMessage4, &c.ConfirmationMessage5,
		&c.MediaPath, &c.MediaName, &c.ScheduledAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	query := `SELECT` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

// ListDue returns PROGRAMADA campaigns whose scheduled_at falls inside
// [from, to].
func (r *CampaignRepository) ListDue(ctx context.Context, from, to time.Time) ([]*model.Campaign, error) {
	query := `SELECT` + campaignColumns + `
        FROM campaigns
        WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at BETWEEN $2 AND $3
        ORDER BY scheduled_at`
	rows, err := r.DB.QueryContext(ctx, query, model.CampaignScheduled, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id int, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.ExecContext(ctx, query, status, id)
	return err
}

func (r *CampaignRepository) Finalize(ctx context.Context, id int, completedAt time.Time) error {
	query := `UPDATE campaigns SET status=$1, completed_at=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, model.CampaignFinished, completedAt, id)
	return err
}

// ====================== Campaign shipping ======================

// FindOrCreateShipping inserts the (campaign_id, contact_id) shipping row if
// absent and returns the authoritative row either way. The unique constraint
// on the pair makes the operation atomic under concurrent preparation
// attempts: ON CONFLICT DO NOTHING loses the race cleanly and the follow-up
// read sees the winner's row. The returned bool reports whether this call
// created the record.
func (r *CampaignRepository) FindOrCreateShipping(ctx context.Context, s *model.CampaignShipping) (*model.CampaignShipping, bool, error) {
	insert := `
        INSERT INTO campaign_shippings
            (campaign_id, contact_id, number, message, confirmation_message, confirmation, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        ON CONFLICT (campaign_id, contact_id) DO NOTHING
        RETURNING id
    `
	created := true
	var id int
	err := r.DB.QueryRowContext(ctx, insert,
		s.CampaignID, s.ContactID, s.Number, s.Message, s.ConfirmationMessage, s.Confirmation,
	).Scan(&id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}
		created = false
	}

	existing, err := r.getShipping(ctx, s.CampaignID, s.ContactID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("shipping for campaign %d contact %d vanished after upsert", s.CampaignID, s.ContactID)
	}
	return existing, created, nil
}

const shippingColumns = `
    id, campaign_id, contact_id, number, message, confirmation_message, confirmation,
    job_id, delivered_at, confirmation_requested_at, created_at, updated_at`

func scanShipping(row interface{ Scan(...any) error }) (*model.CampaignShipping, error) {
	var s model.CampaignShipping
	err := row.Scan(
		&s.ID, &s.CampaignID, &s.ContactID, &s.Number, &s.Message, &s.ConfirmationMessage,
		&s.Confirmation, &s.JobID, &s.DeliveredAt, &s.ConfirmationRequestedAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CampaignRepository) getShipping(ctx context.Context, campaignID, contactID int) (*model.CampaignShipping, error) {
	query := `SELECT` + shippingColumns + `
        FROM campaign_shippings WHERE campaign_id=$1 AND contact_id=$2`
	s, err := scanShipping(r.DB.QueryRowContext(ctx, query, campaignID, contactID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *CampaignRepository) GetShippingByID(ctx context.Context, id int) (*model.CampaignShipping, error) {
	query := `SELECT` + shippingColumns + ` FROM campaign_shippings WHERE id=$1`
	s, err := scanShipping(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewShippingNotFound(id)
		}
		return nil, err
	}
	return s, nil
}

// RefreshShipping re-renders a pre-existing, still-pending record with fresh
// content. Guarded in SQL against delivered or confirmation-requested rows so
// a late retry can never clobber a terminal record.
func (r *CampaignRepository) RefreshShipping(ctx context.Context, id int, number, message, confirmationMessage string) error {
	query := `
        UPDATE campaign_shippings
        SET number=$1, message=$2, confirmation_message=$3, updated_at=NOW()
        WHERE id=$4 AND delivered_at IS NULL AND confirmation_requested_at IS NULL
    `
	_, err := r.DB.ExecContext(ctx, query, number, message, confirmationMessage, id)
	return err
}

// ClaimShippingJob writes jobID onto the shipping record if and only if no
// dispatch job was ever claimed for it and the record is still pending. The
// guarded update is the mutual-exclusion gate: of any number of concurrent
// preparation attempts, exactly one sees a true return and may enqueue.
func (r *CampaignRepository) ClaimShippingJob(ctx context.Context, id int, jobID string) (bool, error) {
	query := `
        UPDATE campaign_shippings SET job_id=$1, updated_at=NOW()
        WHERE id=$2 AND job_id IS NULL AND delivered_at IS NULL AND confirmation_requested_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, jobID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkShippingDelivered sets delivered_at once; the guard keeps a second
// delivery attempt from ever overwriting the first timestamp.
func (r *CampaignRepository) MarkShippingDelivered(ctx context.Context, id int, at time.Time) error {
	query := `UPDATE campaign_shippings SET delivered_at=$1, updated_at=NOW() WHERE id=$2 AND delivered_at IS NULL`
	_, err := r.DB.ExecContext(ctx, query, at, id)
	return err
}

func (r *CampaignRepository) MarkShippingConfirmationRequested(ctx context.Context, id int, at time.Time) error {
	query := `UPDATE campaign_shippings SET confirmation_requested_at=$1, updated_at=NOW() WHERE id=$2 AND confirmation_requested_at IS NULL`
	_, err := r.DB.ExecContext(ctx, query, at, id)
	return err
}

func (r *CampaignRepository) CountShippingDelivered(ctx context.Context, campaignID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM campaign_shippings WHERE campaign_id=$1 AND delivered_at IS NOT NULL`
	err := r.DB.QueryRowContext(ctx, query, campaignID).Scan(&count)
	return count, err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)

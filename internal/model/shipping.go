package model

import "time"

// CampaignShipping is the per-(campaign, contact) delivery record and the
// dedup unit of the whole pipeline: the unique (campaign_id, contact_id) pair
// is what keeps concurrent preparation attempts from double-booking a
// recipient.
type CampaignShipping struct {
	ID                      int        `db:"id" json:"id"`
	CampaignID              int        `db:"campaign_id" json:"campaign_id"`
	ContactID               int        `db:"contact_id" json:"contact_id"`
	Number                  string     `db:"number" json:"number"`
	Message                 string     `db:"message" json:"message"`
	ConfirmationMessage     string     `db:"confirmation_message" json:"confirmation_message"`
	Confirmation            bool       `db:"confirmation" json:"confirmation"`
	JobID                   *string    `db:"job_id" json:"job_id,omitempty"`
	DeliveredAt             *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	ConfirmationRequestedAt *time.Time `db:"confirmation_requested_at" json:"confirmation_requested_at,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updated_at"`
}

// Pending reports whether the recipient still awaits a dispatch job: neither
// delivered nor asked for confirmation yet.
func (s *CampaignShipping) Pending() bool {
	return s.DeliveredAt == nil && s.ConfirmationRequestedAt == nil
}

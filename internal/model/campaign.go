package model

import (
	"strings"
	"time"
)

// CampaignStatus is the campaign lifecycle state. Once a campaign reaches a
// terminal status no further shipping may be started for it.
type CampaignStatus string

const (
	CampaignScheduled        CampaignStatus = "PROGRAMADA"
	CampaignInProgress       CampaignStatus = "EM_ANDAMENTO"
	CampaignFinished         CampaignStatus = "FINALIZADA"
	CampaignFinishedWithErrs CampaignStatus = "FINALIZADA_COM_ERROS"
)

// Terminal reports whether the status admits no further shipping attempts.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignFinished || s == CampaignFinishedWithErrs
}

type Campaign struct {
	ID            int            `db:"id" json:"id"`
	CompanyID     int            `db:"company_id" json:"company_id"`
	Name          string         `db:"name" json:"name"`
	ContactListID int            `db:"contact_list_id" json:"contact_list_id"`
	WhatsappID    int            `db:"whatsapp_id" json:"whatsapp_id"`
	QueueID       *int           `db:"queue_id" json:"queue_id,omitempty"`
	UserID        *int           `db:"user_id" json:"user_id,omitempty"`
	Status        CampaignStatus `db:"status" json:"status"`
	Confirmation  bool           `db:"confirmation" json:"confirmation"`

	Message1 string `db:"message1" json:"message1"`
	Message2 string `db:"message2" json:"message2"`
	Message3 string `db:"message3" json:"message3"`
	Message4 string `db:"message4" json:"message4"`
	Message5 string `db:"message5" json:"message5"`

	ConfirmationMessage1 string `db:"confirmation_message1" json:"confirmation_message1"`
	ConfirmationMessage2 string `db:"confirmation_message2" json:"confirmation_message2"`
	ConfirmationMessage3 string `db:"confirmation_message3" json:"confirmation_message3"`
	ConfirmationMessage4 string `db:"confirmation_message4" json:"confirmation_message4"`
	ConfirmationMessage5 string `db:"confirmation_message5" json:"confirmation_message5"`

	MediaPath string `db:"media_path" json:"media_path"`
	MediaName string `db:"media_name" json:"media_name"`

	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Messages returns the configured message variants, skipping empty slots.
func (c *Campaign) Messages() []string {
	return nonEmpty(c.Message1, c.Message2, c.Message3, c.Message4, c.Message5)
}

// ConfirmationMessages returns the configured confirmation variants, skipping
// empty slots.
func (c *Campaign) ConfirmationMessages() []string {
	return nonEmpty(
		c.ConfirmationMessage1, c.ConfirmationMessage2, c.ConfirmationMessage3,
		c.ConfirmationMessage4, c.ConfirmationMessage5,
	)
}

func nonEmpty(vals ...string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

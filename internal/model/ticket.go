package model

import "time"

const (
	TicketPending = "pending"
	TicketClosed  = "closed"
)

// Ticket is the tracking record for a contact/channel/company triple, used to
// reflect campaign-driven send attempts and failures.
type Ticket struct {
	ID         int       `db:"id" json:"id"`
	ContactID  int       `db:"contact_id" json:"contact_id"`
	WhatsappID int       `db:"whatsapp_id" json:"whatsapp_id"`
	CompanyID  int       `db:"company_id" json:"company_id"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

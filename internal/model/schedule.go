package model

import "time"

// ScheduleStatus is the lifecycle of a one-off scheduled message.
type ScheduleStatus string

const (
	SchedulePending ScheduleStatus = "PENDENTE"
	ScheduleQueued  ScheduleStatus = "AGENDADA"
	ScheduleSent    ScheduleStatus = "ENVIADA"
	ScheduleFailed  ScheduleStatus = "ERRO"
)

// Schedule is a one-off scheduled message created externally and promoted by
// the schedule verifier. ContactNumber and ContactName are joined from the
// contact row when the schedule is loaded.
type Schedule struct {
	ID        int            `db:"id" json:"id"`
	CompanyID int            `db:"company_id" json:"company_id"`
	ContactID int            `db:"contact_id" json:"contact_id"`
	Body      string         `db:"body" json:"body"`
	Status    ScheduleStatus `db:"status" json:"status"`
	SendAt    time.Time      `db:"send_at" json:"send_at"`
	SentAt    *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`

	ContactNumber string `db:"contact_number" json:"contact_number"`
	ContactName   string `db:"contact_name" json:"contact_name"`
}

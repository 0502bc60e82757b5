package model

import "time"

type User struct {
	ID        int       `db:"id" json:"id"`
	CompanyID int       `db:"company_id" json:"company_id"`
	Name      string    `db:"name" json:"name"`
	Online    bool      `db:"online" json:"online"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

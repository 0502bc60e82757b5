package model

// Contact is a CRM contact, referenced by one-off schedules.
type Contact struct {
	ID        int    `db:"id" json:"id"`
	CompanyID int    `db:"company_id" json:"company_id"`
	Name      string `db:"name" json:"name"`
	Number    string `db:"number" json:"number"`
	Email     string `db:"email" json:"email"`
}

// ContactListItem is one recipient of a bulk campaign. Only items with a
// validated channel identity participate in a campaign run.
type ContactListItem struct {
	ID              int    `db:"id" json:"id"`
	ContactListID   int    `db:"contact_list_id" json:"contact_list_id"`
	Name            string `db:"name" json:"name"`
	Number          string `db:"number" json:"number"`
	Email           string `db:"email" json:"email"`
	IsWhatsappValid bool   `db:"is_whatsapp_valid" json:"is_whatsapp_valid"`
}

package appErrors

import "fmt"

// ErrCampaignNotFound is returned when a campaign vanished between enqueue
// and processing. Fatal for the job that observed it.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrScheduleNotFound is returned when a schedule row is gone by the time its
// send job runs.
type ErrScheduleNotFound struct {
	ScheduleID int
}

func (e *ErrScheduleNotFound) Error() string {
	return fmt.Sprintf("schedule with ID %d not found", e.ScheduleID)
}

func NewScheduleNotFound(id int) error {
	return &ErrScheduleNotFound{ScheduleID: id}
}

// ErrShippingNotFound is returned when a dispatch job references a shipping
// record that no longer exists.
type ErrShippingNotFound struct {
	ShippingID int
}

func (e *ErrShippingNotFound) Error() string {
	return fmt.Sprintf("campaign shipping with ID %d not found", e.ShippingID)
}

func NewShippingNotFound(id int) error {
	return &ErrShippingNotFound{ShippingID: id}
}

// ErrInvalidRecipientSet marks a campaign whose contact list cannot be
// expanded into recipients. Fatal and non-retryable for that campaign.
type ErrInvalidRecipientSet struct {
	CampaignID int
}

func (e *ErrInvalidRecipientSet) Error() string {
	return fmt.Sprintf("campaign %d has no usable recipient set", e.CampaignID)
}

func NewInvalidRecipientSet(campaignID int) error {
	return &ErrInvalidRecipientSet{CampaignID: campaignID}
}

package service

import (
	"context"

	"github.com/ferreiralabs/zapcrm-backend/internal/queue"
)

// Queue names. Both carry the provider send-rate limiter; the constraint is
// provider-imposed, not business-imposed, so it applies regardless of where a
// send originated.
const (
	MessageQueue  = "message-queue"
	CampaignQueue = "campaign-queue"
)

// Job types.
const (
	JobSendScheduledMessage = "SendScheduledMessage"
	JobProcessCampaign      = "ProcessCampaign"
	JobPrepareContact       = "PrepareContact"
	JobDispatchCampaign     = "DispatchCampaign"
)

// Enqueuer is the slice of a queue handle the services need. Satisfied by
// *queue.Queue; mocked in tests.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any, opts queue.EnqueueOptions) (string, error)
}

// SendScheduledPayload carries a schedule's id plus a contact snapshot taken
// at verification time, so the send can proceed even when the defensive
// re-read fails.
type SendScheduledPayload struct {
	ScheduleID    int    `json:"scheduleId"`
	CompanyID     int    `json:"companyId"`
	ContactNumber string `json:"contactNumber"`
	Body          string `json:"body"`
}

// ProcessCampaignPayload hands a due campaign to the orchestrator. DelayMS is
// the head start before the first recipient, in milliseconds.
type ProcessCampaignPayload struct {
	CampaignID int   `json:"campaignId"`
	DelayMS    int64 `json:"delay"`
}

// PrepareContactPayload is one recipient's preparation job. DelayMS is the
// orchestrator-computed wait before the eventual dispatch.
type PrepareContactPayload struct {
	ContactListItemID int   `json:"contactListItemId"`
	CampaignID        int   `json:"campaignId"`
	DelayMS           int64 `json:"delay"`
}

// DispatchCampaignPayload is one recipient's dispatch job.
type DispatchCampaignPayload struct {
	CampaignShippingID int `json:"campaignShippingId"`
	CampaignID         int `json:"campaignId"`
	ContactID          int `json:"contactId"`
}

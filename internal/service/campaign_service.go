package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ferreiralabs/zapcrm-backend/internal/channel"
	appErrors "github.com/ferreiralabs/zapcrm-backend/internal/errors"
	"github.com/ferreiralabs/zapcrm-backend/internal/model"
	"github.com/ferreiralabs/zapcrm-backend/internal/notify"
	"github.com/ferreiralabs/zapcrm-backend/internal/queue"
	"github.com/ferreiralabs/zapcrm-backend/internal/report"
	"github.com/ferreiralabs/zapcrm-backend/internal/repository"
)

// campaignLookahead is how far ahead the verifier promotes due campaigns.
const campaignLookahead = time.Hour

// CampaignService runs the campaign pipeline: the verifier promotes due
// campaigns, the orchestrator fans out one paced preparation job per
// recipient, the preparer renders content and books the shipping record, the
// dispatcher performs the send, and the completion evaluator finalizes the
// campaign once every recipient has a delivered timestamp.
type CampaignService struct {
	Campaigns repository.CampaignRepositoryInterface
	Contacts  repository.ContactRepositoryInterface
	Settings  repository.SettingRepositoryInterface
	Tickets   repository.TicketRepositoryInterface
	Channels  channel.Resolver
	Notifier  notify.Publisher
	Reporter  report.Reporter
	Queue     Enqueuer
	Log       zerolog.Logger

	// Intn overrides the random source for variant picks and pacing jitter.
	// Nil means math/rand.
	Intn func(int) int
}

// VerifyCampaigns promotes PROGRAMADA campaigns due within the lookahead
// window into ProcessCampaign jobs. Per-campaign failures are reported and do
// not block siblings in the sweep.
func (s *CampaignService) VerifyCampaigns(ctx context.Context) error {
	now := time.Now()
	due, err := s.Campaigns.ListDue(ctx, now, now.Add(campaignLookahead))
	if err != nil {
		return fmt.Errorf("list due campaigns: %w", err)
	}

	for _, c := range due {
		delay := time.Until(*c.ScheduledAt)
		if delay < 0 {
			delay = 0 // overdue campaigns start immediately
		}
		payload := ProcessCampaignPayload{CampaignID: c.ID, DelayMS: delay.Milliseconds()}
		_, err := s.Queue.Enqueue(ctx, JobProcessCampaign, payload, queue.EnqueueOptions{RemoveOnComplete: true})
		if err != nil {
			s.Reporter.Capture(err, map[string]string{"campaign": strconv.Itoa(c.ID), "stage": "verify"})
			continue
		}
		s.Log.Info().Int("campaign", c.ID).Dur("initial_delay", delay).Msg("campaign promoted")
	}
	return nil
}

// ProcessCampaign is the orchestrator: it snapshots the recipient set,
// resolves pacing settings once, and fans out one PrepareContact job per
// recipient with a monotonically increasing delay.
func (s *CampaignService) ProcessCampaign(ctx context.Context, p ProcessCampaignPayload) error {
	campaign, err := s.Campaigns.GetByID(ctx, p.CampaignID)
	if err != nil {
		return err
	}
	if campaign.Status.Terminal() {
		s.Log.Info().Int("campaign", campaign.ID).Str("status", string(campaign.Status)).Msg("skipping terminal campaign")
		return nil
	}

	items, err := s.Contacts.ListValidItems(ctx, campaign.ContactListID)
	if err != nil {
		s.failCampaign(ctx, campaign.ID)
		return fmt.Errorf("load recipient set for campaign %d: %w", campaign.ID, err)
	}
	if len(items) == 0 {
		// Not a usable list: fatal and non-retryable for this campaign.
		s.failCampaign(ctx, campaign.ID)
		s.Reporter.Capture(appErrors.NewInvalidRecipientSet(campaign.ID), map[string]string{
			"campaign": strconv.Itoa(campaign.ID),
			"stage":    "orchestrate",
		})
		return nil
	}

	pacing, err := s.Settings.Pacing(ctx, campaign.CompanyID)
	if err != nil {
		// Pacing falls back to defaults; the campaign still runs.
		s.Log.Warn().Err(err).Int("company", campaign.CompanyID).Msg("pacing settings unavailable, using defaults")
	}

	delay := time.Duration(p.DelayMS) * time.Millisecond
	for i, item := range items {
		index := i + 1
		if index > 1 {
			delay = NextRecipientDelay(delay, index, pacing, s.Intn)
		}
		payload := PrepareContactPayload{
			ContactListItemID: item.ID,
			CampaignID:        campaign.ID,
			DelayMS:           delay.Milliseconds(),
		}
		_, err := s.Queue.Enqueue(ctx, JobPrepareContact, payload, queue.EnqueueOptions{RemoveOnComplete: true})
		if err != nil {
			// Partial fan-out is acceptable: jobs already enqueued still run.
			s.failCampaign(ctx, campaign.ID)
			return fmt.Errorf("fan out campaign %d at recipient %d: %w", campaign.ID, index, err)
		}
	}

	if err := s.Campaigns.UpdateStatus(ctx, campaign.ID, model.CampaignInProgress); err != nil {
		s.failCampaign(ctx, campaign.ID)
		return fmt.Errorf("mark campaign %d in progress: %w", campaign.ID, err)
	}
	s.Log.Info().Int("campaign", campaign.ID).Int("recipients", len(items)).Msg("campaign fan-out complete")
	return nil
}

// PrepareContact renders one recipient's message, books the shipping record
// and enqueues at most one dispatch job for it. Re-delivery of the same
// preparation job is safe: the shipping upsert plus the job-id gate make the
// whole operation idempotent.
func (s *CampaignService) PrepareContact(ctx context.Context, p PrepareContactPayload) error {
	campaign, err := s.Campaigns.GetByID(ctx, p.CampaignID)
	if err != nil {
		return err
	}
	if campaign.Status.Terminal() {
		return nil
	}

	item, err := s.Contacts.GetListItem(ctx, p.ContactListItemID)
	if err == nil && item == nil {
		err = fmt.Errorf("contact list item %d not found", p.ContactListItemID)
	}
	if err != nil {
		s.failCampaign(ctx, campaign.ID)
		return fmt.Errorf("prepare contact for campaign %d: %w", campaign.ID, err)
	}

	message := ""
	if variants := campaign.Messages(); len(variants) > 0 {
		message = renderMessage(pickVariant(variants, s.Intn), *item)
	}
	confirmationMessage := ""
	if campaign.Confirmation {
		if variants := campaign.ConfirmationMessages(); len(variants) > 0 {
			confirmationMessage = renderMessage(pickVariant(variants, s.Intn), *item)
		}
	}

	shipping, created, err := s.Campaigns.FindOrCreateShipping(ctx, &model.CampaignShipping{
		CampaignID:          campaign.ID,
		ContactID:           item.ID,
		Number:              item.Number,
		Message:             message,
		ConfirmationMessage: confirmationMessage,
		Confirmation:        campaign.Confirmation,
	})
	if err != nil {
		s.failCampaign(ctx, campaign.ID)
		return fmt.Errorf("book shipping for campaign %d contact %d: %w", campaign.ID, item.ID, err)
	}

	if !created && shipping.Pending() {
		if err := s.Campaigns.RefreshShipping(ctx, shipping.ID, item.Number, message, confirmationMessage); err != nil {
			s.failCampaign(ctx, campaign.ID)
			return fmt.Errorf("refresh shipping %d: %w", shipping.ID, err)
		}
	}

	// The at-most-once gate. The job id is claimed onto the shipping record
	// with a guarded update before the job exists, so of any number of
	// concurrent or retried preparation attempts exactly one wins the claim
	// and enqueues. Losers, and records already delivered or
	// confirmation-requested, enqueue nothing.
	if shipping.Pending() && shipping.JobID == nil {
		jobID := uuid.NewString()
		claimed, err := s.Campaigns.ClaimShippingJob(ctx, shipping.ID, jobID)
		if err != nil {
			s.failCampaign(ctx, campaign.ID)
			return fmt.Errorf("claim dispatch slot for shipping %d: %w", shipping.ID, err)
		}
		if claimed {
			payload := DispatchCampaignPayload{
				CampaignShippingID: shipping.ID,
				CampaignID:         campaign.ID,
				ContactID:          item.ID,
			}
			_, err := s.Queue.Enqueue(ctx, JobDispatchCampaign, payload, queue.EnqueueOptions{
				PublicID:         jobID,
				Delay:            time.Duration(p.DelayMS) * time.Millisecond,
				MaxAttempts:      1, // dispatch is never retried by the queue
				RemoveOnComplete: true,
			})
			if err != nil {
				s.failCampaign(ctx, campaign.ID)
				return fmt.Errorf("enqueue dispatch for shipping %d: %w", shipping.ID, err)
			}
		}
	}

	if err := s.EvaluateCompletion(ctx, campaign); err != nil {
		s.failCampaign(ctx, campaign.ID)
		return err
	}
	return nil
}

// DispatchCampaign performs the side-effecting send for one shipping record.
// Failures here are terminal for the campaign: the job carries MaxAttempts 1
// and the handler marks the campaign failed and force-closes the recipient's
// tracking ticket before re-raising.
func (s *CampaignService) DispatchCampaign(ctx context.Context, p DispatchCampaignPayload) error {
	campaign, err := s.Campaigns.GetByID(ctx, p.CampaignID)
	if err != nil {
		s.failCampaign(ctx, p.CampaignID)
		s.closeTicket(ctx, nil, p.ContactID)
		return err
	}
	if campaign.Status.Terminal() {
		// A delayed dispatch may fire after the campaign was finalized (for
		// example by a sibling's failure). No delivery may start then.
		s.Log.Info().Int("campaign", campaign.ID).Int("shipping", p.CampaignShippingID).Msg("dropping dispatch for terminal campaign")
		return nil
	}

	shipping, err := s.Campaigns.GetShippingByID(ctx, p.CampaignShippingID)
	if err != nil {
		s.failCampaign(ctx, campaign.ID)
		s.closeTicket(ctx, campaign, p.ContactID)
		return err
	}
	if shipping.DeliveredAt != nil {
		// A duplicate dispatch job must never re-send a delivered message.
		s.Log.Info().Int("campaign", campaign.ID).Int("shipping", shipping.ID).Msg("dropping dispatch for delivered shipping")
		return nil
	}

	session, err := s.Channels.SessionFor(ctx, campaign.WhatsappID)
	if err != nil {
		s.failCampaign(ctx, campaign.ID)
		s.closeTicket(ctx, campaign, p.ContactID)
		return fmt.Errorf("resolve session for campaign %d: %w", campaign.ID, err)
	}

	askConfirmation := campaign.Confirmation && shipping.ConfirmationRequestedAt == nil
	now := time.Now()

	if askConfirmation {
		if err := session.SendText(ctx, shipping.Number, shipping.ConfirmationMessage); err != nil {
			return s.dispatchFailed(ctx, campaign, p.ContactID, err)
		}
		if err := s.Campaigns.MarkShippingConfirmationRequested(ctx, shipping.ID, now); err != nil {
			return s.dispatchFailed(ctx, campaign, p.ContactID, err)
		}
		shipping.ConfirmationRequestedAt = &now
	} else {
		if campaign.MediaPath != "" {
			if err := session.SendMedia(ctx, shipping.Number, campaign.MediaPath, campaign.MediaName); err != nil {
				return s.dispatchFailed(ctx, campaign, p.ContactID, err)
			}
		}
		if err := session.SendText(ctx, shipping.Number, shipping.Message); err != nil {
			return s.dispatchFailed(ctx, campaign, p.ContactID, err)
		}
		if err := s.Campaigns.MarkShippingDelivered(ctx, shipping.ID, now); err != nil {
			return s.dispatchFailed(ctx, campaign, p.ContactID, err)
		}
		shipping.DeliveredAt = &now
	}

	s.Log.Info().
		Int("campaign", campaign.ID).
		Int("shipping", shipping.ID).
		Bool("confirmation_request", askConfirmation).
		Msg("campaign message dispatched")

	if err := s.EvaluateCompletion(ctx, campaign); err != nil {
		return s.dispatchFailed(ctx, campaign, p.ContactID, err)
	}
	return nil
}

// EvaluateCompletion flips the campaign to FINALIZADA once every valid
// recipient holds a delivered timestamp, and always publishes the campaign's
// current state so the UI stays fresh.
func (s *CampaignService) EvaluateCompletion(ctx context.Context, campaign *model.Campaign) error {
	defer s.Notifier.Publish(campaign.CompanyID, "campaign", campaign)

	if campaign.Status.Terminal() {
		return nil
	}

	total, err := s.Contacts.CountValidItems(ctx, campaign.ContactListID)
	if err != nil {
		return fmt.Errorf("count recipients for campaign %d: %w", campaign.ID, err)
	}
	delivered, err := s.Campaigns.CountShippingDelivered(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("count deliveries for campaign %d: %w", campaign.ID, err)
	}
	if total == 0 || delivered < total {
		return nil
	}

	now := time.Now()
	if err := s.Campaigns.Finalize(ctx, campaign.ID, now); err != nil {
		return fmt.Errorf("finalize campaign %d: %w", campaign.ID, err)
	}
	campaign.Status = model.CampaignFinished
	campaign.CompletedAt = &now
	s.Log.Info().Int("campaign", campaign.ID).Int("delivered", delivered).Msg("campaign finished")
	return nil
}

func (s *CampaignService) dispatchFailed(ctx context.Context, campaign *model.Campaign, contactID int, cause error) error {
	s.failCampaign(ctx, campaign.ID)
	s.closeTicket(ctx, campaign, contactID)
	return fmt.Errorf("dispatch for campaign %d failed: %w", campaign.ID, cause)
}

func (s *CampaignService) failCampaign(ctx context.Context, campaignID int) {
	if err := s.Campaigns.UpdateStatus(ctx, campaignID, model.CampaignFinishedWithErrs); err != nil {
		s.Log.Error().Err(err).Int("campaign", campaignID).Msg("mark campaign failed")
	}
}

// closeTicket force-closes the recipient's tracking ticket to reflect the
// failed attempt. Needs a loaded campaign for the channel/company scope;
// without one there is nothing to key the ticket on.
func (s *CampaignService) closeTicket(ctx context.Context, campaign *model.Campaign, contactID int) {
	if campaign == nil {
		return
	}
	ticket, err := s.Tickets.FindOrCreate(ctx, contactID, campaign.WhatsappID, campaign.CompanyID, model.TicketPending)
	if err != nil {
		s.Reporter.Capture(err, map[string]string{"campaign": strconv.Itoa(campaign.ID), "stage": "ticket"})
		return
	}
	if err := s.Tickets.UpdateStatus(ctx, ticket.ID, model.TicketClosed); err != nil {
		s.Reporter.Capture(err, map[string]string{"campaign": strconv.Itoa(campaign.ID), "stage": "ticket"})
	}
}

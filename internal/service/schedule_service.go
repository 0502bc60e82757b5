package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ferreiralabs/zapcrm-backend/internal/channel"
	"github.com/ferreiralabs/zapcrm-backend/internal/model"
	"github.com/ferreiralabs/zapcrm-backend/internal/queue"
	"github.com/ferreiralabs/zapcrm-backend/internal/report"
	"github.com/ferreiralabs/zapcrm-backend/internal/repository"
)

const (
	// scheduleLookahead is how far ahead of now the verifier picks up
	// pending schedules.
	scheduleLookahead = 30 * time.Second
	// scheduleSendDelay is the fixed wait between queuing a schedule and
	// actually sending it.
	scheduleSendDelay = 40 * time.Second
)

// ScheduleService promotes due one-off schedules into delayed send jobs and
// performs the sends.
type ScheduleService struct {
	Schedules repository.ScheduleRepositoryInterface
	Channels  channel.Resolver
	Reporter  report.Reporter
	Queue     Enqueuer
	Log       zerolog.Logger
}

// VerifySchedules sweeps PENDENTE schedules due within the lookahead window.
// The AGENDADA flip is the claim: sweeps overlap every few seconds, and only
// the tick that wins the flip may enqueue. Per-schedule failures are reported
// and do not block siblings.
func (s *ScheduleService) VerifySchedules(ctx context.Context) error {
	now := time.Now()
	due, err := s.Schedules.ListDue(ctx, now, now.Add(scheduleLookahead))
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	for _, sched := range due {
		if err := s.promote(ctx, sched); err != nil {
			s.Reporter.Capture(err, map[string]string{"schedule": strconv.Itoa(sched.ID), "stage": "verify"})
		}
	}
	return nil
}

func (s *ScheduleService) promote(ctx context.Context, sched *model.Schedule) error {
	won, err := s.Schedules.MarkQueued(ctx, sched.ID)
	if err != nil {
		return fmt.Errorf("queue schedule %d: %w", sched.ID, err)
	}
	if !won {
		return nil // a concurrent sweep already took it
	}

	payload := SendScheduledPayload{
		ScheduleID:    sched.ID,
		CompanyID:     sched.CompanyID,
		ContactNumber: sched.ContactNumber,
		Body:          sched.Body,
	}
	_, err = s.Queue.Enqueue(ctx, JobSendScheduledMessage, payload, queue.EnqueueOptions{
		Delay:            scheduleSendDelay,
		RemoveOnComplete: true,
	})
	if err != nil {
		return fmt.Errorf("enqueue schedule %d: %w", sched.ID, err)
	}
	s.Log.Info().Int("schedule", sched.ID).Msg("schedule queued")
	return nil
}

// SendScheduled delivers one schedule through the company's default session.
// The re-read is defensive only: when it fails the send proceeds on the
// payload snapshot. Any send failure is terminal for the schedule, it is
// marked ERRO and never retried.
func (s *ScheduleService) SendScheduled(ctx context.Context, p SendScheduledPayload) error {
	number, body := p.ContactNumber, p.Body
	sched, err := s.Schedules.GetByID(ctx, p.ScheduleID)
	if err != nil {
		s.Log.Warn().Err(err).Int("schedule", p.ScheduleID).Msg("schedule re-read failed, sending from snapshot")
	} else {
		number, body = sched.ContactNumber, sched.Body
	}

	session, err := s.Channels.DefaultSession(ctx, p.CompanyID)
	if err != nil {
		return s.abort(ctx, p.ScheduleID, fmt.Errorf("resolve session for schedule %d: %w", p.ScheduleID, err))
	}
	if err := session.SendText(ctx, number, body); err != nil {
		return s.abort(ctx, p.ScheduleID, fmt.Errorf("send schedule %d: %w", p.ScheduleID, err))
	}
	if err := s.Schedules.MarkSent(ctx, p.ScheduleID, time.Now()); err != nil {
		return s.abort(ctx, p.ScheduleID, fmt.Errorf("mark schedule %d sent: %w", p.ScheduleID, err))
	}

	s.Log.Info().Int("schedule", p.ScheduleID).Msg("scheduled message sent")
	return nil
}

// abort marks the schedule ERRO and reports the cause. The nil return keeps
// the queue from retrying a terminally failed schedule.
func (s *ScheduleService) abort(ctx context.Context, scheduleID int, cause error) error {
	if err := s.Schedules.MarkFailed(ctx, scheduleID); err != nil {
		s.Log.Error().Err(err).Int("schedule", scheduleID).Msg("mark schedule failed")
	}
	s.Reporter.Capture(cause, map[string]string{"schedule": strconv.Itoa(scheduleID), "stage": "send"})
	return nil
}

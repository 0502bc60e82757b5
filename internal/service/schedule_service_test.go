package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/ferreiralabs/zapcrm-backend/internal/errors"
	"github.com/ferreiralabs/zapcrm-backend/internal/model"
)

type mockScheduleRepo struct {
	schedules map[int]*model.Schedule
}

func newMockScheduleRepo(schedules ...*model.Schedule) *mockScheduleRepo {
	m := &mockScheduleRepo{schedules: map[int]*model.Schedule{}}
	for _, s := range schedules {
		m.schedules[s.ID] = s
	}
	return m
}

func (m *mockScheduleRepo) ListDue(_ context.Context, from, to time.Time) ([]*model.Schedule, error) {
	var out []*model.Schedule
	for _, s := range m.schedules {
		if s.Status != model.SchedulePending || s.SentAt != nil {
			continue
		}
		if s.SendAt.Before(from) || s.SendAt.After(to) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id int) (*model.Schedule, error) {
	s, ok := m.schedules[id]
	if !ok {
		return nil, appErrors.NewScheduleNotFound(id)
	}
	cp := *s
	return &cp, nil
}

func (m *mockScheduleRepo) MarkQueued(_ context.Context, id int) (bool, error) {
	s, ok := m.schedules[id]
	if !ok || s.Status != model.SchedulePending {
		return false, nil
	}
	s.Status = model.ScheduleQueued
	return true, nil
}

func (m *mockScheduleRepo) MarkSent(_ context.Context, id int, at time.Time) error {
	if s, ok := m.schedules[id]; ok {
		s.Status = model.ScheduleSent
		s.SentAt = &at
	}
	return nil
}

func (m *mockScheduleRepo) MarkFailed(_ context.Context, id int) error {
	if s, ok := m.schedules[id]; ok {
		s.Status = model.ScheduleFailed
	}
	return nil
}

func newScheduleService(repo *mockScheduleRepo) (*ScheduleService, *mockQueue, *mockSession, *mockReporter) {
	q := &mockQueue{}
	session := &mockSession{}
	reporter := &mockReporter{}
	svc := &ScheduleService{
		Schedules: repo,
		Channels:  &mockResolver{session: session},
		Reporter:  reporter,
		Queue:     q,
		Log:       zerolog.Nop(),
	}
	return svc, q, session, reporter
}

func pendingSchedule(id int, sendAt time.Time) *model.Schedule {
	return &model.Schedule{
		ID:            id,
		CompanyID:     1,
		ContactID:     1,
		Body:          "Lembrete: consulta amanha.",
		Status:        model.SchedulePending,
		SendAt:        sendAt,
		ContactNumber: "5511988880001",
		ContactName:   "Diego",
	}
}

func TestVerifySchedulesPromotesDue(t *testing.T) {
	repo := newMockScheduleRepo(
		pendingSchedule(1, time.Now().Add(10*time.Second)),
		pendingSchedule(2, time.Now().Add(5*time.Minute)), // outside the window
	)
	svc, q, _, _ := newScheduleService(repo)

	require.NoError(t, svc.VerifySchedules(context.Background()))

	jobs := q.ofType(JobSendScheduledMessage)
	require.Len(t, jobs, 1)
	assert.Equal(t, scheduleSendDelay, jobs[0].opts.Delay)

	payload := jobs[0].payload.(SendScheduledPayload)
	assert.Equal(t, 1, payload.ScheduleID)
	assert.Equal(t, "5511988880001", payload.ContactNumber)

	got, _ := repo.GetByID(context.Background(), 1)
	assert.Equal(t, model.ScheduleQueued, got.Status)
}

func TestVerifySchedulesDoesNotEnqueueTwice(t *testing.T) {
	repo := newMockScheduleRepo(pendingSchedule(1, time.Now().Add(10*time.Second)))
	svc, q, _, _ := newScheduleService(repo)

	require.NoError(t, svc.VerifySchedules(context.Background()))
	require.NoError(t, svc.VerifySchedules(context.Background()))

	assert.Len(t, q.ofType(JobSendScheduledMessage), 1, "a queued schedule must not be picked up again")
}

func TestSendScheduledMarksSent(t *testing.T) {
	sched := pendingSchedule(1, time.Now())
	sched.Status = model.ScheduleQueued
	repo := newMockScheduleRepo(sched)
	svc, _, session, _ := newScheduleService(repo)

	err := svc.SendScheduled(context.Background(), SendScheduledPayload{
		ScheduleID: 1, CompanyID: 1, ContactNumber: "5511988880001", Body: "snapshot",
	})
	require.NoError(t, err)

	require.Len(t, session.sent, 1)
	// The fresh row wins over the payload snapshot.
	assert.Equal(t, "Lembrete: consulta amanha.", session.sent[0].body)

	got, _ := repo.GetByID(context.Background(), 1)
	assert.Equal(t, model.ScheduleSent, got.Status)
	assert.NotNil(t, got.SentAt)
}

func TestSendScheduledUsesSnapshotWhenRowGone(t *testing.T) {
	repo := newMockScheduleRepo()
	svc, _, session, _ := newScheduleService(repo)

	err := svc.SendScheduled(context.Background(), SendScheduledPayload{
		ScheduleID: 99, CompanyID: 1, ContactNumber: "5511900000000", Body: "snapshot body",
	})
	require.NoError(t, err)

	require.Len(t, session.sent, 1)
	assert.Equal(t, "snapshot body", session.sent[0].body)
	assert.Equal(t, "5511900000000", session.sent[0].number)
}

func TestSendScheduledFailureIsTerminal(t *testing.T) {
	sched := pendingSchedule(1, time.Now())
	sched.Status = model.ScheduleQueued
	repo := newMockScheduleRepo(sched)
	svc, _, session, reporter := newScheduleService(repo)
	session.textErr = errors.New("gateway unavailable")

	err := svc.SendScheduled(context.Background(), SendScheduledPayload{
		ScheduleID: 1, CompanyID: 1, ContactNumber: "5511988880001", Body: "x",
	})
	require.NoError(t, err, "a terminally failed schedule must not be retried by the queue")

	got, _ := repo.GetByID(context.Background(), 1)
	assert.Equal(t, model.ScheduleFailed, got.Status)
	require.Len(t, reporter.captured, 1)
}

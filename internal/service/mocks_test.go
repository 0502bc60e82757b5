package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ferreiralabs/zapcrm-backend/internal/channel"
	appErrors "github.com/ferreiralabs/zapcrm-backend/internal/errors"
	"github.com/ferreiralabs/zapcrm-backend/internal/model"
	"github.com/ferreiralabs/zapcrm-backend/internal/queue"
)

// In-memory stand-ins for the Postgres repositories, the queue and the
// gateway. Each one mimics the guarded-update semantics of the real SQL.

type enqueued struct {
	jobType string
	payload any
	opts    queue.EnqueueOptions
	id      string
}

type mockQueue struct {
	jobs []enqueued
	err  error
}

func (m *mockQueue) Enqueue(_ context.Context, jobType string, payload any, opts queue.EnqueueOptions) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	id := opts.PublicID
	if id == "" {
		id = fmt.Sprintf("job-%d", len(m.jobs)+1)
	}
	m.jobs = append(m.jobs, enqueued{jobType: jobType, payload: payload, opts: opts, id: id})
	return id, nil
}

func (m *mockQueue) ofType(jobType string) []enqueued {
	var out []enqueued
	for _, j := range m.jobs {
		if j.jobType == jobType {
			out = append(out, j)
		}
	}
	return out
}

type mockCampaignRepo struct {
	campaigns map[int]*model.Campaign
	shippings map[int]*model.CampaignShipping
	nextID    int
}

func newMockCampaignRepo(campaigns ...*model.Campaign) *mockCampaignRepo {
	m := &mockCampaignRepo{
		campaigns: map[int]*model.Campaign{},
		shippings: map[int]*model.CampaignShipping{},
	}
	for _, c := range campaigns {
		m.campaigns[c.ID] = c
	}
	return m
}

func (m *mockCampaignRepo) GetByID(_ context.Context, id int) (*model.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *mockCampaignRepo) ListDue(_ context.Context, from, to time.Time) ([]*model.Campaign, error) {
	var out []*model.Campaign
	for _, c := range m.campaigns {
		if c.Status != model.CampaignScheduled || c.ScheduledAt == nil {
			continue
		}
		if c.ScheduledAt.Before(from) || c.ScheduledAt.After(to) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockCampaignRepo) UpdateStatus(_ context.Context, id int, status model.CampaignStatus) error {
	c, ok := m.campaigns[id]
	if !ok {
		return nil
	}
	c.Status = status
	return nil
}

func (m *mockCampaignRepo) Finalize(_ context.Context, id int, completedAt time.Time) error {
	c, ok := m.campaigns[id]
	if !ok {
		return nil
	}
	c.Status = model.CampaignFinished
	c.CompletedAt = &completedAt
	return nil
}

func (m *mockCampaignRepo) FindOrCreateShipping(_ context.Context, s *model.CampaignShipping) (*model.CampaignShipping, bool, error) {
	for _, existing := range m.shippings {
		if existing.CampaignID == s.CampaignID && existing.ContactID == s.ContactID {
			cp := *existing
			return &cp, false, nil
		}
	}
	m.nextID++
	created := *s
	created.ID = m.nextID
	m.shippings[created.ID] = &created
	cp := created
	return &cp, true, nil
}

func (m *mockCampaignRepo) RefreshShipping(_ context.Context, id int, number, message, confirmationMessage string) error {
	s, ok := m.shippings[id]
	if !ok || !s.Pending() {
		return nil
	}
	s.Number, s.Message, s.ConfirmationMessage = number, message, confirmationMessage
	return nil
}

func (m *mockCampaignRepo) ClaimShippingJob(_ context.Context, id int, jobID string) (bool, error) {
	s, ok := m.shippings[id]
	if !ok || s.JobID != nil || !s.Pending() {
		return false, nil
	}
	s.JobID = &jobID
	return true, nil
}

func (m *mockCampaignRepo) GetShippingByID(_ context.Context, id int) (*model.CampaignShipping, error) {
	s, ok := m.shippings[id]
	if !ok {
		return nil, appErrors.NewShippingNotFound(id)
	}
	cp := *s
	return &cp, nil
}

func (m *mockCampaignRepo) MarkShippingDelivered(_ context.Context, id int, at time.Time) error {
	if s, ok := m.shippings[id]; ok && s.DeliveredAt == nil {
		s.DeliveredAt = &at
	}
	return nil
}

func (m *mockCampaignRepo) MarkShippingConfirmationRequested(_ context.Context, id int, at time.Time) error {
	if s, ok := m.shippings[id]; ok && s.ConfirmationRequestedAt == nil {
		s.ConfirmationRequestedAt = &at
	}
	return nil
}

func (m *mockCampaignRepo) CountShippingDelivered(_ context.Context, campaignID int) (int, error) {
	n := 0
	for _, s := range m.shippings {
		if s.CampaignID == campaignID && s.DeliveredAt != nil {
			n++
		}
	}
	return n, nil
}

type mockContactRepo struct {
	items []model.ContactListItem

	// countErr fails the next CountValidItems call once, simulating a
	// transient read error.
	countErr error
}

func (m *mockContactRepo) GetListItem(_ context.Context, id int) (*model.ContactListItem, error) {
	for _, item := range m.items {
		if item.ID == id {
			cp := item
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockContactRepo) ListValidItems(_ context.Context, contactListID int) ([]model.ContactListItem, error) {
	var out []model.ContactListItem
	for _, item := range m.items {
		if item.ContactListID == contactListID && item.IsWhatsappValid {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockContactRepo) CountValidItems(ctx context.Context, contactListID int) (int, error) {
	if m.countErr != nil {
		err := m.countErr
		m.countErr = nil
		return 0, err
	}
	items, _ := m.ListValidItems(ctx, contactListID)
	return len(items), nil
}

type mockSettingRepo struct {
	pacing model.PacingSettings
}

func (m *mockSettingRepo) Pacing(context.Context, int) (model.PacingSettings, error) {
	return m.pacing, nil
}

type mockTicketRepo struct {
	tickets map[string]*model.Ticket
	nextID  int
}

func newMockTicketRepo() *mockTicketRepo {
	return &mockTicketRepo{tickets: map[string]*model.Ticket{}}
}

func ticketKey(contactID, whatsappID, companyID int) string {
	return fmt.Sprintf("%d/%d/%d", contactID, whatsappID, companyID)
}

func (m *mockTicketRepo) FindOrCreate(_ context.Context, contactID, whatsappID, companyID int, status string) (*model.Ticket, error) {
	key := ticketKey(contactID, whatsappID, companyID)
	if t, ok := m.tickets[key]; ok {
		cp := *t
		return &cp, nil
	}
	m.nextID++
	t := &model.Ticket{ID: m.nextID, ContactID: contactID, WhatsappID: whatsappID, CompanyID: companyID, Status: status}
	m.tickets[key] = t
	cp := *t
	return &cp, nil
}

func (m *mockTicketRepo) UpdateStatus(_ context.Context, id int, status string) error {
	for _, t := range m.tickets {
		if t.ID == id {
			t.Status = status
		}
	}
	return nil
}

type sentMessage struct {
	number  string
	body    string
	media   string
	caption string
}

type mockSession struct {
	sent    []sentMessage
	textErr error
}

func (m *mockSession) SendText(_ context.Context, number, body string) error {
	if m.textErr != nil {
		return m.textErr
	}
	m.sent = append(m.sent, sentMessage{number: number, body: body})
	return nil
}

func (m *mockSession) SendMedia(_ context.Context, number, path, caption string) error {
	m.sent = append(m.sent, sentMessage{number: number, media: path, caption: caption})
	return nil
}

type mockResolver struct {
	session *mockSession
	err     error
}

func (m *mockResolver) DefaultSession(context.Context, int) (channel.Session, error) {
	return m.resolve()
}

func (m *mockResolver) SessionFor(context.Context, int) (channel.Session, error) {
	return m.resolve()
}

func (m *mockResolver) resolve() (channel.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

type publishedEvent struct {
	companyID int
	event     string
}

type mockPublisher struct {
	events []publishedEvent
}

func (m *mockPublisher) Publish(companyID int, event string, _ any) {
	m.events = append(m.events, publishedEvent{companyID: companyID, event: event})
}

type capturedError struct {
	err  error
	tags map[string]string
}

type mockReporter struct {
	captured []capturedError
}

func (m *mockReporter) Capture(err error, tags map[string]string) {
	m.captured = append(m.captured, capturedError{err: err, tags: tags})
}

type mockUserRepo struct {
	users   []model.User
	offline []int
}

func (m *mockUserRepo) ListStaleOnline(_ context.Context, olderThan time.Time) ([]model.User, error) {
	var out []model.User
	for _, u := range m.users {
		if u.Online && u.UpdatedAt.Before(olderThan) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) SetOffline(_ context.Context, id int) error {
	m.offline = append(m.offline, id)
	for i := range m.users {
		if m.users[i].ID == id {
			m.users[i].Online = false
		}
	}
	return nil
}

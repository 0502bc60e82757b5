// Package queue implements named, durable, ordered work queues on top of
// Postgres, plus the repeating triggers that feed them.
//
// Jobs are rows in the queue_jobs table. Workers claim the oldest eligible
// row with FOR UPDATE SKIP LOCKED, so any number of workers can share a queue
// without double-claiming. Eligibility is available_at <= now(), which is how
// delayed jobs are expressed; ordering among eligible jobs is FIFO by
// eligibility time, not insertion time. Failed handlers are retried with a
// linear backoff until max_attempts, after which the failure is surfaced to
// the error reporter and the job parks in the failed state.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ferreiralabs/zapcrm-backend/internal/report"
)

const (
	defaultMaxAttempts = 3
	defaultPollEvery   = time.Second
	retryBackoffStep   = 500 * time.Millisecond
)

// Job is one claimed unit of work handed to a handler.
type Job struct {
	ID          int64
	PublicID    string
	Queue       string
	Type        string
	Payload     []byte
	Attempts    int
	MaxAttempts int

	removeOnComplete bool
}

// HandlerFunc processes one claimed job. A returned error triggers the
// queue's retry policy.
type HandlerFunc func(ctx context.Context, job Job) error

// JSON adapts a typed handler into a HandlerFunc, decoding the job payload
// into the handler's own payload struct. Each job type registered on a queue
// carries exactly one payload type.
func JSON[T any](fn func(ctx context.Context, payload T) error) HandlerFunc {
	return func(ctx context.Context, job Job) error {
		var p T
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", job.Type, err)
		}
		return fn(ctx, p)
	}
}

// RateLimit caps handler executions queue-wide: at most Max started per
// Window. Used on the send queues, where the bound is provider-imposed.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// Options configures one named queue.
type Options struct {
	Concurrency int
	PollEvery   time.Duration
	Limit       *RateLimit
}

// EnqueueOptions configures one job.
type EnqueueOptions struct {
	// Delay is the minimum wait before the job becomes eligible.
	Delay time.Duration
	// MaxAttempts bounds retries; zero means the default policy. Use 1 for
	// jobs that must never be retried by the queue.
	MaxAttempts int
	// RemoveOnComplete deletes the job row after a successful run instead of
	// keeping it as history.
	RemoveOnComplete bool
	// PublicID overrides the generated job identifier. Callers that must
	// record the id atomically before the job row exists supply their own.
	PublicID string
}

// Queue is an explicit handle to one named queue. Handles are constructed
// once at process start through the Manager and passed to every component
// that enqueues or registers handlers.
type Queue struct {
	name     string
	store    jobStore
	log      zerolog.Logger
	reporter report.Reporter
	opts     Options
	limiter  *rate.Limiter

	mu       sync.Mutex
	handlers map[string]HandlerFunc

	wakeup chan struct{}
}

// Manager owns the queue handles, the shared worker context and the cron
// scheduler behind repeating triggers.
type Manager struct {
	db       *sql.DB
	log      zerolog.Logger
	reporter report.Reporter
	cron     *cron.Cron

	mu     sync.Mutex
	queues map[string]*Queue
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(db *sql.DB, log zerolog.Logger, reporter report.Reporter) *Manager {
	return &Manager{
		db:       db,
		log:      log.With().Str("component", "queue").Logger(),
		reporter: reporter,
		cron:     cron.New(),
		queues:   make(map[string]*Queue),
	}
}

// Queue returns the handle for name, creating it on first use. Repeated calls
// with the same name return the same handle, preserving single-instance-per-
// queue semantics without hidden globals.
func (m *Manager) Queue(name string, opts Options) *Queue {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.queues[name]; ok {
		return q
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PollEvery <= 0 {
		opts.PollEvery = defaultPollEvery
	}
	q := &Queue{
		name:     name,
		store:    &sqlStore{db: m.db},
		log:      m.log.With().Str("queue", name).Logger(),
		reporter: m.reporter,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
		wakeup:   make(chan struct{}, opts.Concurrency),
	}
	if opts.Limit != nil && opts.Limit.Max > 0 && opts.Limit.Window > 0 {
		perSecond := float64(opts.Limit.Max) / opts.Limit.Window.Seconds()
		q.limiter = rate.NewLimiter(rate.Limit(perSecond), opts.Limit.Max)
	}
	m.queues[name] = q
	return q
}

// Every registers a repeating trigger that fires fn on a fixed interval once
// the manager starts. Trigger errors go to the reporter, never up.
func (m *Manager) Every(name string, every time.Duration, fn func(ctx context.Context) error) error {
	spec := fmt.Sprintf("@every %s", every)
	_, err := m.cron.AddFunc(spec, func() {
		ctx := m.runCtx()
		if ctx.Err() != nil {
			return
		}
		if err := fn(ctx); err != nil {
			m.reporter.Capture(err, map[string]string{"trigger": name})
		}
	})
	if err != nil {
		return fmt.Errorf("register trigger %s: %w", name, err)
	}
	return nil
}

func (m *Manager) runCtx() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

// Start launches the worker pools and the trigger scheduler.
func (m *Manager) Start(parent context.Context) {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.ctx = ctx
	m.cancel = cancel
	queues := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.Unlock()

	for _, q := range queues {
		for i := 0; i < q.opts.Concurrency; i++ {
			m.wg.Add(1)
			workerID := fmt.Sprintf("%s-%d", q.name, i)
			go func(q *Queue, id string) {
				defer m.wg.Done()
				q.worker(ctx, id)
			}(q, workerID)
		}
		q.log.Info().Int("concurrency", q.opts.Concurrency).Msg("queue started")
	}
	m.cron.Start()
}

// Stop halts the triggers and drains the workers, waiting up to timeout.
func (m *Manager) Stop(timeout time.Duration) {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}

	cronCtx := m.cron.Stop()
	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.log.Info().Msg("all queue workers exited")
	case <-time.After(timeout):
		m.log.Warn().Dur("timeout", timeout).Msg("queue shutdown timed out, some workers may still be running")
	}
	<-cronCtx.Done()
}

// Handle binds exactly one handler per (queue, jobType). A second
// registration for the same type is a programming error and is rejected.
func (q *Queue) Handle(jobType string, h HandlerFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.handlers[jobType]; ok {
		return fmt.Errorf("queue %s: handler for %s already registered", q.name, jobType)
	}
	q.handlers[jobType] = h
	return nil
}

func (q *Queue) handler(jobType string) (HandlerFunc, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	h, ok := q.handlers[jobType]
	return h, ok
}

// Enqueue persists a job and returns its public identifier.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload any, opts EnqueueOptions) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", jobType, err)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}

	publicID := opts.PublicID
	if publicID == "" {
		publicID = uuid.NewString()
	}
	availableAt := time.Now().Add(opts.Delay)
	if err := q.store.insert(ctx, q.name, publicID, jobType, body, availableAt, opts); err != nil {
		return "", err
	}

	if opts.Delay <= 0 {
		select {
		case q.wakeup <- struct{}{}:
		default:
		}
	}
	return publicID, nil
}

func (q *Queue) worker(ctx context.Context, workerID string) {
	ticker := time.NewTicker(q.opts.PollEvery)
	defer ticker.Stop()

	for {
		for ctx.Err() == nil && q.runNext(ctx, workerID) {
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-q.wakeup:
		}
	}
}

// runNext claims and executes at most one job. It returns true when a job was
// claimed, so callers keep draining until the queue is empty.
func (q *Queue) runNext(ctx context.Context, workerID string) bool {
	job, err := q.store.claim(ctx, q.name, workerID)
	if err != nil {
		q.log.Error().Err(err).Msg("claim failed")
		return false
	}
	if job == nil {
		return false
	}

	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			// Shutting down mid-claim: hand the job back untouched.
			if relErr := q.store.release(job); relErr != nil {
				q.log.Error().Err(relErr).Int64("job", job.ID).Msg("release failed")
			}
			return false
		}
	}

	start := time.Now()
	err = q.execute(ctx, job)
	if err == nil {
		if err := q.store.complete(job); err != nil {
			q.log.Error().Err(err).Int64("job", job.ID).Msg("complete failed")
		}
		q.log.Debug().Str("type", job.Type).Int64("job", job.ID).Dur("dur", time.Since(start)).Msg("job completed")
		return true
	}

	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		if dbErr := q.store.exhaust(job, err); dbErr != nil {
			q.log.Error().Err(dbErr).Int64("job", job.ID).Msg("exhaust failed")
		}
		q.reporter.Capture(err, map[string]string{
			"queue":    q.name,
			"job_type": job.Type,
			"job_id":   job.PublicID,
			"attempts": fmt.Sprintf("%d", attempts),
		})
		q.log.Error().Err(err).Str("type", job.Type).Int64("job", job.ID).Int("attempts", attempts).Msg("job permanently failed")
		return true
	}

	backoff := time.Duration(attempts) * retryBackoffStep
	if dbErr := q.store.retry(job, err, backoff); dbErr != nil {
		q.log.Error().Err(dbErr).Int64("job", job.ID).Msg("retry scheduling failed")
	}
	q.log.Warn().Err(err).Str("type", job.Type).Int64("job", job.ID).Int("attempt", attempts).Dur("backoff", backoff).Msg("job failed, retry scheduled")
	return true
}

func (q *Queue) execute(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	h, ok := q.handler(job.Type)
	if !ok {
		return fmt.Errorf("queue %s: no handler for job type %s", q.name, job.Type)
	}
	return h(ctx, *job)
}

package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Job rows live in queue_jobs:
//
//	id bigserial, public_id uuid, queue text, job_type text, payload jsonb,
//	status text, attempts int, max_attempts int, available_at timestamptz,
//	locked_by text, remove_on_complete bool, last_error text,
//	created_at timestamptz, updated_at timestamptz
const (
	statusPending   = "pending"
	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// jobStore persists job state transitions. Split from the worker loop so the
// retry and exhaustion policy can be exercised without a database.
type jobStore interface {
	insert(ctx context.Context, queueName, publicID, jobType string, payload []byte, availableAt time.Time, opts EnqueueOptions) error
	claim(ctx context.Context, queueName, workerID string) (*Job, error)
	complete(job *Job) error
	retry(job *Job, cause error, backoff time.Duration) error
	exhaust(job *Job, cause error) error
	release(job *Job) error
}

type sqlStore struct {
	db *sql.DB
}

func (s *sqlStore) insert(ctx context.Context, queueName, publicID, jobType string, payload []byte, availableAt time.Time, opts EnqueueOptions) error {
	query := `
        INSERT INTO queue_jobs
            (public_id, queue, job_type, payload, status, attempts, max_attempts, available_at, remove_on_complete, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, NOW(), NOW())
    `
	_, err := s.db.ExecContext(ctx, query,
		publicID, queueName, jobType, payload, statusPending,
		opts.MaxAttempts, availableAt, opts.RemoveOnComplete,
	)
	if err != nil {
		return fmt.Errorf("enqueue %s on %s: %w", jobType, queueName, err)
	}
	return nil
}

// claim transactionally takes the oldest eligible job of the queue. SKIP
// LOCKED keeps concurrent workers from blocking on each other's claims.
func (s *sqlStore) claim(ctx context.Context, queueName, workerID string) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	query := `
        SELECT id, public_id, job_type, payload, attempts, max_attempts, remove_on_complete
        FROM queue_jobs
        WHERE queue = $1
          AND status = $2
          AND available_at <= NOW()
        ORDER BY available_at, id
        LIMIT 1
        FOR UPDATE SKIP LOCKED
    `
	job := &Job{Queue: queueName}
	err = tx.QueryRowContext(ctx, query, queueName, statusPending).Scan(
		&job.ID, &job.PublicID, &job.Type, &job.Payload, &job.Attempts, &job.MaxAttempts, &job.removeOnComplete,
	)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE queue_jobs SET status=$1, locked_by=$2, updated_at=NOW() WHERE id=$3`,
		statusRunning, workerID, job.ID,
	)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *sqlStore) complete(job *Job) error {
	if job.removeOnComplete {
		_, err := s.db.Exec(`DELETE FROM queue_jobs WHERE id=$1`, job.ID)
		return err
	}
	_, err := s.db.Exec(
		`UPDATE queue_jobs SET status=$1, locked_by=NULL, updated_at=NOW() WHERE id=$2`,
		statusCompleted, job.ID,
	)
	return err
}

func (s *sqlStore) retry(job *Job, cause error, backoff time.Duration) error {
	query := `
        UPDATE queue_jobs
        SET status=$1, attempts=attempts+1, available_at=NOW()+$2::interval, last_error=$3, locked_by=NULL, updated_at=NOW()
        WHERE id=$4
    `
	_, err := s.db.Exec(query, statusPending, backoff.String(), cause.Error(), job.ID)
	return err
}

func (s *sqlStore) exhaust(job *Job, cause error) error {
	query := `
        UPDATE queue_jobs
        SET status=$1, attempts=attempts+1, last_error=$2, locked_by=NULL, updated_at=NOW()
        WHERE id=$3
    `
	_, err := s.db.Exec(query, statusFailed, cause.Error(), job.ID)
	return err
}

// release hands a claimed but never-executed job back to the pending state
// without burning an attempt.
func (s *sqlStore) release(job *Job) error {
	_, err := s.db.Exec(
		`UPDATE queue_jobs SET status=$1, locked_by=NULL, updated_at=NOW() WHERE id=$2`,
		statusPending, job.ID,
	)
	return err
}

// QueueStats is one queue's pending/running/failed depth, for the ops
// endpoint.
type QueueStats struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Running int    `json:"running"`
	Failed  int    `json:"failed"`
}

// Stats reports job counts per registered queue.
func (m *Manager) Stats(ctx context.Context) ([]QueueStats, error) {
	m.mu.Lock()
	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	m.mu.Unlock()

	out := make([]QueueStats, 0, len(names))
	for _, name := range names {
		st := QueueStats{Queue: name}
		rows, err := m.db.QueryContext(ctx,
			`SELECT status, COUNT(*) FROM queue_jobs WHERE queue=$1 GROUP BY status`, name)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var status string
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				rows.Close()
				return nil, err
			}
			switch status {
			case statusPending:
				st.Pending = count
			case statusRunning:
				st.Running = count
			case statusFailed:
				st.Failed = count
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

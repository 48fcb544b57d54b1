// Package queue implements the in-process retrying processor for
// outbound channel jobs. One sequential worker drains jobs in enqueue
// order; transient send failures are retried with a fixed delay up to a
// bounded attempt count. Jobs live in memory only: a restart loses the
// backlog, which is an accepted property of this engine.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rotadireta/automation/internal/channel"
	"github.com/rotadireta/automation/internal/domain"
)

// Job status constants
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Job is one queued unit of outbound work. Mutated only by the single
// processing loop; attempts only increase and COMPLETED/FAILED are
// terminal.
type Job struct {
	ID          string    `json:"id"`
	Channel     string    `json:"channel"`
	Destination string    `json:"destination"`
	Subject     string    `json:"subject,omitempty"`
	Payload     string    `json:"payload"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// EnqueueRequest describes a job to enqueue.
type EnqueueRequest struct {
	Channel     string
	Destination string
	Subject     string
	Payload     string
}

// Senders holds the channel senders the queue dispatches to.
type Senders struct {
	Email    channel.EmailSender
	WhatsApp channel.WhatsAppSender
}

// Stats is a snapshot of job counts by status.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// Config holds queue configuration.
type Config struct {
	// MaxAttempts bounds delivery attempts per job (default 3).
	MaxAttempts int
	// RetryDelay is slept before a failed job becomes PENDING again.
	// The single worker blocks for the whole delay; that stall is the
	// reference behavior, kept deliberately.
	RetryDelay time.Duration
	// RetainedJobs bounds how many terminal jobs are kept for status
	// inspection; the oldest terminal jobs are pruned past it. Enqueue
	// itself is unbounded.
	RetainedJobs int
}

// Queue is the sequential outbound send queue.
type Queue struct {
	logger  *slog.Logger
	senders Senders

	maxAttempts  int
	retryDelay   time.Duration
	retainedJobs int

	mu    sync.Mutex
	jobs  map[string]*Job
	order []string
	wake  chan struct{}
}

// New creates a Queue. Start must be called before jobs are processed.
func New(cfg Config, senders Senders, logger *slog.Logger) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.RetainedJobs <= 0 {
		cfg.RetainedJobs = 1024
	}

	return &Queue{
		logger:       logger,
		senders:      senders,
		maxAttempts:  cfg.MaxAttempts,
		retryDelay:   cfg.RetryDelay,
		retainedJobs: cfg.RetainedJobs,
		jobs:         make(map[string]*Job),
		order:        make([]string, 0, 64),
		wake:         make(chan struct{}, 1),
	}
}

// Enqueue appends a PENDING job and returns its id. It always succeeds.
func (q *Queue) Enqueue(req EnqueueRequest) string {
	job := &Job{
		ID:          uuid.New().String(),
		Channel:     req.Channel,
		Destination: req.Destination,
		Subject:     req.Subject,
		Payload:     req.Payload,
		Status:      StatusPending,
		EnqueuedAt:  time.Now(),
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	q.mu.Unlock()

	q.logger.Debug("Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("channel", job.Channel),
		slog.String("destination", job.Destination),
	)

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return job.ID
}

// Job returns a copy of the job with the given id.
func (q *Queue) Job(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Stats returns a non-blocking snapshot of counts by status.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stats Stats
	for _, job := range q.jobs {
		switch job.Status {
		case StatusPending:
			stats.Pending++
		case StatusProcessing:
			stats.Processing++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
	}
	stats.Total = len(q.jobs)
	return stats
}

// Start runs the processing loop until ctx is canceled. It must be
// called at most once; the loop never runs two iterations concurrently.
func (q *Queue) Start(ctx context.Context) {
	q.logger.Info("Send queue started",
		slog.Int("max_attempts", q.maxAttempts),
		slog.Duration("retry_delay", q.retryDelay),
	)

	for {
		job := q.claimOldestPending()
		if job == nil {
			select {
			case <-ctx.Done():
				q.logger.Info("Send queue stopped")
				return
			case <-q.wake:
			}
			continue
		}

		q.process(ctx, job)

		if ctx.Err() != nil {
			q.logger.Info("Send queue stopped")
			return
		}
	}
}

// claimOldestPending marks the oldest PENDING job PROCESSING and
// returns it, or nil when nothing is pending.
func (q *Queue) claimOldestPending() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		job, ok := q.jobs[id]
		if !ok || job.Status != StatusPending {
			continue
		}
		job.Status = StatusProcessing
		return job
	}
	return nil
}

func (q *Queue) process(ctx context.Context, job *Job) {
	q.mu.Lock()
	job.Attempts++
	attempts := job.Attempts
	q.mu.Unlock()

	err := q.dispatch(ctx, job)
	if err == nil {
		q.finish(job, StatusCompleted, "")
		q.logger.Info("Job completed",
			slog.String("job_id", job.ID),
			slog.Int("attempts", attempts),
		)
		return
	}

	if attempts >= q.maxAttempts {
		q.finish(job, StatusFailed, err.Error())
		q.logger.Warn("Job failed permanently",
			slog.String("job_id", job.ID),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		return
	}

	q.logger.Warn("Job attempt failed, will retry",
		slog.String("job_id", job.ID),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)

	// Sequential worker: the retry delay stalls the whole queue on
	// purpose, matching the reference single-worker behavior.
	timer := time.NewTimer(q.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	q.mu.Lock()
	job.Status = StatusPending
	job.LastError = err.Error()
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// dispatch invokes the sender for the job's channel. No timeout is
// imposed here: a stuck sender stalls the queue, a documented
// limitation of the sequential design.
func (q *Queue) dispatch(ctx context.Context, job *Job) error {
	switch job.Channel {
	case domain.ChannelWhatsApp:
		if q.senders.WhatsApp == nil {
			return fmt.Errorf("whatsapp sender not configured")
		}
		return q.senders.WhatsApp.SendWhatsApp(ctx, job.Destination, job.Payload)
	case domain.ChannelEmail:
		if q.senders.Email == nil {
			return fmt.Errorf("email sender not configured")
		}
		return q.senders.Email.SendEmail(ctx, job.Destination, job.Subject, job.Payload)
	default:
		return fmt.Errorf("unknown channel %q", job.Channel)
	}
}

func (q *Queue) finish(job *Job, status, lastError string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job.Status = status
	job.LastError = lastError
	q.pruneLocked()
}

// pruneLocked drops the oldest terminal jobs past the retention bound.
// Non-terminal jobs are never pruned.
func (q *Queue) pruneLocked() {
	terminal := 0
	for _, job := range q.jobs {
		if job.Status == StatusCompleted || job.Status == StatusFailed {
			terminal++
		}
	}
	if terminal <= q.retainedJobs {
		return
	}

	excess := terminal - q.retainedJobs
	kept := q.order[:0]
	for _, id := range q.order {
		job := q.jobs[id]
		if excess > 0 && job != nil && (job.Status == StatusCompleted || job.Status == StatusFailed) {
			delete(q.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}

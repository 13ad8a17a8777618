package scraping

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rentdash/server/internal/metrics"
	"rentdash/server/internal/models"
	"rentdash/server/internal/queue"
	"rentdash/server/internal/scheduler"
)

var (
	ErrNoSources     = errors.New("no sources selected")
	ErrTriggerFailed = errors.New("failed to start scrape job")
	ErrJobActive     = errors.New("a scrape job is already active")
	ErrClosed        = errors.New("controller closed")
)

// JobError is a job that ended with status error, or whose status could no
// longer be read.
type JobError struct {
	JobID   string
	Message string
}

func (e *JobError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("scrape job %s failed", e.JobID)
	}
	return fmt.Sprintf("scrape job %s failed: %s", e.JobID, e.Message)
}

// State of the job workflow as seen by the dashboard
type State string

const (
	StateIdle       State = "idle"
	StateTriggering State = "triggering"
	StatePolling    State = "polling"
	StateComplete   State = "complete"
	StateError      State = "error"
)

// Active reports whether a trigger or poll is in progress
func (s State) Active() bool {
	return s == StateTriggering || s == StatePolling
}

// JobClient is the job-control side of the service
type JobClient interface {
	TriggerScrape(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeJob, error)
	ScrapeStatus(ctx context.Context, jobID string) (*models.ScrapeJob, error)
}

// Publisher receives dashboard events
type Publisher interface {
	Push(event queue.Event) error
}

type Snapshot struct {
	State     State             `json:"state"`
	Job       *models.ScrapeJob `json:"job,omitempty"`
	LastError string            `json:"last_error,omitempty"`
}

type Options struct {
	PollInterval time.Duration
	// NewTicker drives polling; nil uses a real ticker
	NewTicker scheduler.TickerFactory
}

// Controller triggers scrape jobs and polls them until they finish. At most
// one job is tracked at a time.
type Controller struct {
	client    JobClient
	publisher Publisher
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	opts      Options

	// base is cancelled by Close and parents every poll task
	base   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	job       *models.ScrapeJob
	lastError error
	task      *scheduler.Task
	closed    bool
	listeners []func(Snapshot)
}

func NewController(client JobClient, publisher Publisher, opts Options, logger *logrus.Logger, m *metrics.Metrics) *Controller {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 1200 * time.Millisecond
	}

	base, cancel := context.WithCancel(context.Background())
	return &Controller{
		client:    client,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		opts:      opts,
		base:      base,
		cancel:    cancel,
		state:     StateIdle,
	}
}

// Subscribe registers fn to receive every state change. fn is called
// without the controller lock held, in the goroutine making the change.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{State: c.state}
	if c.job != nil {
		job := *c.job
		job.Sources = append([]string(nil), c.job.Sources...)
		s.Job = &job
	}
	if c.lastError != nil {
		s.LastError = c.lastError.Error()
	}
	return s
}

// LastError is the error that ended the last trigger or job, if any
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

func (c *Controller) publish(s Snapshot) {
	c.mu.Lock()
	listeners := c.listeners
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

// Trigger starts a job and begins polling it. An empty source list is
// rejected before anything is sent. On failure the controller returns to
// idle and the error, wrapping ErrTriggerFailed, is kept as LastError.
func (c *Controller) Trigger(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeJob, error) {
	if len(req.Sources) == 0 {
		return nil, ErrNoSources
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.state.Active() {
		c.mu.Unlock()
		return nil, ErrJobActive
	}
	c.state = StateTriggering
	c.job = nil
	c.lastError = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	c.logger.WithFields(logrus.Fields{
		"sources":   req.Sources,
		"max_pages": req.MaxPages,
	}).Info("Triggering scrape job")

	job, err := c.client.TriggerScrape(ctx, req)
	if err == nil && (job == nil || job.JobID == "") {
		err = errors.New("no job id returned")
	}

	c.mu.Lock()
	if err != nil {
		c.state = StateIdle
		c.lastError = fmt.Errorf("%w: %w", ErrTriggerFailed, err)
		failure := c.lastError
		snap = c.snapshotLocked()
		c.mu.Unlock()

		c.logger.WithError(err).Error("Scrape trigger failed")
		c.publish(snap)
		return nil, failure
	}
	if c.closed {
		c.state = StateIdle
		c.mu.Unlock()
		return nil, ErrClosed
	}

	c.state = StatePolling
	c.job = job
	// the service may already report a terminal status
	finished := c.applyLocked(job)
	if !finished {
		c.startPollLocked(job.JobID)
	}
	snap = c.snapshotLocked()
	accepted := *snap.Job
	c.mu.Unlock()

	c.logger.WithField("job_id", job.JobID).Info("Scrape job accepted")
	c.publish(snap)
	if finished {
		c.finished(snap)
	}
	return &accepted, nil
}

func (c *Controller) startPollLocked(jobID string) {
	task := scheduler.NewTask("scrape-poll:"+jobID, c.opts.PollInterval, c.opts.NewTicker, c.logger)
	c.task = task
	if err := task.Start(c.base, c.poll(task, jobID)); err != nil {
		c.logger.WithError(err).WithField("job_id", jobID).Error("Failed to start poll task")
		c.task = nil
	}
}

// poll returns the tick function of one job's poll task. Each tick asks
// the service for the job status and applies it. The task ends itself on a
// terminal status or a failed poll.
func (c *Controller) poll(task *scheduler.Task, jobID string) scheduler.TickFunc {
	return func(ctx context.Context, _ time.Time) bool {
		c.metrics.PollTick()
		job, err := c.client.ScrapeStatus(ctx, jobID)

		c.mu.Lock()
		if c.task != task {
			c.mu.Unlock()
			return false
		}

		if err != nil {
			if ctx.Err() != nil {
				c.mu.Unlock()
				return false
			}
			c.state = StateError
			c.lastError = &JobError{JobID: jobID, Message: err.Error()}
			c.task = nil
			snap := c.snapshotLocked()
			c.mu.Unlock()

			c.logger.WithError(err).WithField("job_id", jobID).Error("Scrape status poll failed")
			c.publish(snap)
			c.finished(snap)
			return false
		}

		finished := c.applyLocked(job)
		if finished {
			c.task = nil
		}
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.publish(snap)
		if finished {
			c.finished(snap)
		}
		return !finished
	}
}

// applyLocked merges a status reply into the tracked job. Replies for
// another job, with an unknown status, or that would move status or
// progress backwards are ignored. It reports whether the job is now
// finished.
func (c *Controller) applyLocked(update *models.ScrapeJob) bool {
	cur := c.job
	fields := logrus.Fields{"job_id": cur.JobID, "status": update.Status}

	switch {
	case update.JobID != "" && update.JobID != cur.JobID:
		c.logger.WithFields(fields).WithField("reply_job_id", update.JobID).Warn("Ignoring status for another job")
		return false
	case update.Status.Rank() < 0:
		c.logger.WithFields(fields).Warn("Ignoring unknown job status")
		return false
	case update != cur && update.Status.Rank() < cur.Status.Rank():
		c.logger.WithFields(fields).Debug("Ignoring status regression")
		return false
	case update != cur && !update.Status.Terminal() && update.Progress < cur.Progress:
		c.logger.WithFields(fields).WithField("progress", update.Progress).Debug("Ignoring progress regression")
		return false
	}

	next := *update
	next.JobID = cur.JobID
	if len(next.Sources) == 0 {
		next.Sources = cur.Sources
	}
	if next.MaxPages == 0 {
		next.MaxPages = cur.MaxPages
	}
	if next.QueuedAt == nil {
		next.QueuedAt = cur.QueuedAt
	}
	if next.StartedAt == nil {
		next.StartedAt = cur.StartedAt
	}
	if next.Progress < cur.Progress {
		next.Progress = cur.Progress
	}
	c.job = &next

	switch next.Status {
	case models.JobComplete:
		c.state = StateComplete
		return true
	case models.JobError:
		c.state = StateError
		c.lastError = &JobError{JobID: next.JobID, Message: next.Error}
		return true
	}
	return false
}

// finished records a terminal job and tells the dashboard about it
func (c *Controller) finished(s Snapshot) {
	status := string(s.State)
	fields := logrus.Fields{"state": s.State}
	event := queue.Event{Kind: queue.KindJobFinished, Status: status}
	if s.Job != nil {
		fields["job_id"] = s.Job.JobID
		fields["collected"] = s.Job.Collected
		event.JobID = s.Job.JobID
	}

	c.metrics.JobFinished(status)
	if s.State == StateError {
		c.logger.WithFields(fields).WithField("error", s.LastError).Error("Scrape job failed")
	} else {
		c.logger.WithFields(fields).Info("Scrape job complete")
	}
	c.notify(event)
}

func (c *Controller) notify(event queue.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Push(event); err != nil {
		c.logger.WithError(err).WithField("kind", event.Kind).Warn("Failed to publish dashboard event")
	}
}

// Dismiss acknowledges a finished job and returns to idle. Dismissing a
// completed job asks the dashboard to reload. It is a no-op when idle.
func (c *Controller) Dismiss() error {
	c.mu.Lock()
	if c.state.Active() {
		c.mu.Unlock()
		return ErrJobActive
	}
	if c.state == StateIdle {
		c.mu.Unlock()
		return nil
	}

	completed := c.state == StateComplete
	var jobID string
	if c.job != nil {
		jobID = c.job.JobID
	}
	c.state = StateIdle
	c.job = nil
	c.lastError = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	if completed {
		c.notify(queue.Event{Kind: queue.KindReload, JobID: jobID, Reason: "scrape complete"})
	}
	return nil
}

// Close stops any poll task and rejects further triggers. A job still
// running on the service is left alone; the controller stops tracking it
// and returns to idle with ErrClosed as LastError.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	task := c.task
	c.task = nil
	abandoned := c.state.Active()
	var snap Snapshot
	if abandoned {
		c.state = StateIdle
		c.job = nil
		c.lastError = ErrClosed
		snap = c.snapshotLocked()
	}
	c.mu.Unlock()

	c.cancel()
	if task != nil {
		task.Stop()
	}
	if abandoned {
		c.publish(snap)
	}
}

// Polling reports whether a poll task is currently held
func (c *Controller) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task != nil
}

package models

import "time"

// JobStatus is the status reported by the job-control service
type JobStatus string

const (
	JobQueued   JobStatus = "queued"
	JobRunning  JobStatus = "running"
	JobComplete JobStatus = "complete"
	JobError    JobStatus = "error"
)

// Terminal reports whether no further polling should happen
func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobError
}

// Rank orders statuses along the only allowed direction of travel
func (s JobStatus) Rank() int {
	switch s {
	case JobQueued:
		return 0
	case JobRunning:
		return 1
	case JobComplete, JobError:
		return 2
	default:
		return -1
	}
}

// ScrapeRequest is the body of a trigger request
type ScrapeRequest struct {
	Sources         []string `json:"sources"`
	MaxPages        int      `json:"max_pages"`
	IncludeFacebook bool     `json:"include_facebook"`
	Headless        bool     `json:"headless"`
}

type ScrapeJob struct {
	JobID         string     `json:"job_id"`
	Status        JobStatus  `json:"status"`
	Progress      int        `json:"progress"`
	CurrentSource string     `json:"current_source,omitempty"`
	CurrentPage   int        `json:"current_page,omitempty"`
	Collected     int        `json:"collected"`
	Error         string     `json:"error,omitempty"`
	Sources       []string   `json:"sources,omitempty"`
	MaxPages      int        `json:"max_pages,omitempty"`
	QueuedAt      *time.Time `json:"queued_at,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

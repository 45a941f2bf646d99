package interfaces

import (
	"context"
	"time"
)

// JobStatus is the current state of a scheduled maintenance job
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	IsRunning   bool       `json:"is_running"`
	LastError   string     `json:"last_error,omitempty"`
}

// SchedulerService runs named jobs on cron schedules
type SchedulerService interface {
	// RegisterJob adds a job; schedule is a standard cron expression or descriptor
	RegisterJob(name string, schedule string, description string, handler func(ctx context.Context) error) error

	// Start begins firing registered jobs
	Start() error

	// Stop waits for running jobs and stops the scheduler
	Stop() error

	// TriggerJob runs a job immediately on its own goroutine
	TriggerJob(name string) error

	// GetJobStatus returns the status of a specific job
	GetJobStatus(name string) (*JobStatus, error)

	// GetAllJobStatuses returns all job statuses
	GetAllJobStatuses() map[string]*JobStatus
}

package orchestrator

import (
	"time"

	"gifconv/internal/transcoder"
)

// State is the conversion state of an Orchestrator.
type State int

const (
	StateIdle State = iota
	StateBusy
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// JobKind distinguishes probe and conversion jobs.
type JobKind string

const (
	JobProbe   JobKind = "probe"
	JobConvert JobKind = "convert"
)

// JobStatus tracks a job through the worker.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one unit of work. Values handed to callers are copies.
type Job struct {
	ID         string
	Kind       JobKind
	Status     JobStatus
	Request    transcoder.Request
	Info       transcoder.VideoInfo
	Err        error
	QueuedAt   time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the job finished without error.
func (j Job) Succeeded() bool {
	return j.Status == JobSucceeded
}

// Outcome returns "success" for successful jobs and the failure kind otherwise.
func (j Job) Outcome() string {
	switch j.Status {
	case JobSucceeded:
		return "success"
	case JobFailed:
		return FailureKind(j.Err)
	default:
		return ""
	}
}

// ErrorMessage returns the failure message or "".
func (j Job) ErrorMessage() string {
	if j.Err == nil {
		return ""
	}
	return j.Err.Error()
}

// Duration returns the run time of a finished job.
func (j Job) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// Snapshot is a point-in-time view of the orchestrator.
type Snapshot struct {
	State   State
	Current *Job
	Last    *Job
	Queued  int
}

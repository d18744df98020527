package api

import (
	"time"

	"gifconv/internal/deps"
	"gifconv/internal/history"
	"gifconv/internal/orchestrator"
)

// FromJob converts an orchestrator job into its transport form.
func FromJob(job orchestrator.Job) Job {
	out := Job{
		ID:           job.ID,
		Kind:         string(job.Kind),
		Status:       string(job.Status),
		Input:        job.Request.InputPath,
		Output:       job.Request.OutputPath,
		Width:        job.Request.Width,
		Height:       job.Request.Height,
		FrameRate:    job.Request.FrameRate,
		Outcome:      job.Outcome(),
		ErrorMessage: job.ErrorMessage(),
		QueuedAt:     formatTime(job.QueuedAt),
		StartedAt:    formatTime(job.StartedAt),
		FinishedAt:   formatTime(job.FinishedAt),
	}
	if job.Kind == orchestrator.JobProbe && job.Succeeded() {
		out.Info = &VideoInfo{Width: job.Info.Width, Height: job.Info.Height, FrameRate: job.Info.FrameRate}
	}
	return out
}

// FromHistoryEntry converts a persisted job into its transport form.
func FromHistoryEntry(entry history.Entry) Job {
	out := Job{
		ID:           entry.ID,
		Kind:         entry.Kind,
		Status:       entry.Status,
		Input:        entry.InputPath,
		Output:       entry.OutputPath,
		Width:        entry.Width,
		Height:       entry.Height,
		FrameRate:    entry.FrameRate,
		ErrorMessage: entry.ErrorMessage,
		OutputBytes:  entry.OutputBytes,
		QueuedAt:     formatTime(entry.QueuedAt),
		StartedAt:    formatTime(entry.StartedAt),
		FinishedAt:   formatTime(entry.FinishedAt),
	}
	switch entry.Status {
	case string(orchestrator.JobSucceeded):
		out.Outcome = "success"
	case string(orchestrator.JobFailed):
		out.Outcome = entry.ErrorKind
	}
	if entry.ProbedWidth > 0 && entry.ProbedHeight > 0 {
		out.Info = &VideoInfo{Width: entry.ProbedWidth, Height: entry.ProbedHeight, FrameRate: entry.ProbedFrameRate}
	}
	return out
}

// FromDependencies converts dependency checks into their transport form.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

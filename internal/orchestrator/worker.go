package orchestrator

import (
	"context"

	"gifconv/internal/logging"
	"gifconv/internal/transcoder"
)

func (o *Orchestrator) run(ctx context.Context, job *Job) {
	o.mu.Lock()
	job.Status = JobRunning
	job.StartedAt = o.now()
	o.remember(*job)
	started := *job
	o.mu.Unlock()

	if o.observer != nil {
		o.observer.JobStarted(string(started.Kind))
	}
	o.record(ctx, started, true)

	var (
		info transcoder.VideoInfo
		err  error
	)
	switch started.Kind {
	case JobProbe:
		info, err = o.runner.Probe(ctx, started.Request.InputPath)
	case JobConvert:
		err = o.runner.Convert(ctx, started.Request)
	}

	o.mu.Lock()
	job.Info = info
	job.Err = err
	job.FinishedAt = o.now()
	if job.Err != nil {
		job.Status = JobFailed
	} else {
		job.Status = JobSucceeded
	}
	finished := *job
	o.remember(finished)
	if job.Kind == JobConvert {
		o.state = StateDone
		o.current = nil
		o.last = &finished
		o.notifyState(StateDone)
	}
	o.mu.Unlock()

	o.record(ctx, finished, false)
	if o.observer != nil {
		o.observer.JobFinished(string(finished.Kind), finished.Outcome(), finished.Duration())
	}
	o.logResult(finished)
	o.publish(finished)
}

func (o *Orchestrator) record(ctx context.Context, job Job, start bool) {
	if o.recorder == nil {
		return
	}
	var err error
	if start {
		err = o.recorder.RecordStart(ctx, job)
	} else {
		err = o.recorder.RecordFinish(ctx, job)
	}
	if err != nil {
		logging.WarnWithContext(o.logger, "failed to record job history", "history_write_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job is missing from history"),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and disk space"),
		)
	}
}

func (o *Orchestrator) logResult(job Job) {
	attrs := []logging.Attr{
		logging.String(logging.FieldJobID, job.ID),
		logging.String("kind", string(job.Kind)),
		logging.String("input", job.Request.InputPath),
		logging.Duration("elapsed", job.Duration()),
	}
	if job.Succeeded() {
		o.logger.Info("job finished", logging.Args(attrs...)...)
		return
	}
	attrs = append(attrs, logging.Error(job.Err))
	switch FailureKind(job.Err) {
	case KindProvisioning:
		logging.ErrorWithContext(o.logger, "job failed", "job_failed_provisioning", attrs...)
	default:
		attrs = append(attrs, logging.String(logging.FieldImpact, "the job produced no result"))
		logging.WarnWithContext(o.logger, "job failed", "job_failed_"+FailureKind(job.Err), attrs...)
	}
}

// publish delivers job on the results channel, dropping the oldest pending
// result when the buffer is full.
func (o *Orchestrator) publish(job Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	for {
		select {
		case o.results <- job:
			return
		default:
		}
		select {
		case dropped := <-o.results:
			logging.WarnWithContext(o.logger, "result buffer full, dropping oldest result", "result_dropped",
				logging.String(logging.FieldJobID, dropped.ID),
				logging.String(logging.FieldImpact, "an unread job result was discarded"),
			)
		default:
		}
	}
}

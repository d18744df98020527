package orchestrator

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gifconv/internal/logging"
	"gifconv/internal/transcoder"
)

const (
	defaultQueueSize   = 16
	defaultResultSize  = 16
	defaultRecentLimit = 50
)

// Runner performs the subprocess work.
type Runner interface {
	Probe(ctx context.Context, path string) (transcoder.VideoInfo, error)
	Convert(ctx context.Context, req transcoder.Request) error
}

// Recorder persists job lifecycle events.
type Recorder interface {
	RecordStart(ctx context.Context, job Job) error
	RecordFinish(ctx context.Context, job Job) error
}

// Observer receives job and state events, typically for metrics.
type Observer interface {
	JobStarted(kind string)
	JobFinished(kind, outcome string, elapsed time.Duration)
	StateChanged(state string)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder persists jobs through r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithObserver reports job events to obs.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.NewComponentLogger(logger, "orchestrator") }
}

// WithQueueSize sets the number of tasks that may wait for the worker.
func WithQueueSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator runs probe and conversion jobs on one worker goroutine.
type Orchestrator struct {
	runner    Runner
	recorder  Recorder
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
	queueSize int

	mu      sync.Mutex
	state   State
	current *Job
	last    *Job
	recent  []Job
	running bool
	tasks   chan *Job
	stop    chan struct{}
	results chan Job
	closed  bool
	wg      sync.WaitGroup
}

// New constructs an Orchestrator in the Idle state. Call Start before
// submitting work.
func New(runner Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:    runner,
		logger:    logging.NewNop(),
		now:       time.Now,
		queueSize: defaultQueueSize,
		state:     StateIdle,
		results:   make(chan Job, defaultResultSize),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the worker. Cancelling ctx stops intake like Stop does;
// the in-flight job still runs to completion.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.running || o.tasks != nil {
		o.mu.Unlock()
		return
	}
	o.tasks = make(chan *Job, o.queueSize)
	o.stop = make(chan struct{})
	o.running = true
	tasks, stop := o.tasks, o.stop
	o.mu.Unlock()

	jobCtx := context.WithoutCancel(ctx)
	o.wg.Add(2)
	go func() {
		defer o.wg.Done()
		for job := range tasks {
			o.run(jobCtx, job)
		}
	}()
	go func() {
		defer o.wg.Done()
		select {
		case <-ctx.Done():
			o.closeIntake()
		case <-stop:
		}
	}()
	o.logger.Debug("orchestrator started")
}

// Stop stops accepting work, waits for queued and in-flight jobs, and closes
// the Results channel. It is safe to call more than once.
func (o *Orchestrator) Stop() {
	o.closeIntake()
	o.wg.Wait()
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		close(o.results)
		o.closed = true
	}
}

func (o *Orchestrator) closeIntake() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		o.running = false
		close(o.tasks)
		close(o.stop)
	}
}

// Results delivers finished jobs. When the buffer is full, the oldest
// undelivered result is dropped rather than stalling the worker.
func (o *Orchestrator) Results() <-chan Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.results
}

// RequestConvert validates req and queues a conversion, moving the state
// from Idle or Done to Busy. It returns the job ID.
func (o *Orchestrator) RequestConvert(req transcoder.Request) (string, error) {
	req.InputPath = strings.TrimSpace(req.InputPath)
	req.OutputPath = strings.TrimSpace(req.OutputPath)
	if req.InputPath == "" || req.OutputPath == "" {
		return "", ErrMissingPath
	}
	if filepath.Clean(req.InputPath) == filepath.Clean(req.OutputPath) {
		return "", ErrOutputIsInput
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return "", ErrNotRunning
	}
	if o.state == StateBusy {
		return "", ErrBusy
	}

	job := o.newJob(JobConvert, req)
	select {
	case o.tasks <- job:
	default:
		return "", ErrQueueFull
	}
	o.state = StateBusy
	o.current = job
	o.remember(*job)
	o.notifyState(StateBusy)
	o.logger.Info("conversion queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("input", req.InputPath),
		logging.String("output", req.OutputPath),
	)
	return job.ID, nil
}

// RequestProbe queues a probe of path and returns the job ID.
func (o *Orchestrator) RequestProbe(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrMissingPath
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return "", ErrNotRunning
	}
	job := o.newJob(JobProbe, transcoder.Request{InputPath: path})
	select {
	case o.tasks <- job:
	default:
		return "", ErrQueueFull
	}
	o.remember(*job)
	return job.ID, nil
}

// State returns the current conversion state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot returns the current state together with the in-flight and last
// finished conversion.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := Snapshot{State: o.state}
	if o.current != nil {
		current := *o.current
		snap.Current = &current
	}
	if o.last != nil {
		last := *o.last
		snap.Last = &last
	}
	if o.tasks != nil {
		snap.Queued = len(o.tasks)
	}
	return snap
}

// Job returns a recently submitted job by ID.
func (o *Orchestrator) Job(id string) (Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.recent) - 1; i >= 0; i-- {
		if o.recent[i].ID == id {
			return o.recent[i], true
		}
	}
	return Job{}, false
}

// Recent returns recently submitted jobs, newest first.
func (o *Orchestrator) Recent() []Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Job, 0, len(o.recent))
	for i := len(o.recent) - 1; i >= 0; i-- {
		out = append(out, o.recent[i])
	}
	return out
}

func (o *Orchestrator) newJob(kind JobKind, req transcoder.Request) *Job {
	return &Job{
		ID:       uuid.NewString(),
		Kind:     kind,
		Status:   JobQueued,
		Request:  req,
		QueuedAt: o.now(),
	}
}

// remember records job in the recent list, replacing an older copy. Callers
// hold o.mu.
func (o *Orchestrator) remember(job Job) {
	for i := range o.recent {
		if o.recent[i].ID == job.ID {
			o.recent[i] = job
			return
		}
	}
	o.recent = append(o.recent, job)
	if len(o.recent) > defaultRecentLimit {
		o.recent = append([]Job(nil), o.recent[len(o.recent)-defaultRecentLimit:]...)
	}
}

func (o *Orchestrator) notifyState(state State) {
	if o.observer != nil {
		o.observer.StateChanged(state.String())
	}
}

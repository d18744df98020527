package orchestrator

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"gifconv/internal/provision"
	"gifconv/internal/transcoder"
)

type fakeRunner struct {
	mu       sync.Mutex
	converts int
	probes   int
	release  chan struct{}
	started  chan struct{}
	convErr  error
	probeErr error
	info     transcoder.VideoInfo
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{started: make(chan struct{}, 8)}
}

func (f *fakeRunner) Probe(ctx context.Context, path string) (transcoder.VideoInfo, error) {
	f.mu.Lock()
	f.probes++
	f.mu.Unlock()
	return f.info, f.probeErr
}

func (f *fakeRunner) Convert(ctx context.Context, req transcoder.Request) error {
	f.mu.Lock()
	f.converts++
	release := f.release
	f.mu.Unlock()
	f.started <- struct{}{}
	if release != nil {
		<-release
	}
	return f.convErr
}

func (f *fakeRunner) convertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.converts
}

type recordingRecorder struct {
	mu       sync.Mutex
	starts   []Job
	finishes []Job
}

func (r *recordingRecorder) RecordStart(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, job)
	return nil
}

func (r *recordingRecorder) RecordFinish(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishes = append(r.finishes, job)
	return nil
}

func startOrchestrator(t *testing.T, runner Runner, opts ...Option) *Orchestrator {
	t.Helper()
	o := New(runner, opts...)
	o.Start(context.Background())
	t.Cleanup(o.Stop)
	return o
}

func waitResult(t *testing.T, o *Orchestrator) Job {
	t.Helper()
	select {
	case job, ok := <-o.Results():
		if !ok {
			t.Fatal("results channel closed")
		}
		return job
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	return Job{}
}

var validRequest = transcoder.Request{InputPath: "clip.mp4", OutputPath: "clip.gif"}

func TestRequestConvertRejectsMissingPaths(t *testing.T) {
	runner := newFakeRunner()
	o := startOrchestrator(t, runner)

	for _, req := range []transcoder.Request{
		{OutputPath: "out.gif"},
		{InputPath: "in.mp4"},
		{InputPath: "  ", OutputPath: "out.gif"},
	} {
		if _, err := o.RequestConvert(req); !errors.Is(err, ErrMissingPath) {
			t.Fatalf("expected ErrMissingPath for %+v, got %v", req, err)
		}
	}
	if o.State() != StateIdle {
		t.Fatalf("expected state idle, got %s", o.State())
	}
	if FailureKind(ErrMissingPath) != KindValidation {
		t.Fatalf("expected validation kind, got %s", FailureKind(ErrMissingPath))
	}
}

func TestRequestConvertRejectsOutputOverInput(t *testing.T) {
	runner := newFakeRunner()
	o := startOrchestrator(t, runner)

	_, err := o.RequestConvert(transcoder.Request{InputPath: "clips/a.gif", OutputPath: "clips/./a.gif"})
	if !errors.Is(err, ErrOutputIsInput) {
		t.Fatalf("expected ErrOutputIsInput, got %v", err)
	}
	if FailureKind(err) != KindValidation {
		t.Fatalf("expected validation kind, got %s", FailureKind(err))
	}
	if runner.convertCount() != 0 || o.State() != StateIdle {
		t.Fatalf("expected no conversion, state %s", o.State())
	}
}

func TestRequestConvertRejectsPartialResolution(t *testing.T) {
	o := startOrchestrator(t, newFakeRunner())

	_, err := o.RequestConvert(transcoder.Request{InputPath: "in.mp4", OutputPath: "out.gif", Height: 240})
	if !errors.Is(err, transcoder.ErrPartialResolution) {
		t.Fatalf("expected ErrPartialResolution, got %v", err)
	}
	if FailureKind(err) != KindValidation {
		t.Fatalf("expected validation kind, got %s", FailureKind(err))
	}
	if o.State() != StateIdle {
		t.Fatalf("expected state idle, got %s", o.State())
	}
}

func TestSecondConversionWhileBusyIsRejected(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})
	o := startOrchestrator(t, runner)

	id, err := o.RequestConvert(validRequest)
	if err != nil {
		t.Fatalf("first RequestConvert: %v", err)
	}
	<-runner.started
	if o.State() != StateBusy {
		t.Fatalf("expected busy, got %s", o.State())
	}

	if _, err := o.RequestConvert(validRequest); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if FailureKind(ErrBusy) != KindBusy {
		t.Fatalf("unexpected kind for ErrBusy")
	}

	close(runner.release)
	job := waitResult(t, o)
	if job.ID != id || !job.Succeeded() {
		t.Fatalf("unexpected result %+v", job)
	}
	if runner.convertCount() != 1 {
		t.Fatalf("expected exactly one conversion subprocess, got %d", runner.convertCount())
	}
}

func TestStateIsDoneBeforeResultIsPublished(t *testing.T) {
	runner := newFakeRunner()
	runner.convErr = &transcoder.ConversionError{Input: "clip.mp4", Output: "clip.gif", Err: errors.New("exit status 1")}
	o := startOrchestrator(t, runner)

	if _, err := o.RequestConvert(validRequest); err != nil {
		t.Fatalf("RequestConvert: %v", err)
	}
	job := waitResult(t, o)
	if o.State() != StateDone {
		t.Fatalf("expected done when result arrives, got %s", o.State())
	}
	if job.Outcome() != KindConversion {
		t.Fatalf("expected conversion outcome, got %q", job.Outcome())
	}
	snap := o.Snapshot()
	if snap.Last == nil || snap.Last.ID != job.ID || snap.Current != nil {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	// Done accepts the next request.
	runner.convErr = nil
	if _, err := o.RequestConvert(validRequest); err != nil {
		t.Fatalf("RequestConvert from done: %v", err)
	}
	if next := waitResult(t, o); !next.Succeeded() {
		t.Fatalf("expected success, got %+v", next)
	}
}

func TestProbeDoesNotChangeConversionState(t *testing.T) {
	runner := newFakeRunner()
	runner.info = transcoder.VideoInfo{Width: 640, Height: 360, FrameRate: 24}
	o := startOrchestrator(t, runner)

	if _, err := o.RequestProbe(""); !errors.Is(err, ErrMissingPath) {
		t.Fatalf("expected ErrMissingPath, got %v", err)
	}
	id, err := o.RequestProbe("clip.mp4")
	if err != nil {
		t.Fatalf("RequestProbe: %v", err)
	}
	job := waitResult(t, o)
	if job.ID != id || job.Kind != JobProbe || job.Info != runner.info {
		t.Fatalf("unexpected probe result %+v", job)
	}
	if o.State() != StateIdle {
		t.Fatalf("expected idle after probe, got %s", o.State())
	}
	stored, ok := o.Job(id)
	if !ok || stored.Status != JobSucceeded {
		t.Fatalf("expected stored succeeded job, got %+v (%v)", stored, ok)
	}
}

func TestProvisioningFailureIsReported(t *testing.T) {
	runner := newFakeRunner()
	runner.probeErr = &provision.Error{Err: errors.New("no archive")}
	o := startOrchestrator(t, runner)

	if _, err := o.RequestProbe("clip.mp4"); err != nil {
		t.Fatalf("RequestProbe: %v", err)
	}
	job := waitResult(t, o)
	if job.Outcome() != KindProvisioning {
		t.Fatalf("expected provisioning outcome, got %q", job.Outcome())
	}
}

func TestRecorderSeesStartAndFinish(t *testing.T) {
	recorder := &recordingRecorder{}
	o := startOrchestrator(t, newFakeRunner(), WithRecorder(recorder))

	if _, err := o.RequestConvert(validRequest); err != nil {
		t.Fatalf("RequestConvert: %v", err)
	}
	waitResult(t, o)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.starts) != 1 || recorder.starts[0].Status != JobRunning {
		t.Fatalf("unexpected starts %+v", recorder.starts)
	}
	if len(recorder.finishes) != 1 || recorder.finishes[0].Status != JobSucceeded {
		t.Fatalf("unexpected finishes %+v", recorder.finishes)
	}
}

func TestRequestsBeforeStartAndAfterStop(t *testing.T) {
	o := New(newFakeRunner())
	if _, err := o.RequestConvert(validRequest); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning before start, got %v", err)
	}
	o.Start(context.Background())
	o.Stop()
	o.Stop()
	if _, err := o.RequestProbe("clip.mp4"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
	if _, ok := <-o.Results(); ok {
		t.Fatal("expected results channel to be closed")
	}
}

func TestStopReleasesGoroutines(t *testing.T) {
	before := runtime.NumGoroutine()
	for range 20 {
		o := New(newFakeRunner())
		o.Start(context.Background())
		o.Stop()
	}
	// Finished goroutines may take a moment to leave the scheduler.
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if after := runtime.NumGoroutine(); after > before {
		t.Fatalf("goroutines before=%d after=%d", before, after)
	}
}

func TestCancelledContextStopsIntake(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o := New(newFakeRunner())
	o.Start(ctx)
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, err := o.RequestProbe("clip.mp4")
		if errors.Is(err, ErrNotRunning) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected ErrNotRunning after cancel, got %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	o.Stop()
}

func TestStopWaitsForInFlightConversion(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	o := New(runner)
	o.Start(ctx)
	results := o.Results()

	if _, err := o.RequestConvert(validRequest); err != nil {
		t.Fatalf("RequestConvert: %v", err)
	}
	<-runner.started
	cancel()

	stopped := make(chan struct{})
	go func() {
		o.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while conversion was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	<-stopped
	job, ok := <-results
	if !ok || !job.Succeeded() {
		t.Fatalf("expected in-flight conversion to finish, got %+v (%v)", job, ok)
	}
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("boom"), KindUnknown},
		{&provision.Error{}, KindProvisioning},
		{&transcoder.ProbeError{Path: "x", Err: transcoder.ErrNoVideoInfo}, KindProbe},
		{&transcoder.ConversionError{Err: errors.New("exit 1")}, KindConversion},
		{transcoder.Request{Width: 1}.Validate(), KindValidation},
		{ErrBusy, KindBusy},
	}
	for _, tt := range tests {
		if got := FailureKind(tt.err); got != tt.want {
			t.Fatalf("FailureKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

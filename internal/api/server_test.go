package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gifconv/internal/deps"
	"gifconv/internal/orchestrator"
	"gifconv/internal/provision"
	"gifconv/internal/testsupport"
	"gifconv/internal/transcoder"
)

type stubRunner struct {
	mu      sync.Mutex
	release chan struct{}
	info    transcoder.VideoInfo
	reqs    []transcoder.Request
}

func (s *stubRunner) Probe(context.Context, string) (transcoder.VideoInfo, error) {
	return s.info, nil
}

func (s *stubRunner) Convert(_ context.Context, req transcoder.Request) error {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	release := s.release
	s.mu.Unlock()
	if release != nil {
		<-release
	}
	return nil
}

func (s *stubRunner) requests() []transcoder.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transcoder.Request(nil), s.reqs...)
}

type stubExecutable struct {
	path string
	err  error
}

func (s stubExecutable) Executable(context.Context) (string, error) { return s.path, s.err }

func (s stubExecutable) Source() string { return provision.SourceResource }

func newTestServer(t *testing.T, runner orchestrator.Runner, mutate func(*Options), orchOpts ...orchestrator.Option) (*Server, *orchestrator.Orchestrator) {
	t.Helper()
	orch := orchestrator.New(runner, orchOpts...)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	opts := Options{
		Orchestrator: orch,
		Transcoder:   stubExecutable{path: "/opt/gifconv/ffmpeg"},
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts), orch
}

func do(t *testing.T, srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func writeInput(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteVideo(t, path, size)
	return path
}

func TestStatusReportsIdleAndTranscoder(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, func(o *Options) {
		o.Dependencies = func() []deps.Status {
			return []deps.Status{{Name: "FFmpeg", Command: "ffmpeg", Available: true}}
		}
	})

	rec := do(t, srv, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	status := decodeBody[StatusResponse](t, rec)
	if status.State != "idle" {
		t.Fatalf("state = %q, want idle", status.State)
	}
	if !status.Transcoder.Ready || status.Transcoder.Path != "/opt/gifconv/ffmpeg" || status.Transcoder.Source != provision.SourceResource {
		t.Fatalf("unexpected transcoder status %+v", status.Transcoder)
	}
	if len(status.Dependencies) != 1 || !status.Dependencies[0].Available {
		t.Fatalf("unexpected dependencies %+v", status.Dependencies)
	}
}

func TestStatusReportsProvisioningError(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, func(o *Options) {
		o.Transcoder = stubExecutable{err: &provision.Error{Err: errors.New("no archive")}}
	})

	status := decodeBody[StatusResponse](t, do(t, srv, http.MethodGet, "/api/status", nil))
	if status.Transcoder.Ready || status.Transcoder.Error == "" {
		t.Fatalf("expected transcoder error, got %+v", status.Transcoder)
	}
}

func TestConvertMissingPathIsBadRequest(t *testing.T) {
	runner := &stubRunner{}
	srv, _ := newTestServer(t, runner, nil)

	rec := do(t, srv, http.MethodPost, "/api/convert", ConvertRequest{Input: "", Output: "/tmp/out.gif"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", rec.Code)
	}
	resp := decodeBody[ErrorResponse](t, rec)
	if resp.Kind != orchestrator.KindValidation {
		t.Fatalf("kind = %q, want validation", resp.Kind)
	}
	if len(runner.requests()) != 0 {
		t.Fatal("runner should not be invoked")
	}
}

func TestConvertAcceptedThenBusy(t *testing.T) {
	runner := &stubRunner{release: make(chan struct{})}
	srv, orch := newTestServer(t, runner, nil)
	input := writeInput(t, 128)

	rec := do(t, srv, http.MethodPost, "/api/convert", ConvertRequest{Input: input, Output: filepath.Join(t.TempDir(), "out.gif")})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status code = %d, body %s", rec.Code, rec.Body.String())
	}
	accepted := decodeBody[AcceptedResponse](t, rec)
	if accepted.ID == "" || accepted.State != "busy" {
		t.Fatalf("unexpected accepted response %+v", accepted)
	}

	rec = do(t, srv, http.MethodPost, "/api/convert", ConvertRequest{Input: input, Output: filepath.Join(t.TempDir(), "other.gif")})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status code = %d, want 409", rec.Code)
	}
	if kind := decodeBody[ErrorResponse](t, rec).Kind; kind != orchestrator.KindBusy {
		t.Fatalf("kind = %q, want busy", kind)
	}

	close(runner.release)
	select {
	case job := <-orch.Results():
		if job.ID != accepted.ID || !job.Succeeded() {
			t.Fatalf("unexpected result %+v", job)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for conversion")
	}
	if got := len(runner.requests()); got != 1 {
		t.Fatalf("runner invoked %d times, want 1", got)
	}

	status := decodeBody[StatusResponse](t, do(t, srv, http.MethodGet, "/api/status", nil))
	if status.State != "done" || status.Last == nil || status.Last.ID != accepted.ID {
		t.Fatalf("unexpected status after conversion %+v", status)
	}
}

func TestConvertParsesResolution(t *testing.T) {
	runner := &stubRunner{}
	srv, orch := newTestServer(t, runner, nil)

	rec := do(t, srv, http.MethodPost, "/api/convert", ConvertRequest{
		Input:      writeInput(t, 16),
		Output:     filepath.Join(t.TempDir(), "out.gif"),
		Resolution: "320x240",
		FrameRate:  12.5,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status code = %d, body %s", rec.Code, rec.Body.String())
	}
	<-orch.Results()
	reqs := runner.requests()
	if len(reqs) != 1 || reqs[0].Width != 320 || reqs[0].Height != 240 || reqs[0].FrameRate != 12.5 {
		t.Fatalf("unexpected requests %+v", reqs)
	}
}

func TestConvertRejectsInvalidParameters(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, nil)
	input := writeInput(t, 16)
	output := filepath.Join(t.TempDir(), "out.gif")

	tests := []struct {
		name string
		body ConvertRequest
	}{
		{"bad resolution", ConvertRequest{Input: input, Output: output, Resolution: "wide"}},
		{"partial resolution", ConvertRequest{Input: input, Output: output, Width: 320}},
		{"negative rate", ConvertRequest{Input: input, Output: output, FrameRate: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/convert", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status code = %d, want 400", rec.Code)
			}
		})
	}
}

func TestConvertRejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader(`{"input":`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", rec.Code)
	}
}

func TestConvertEnforcesInputLimit(t *testing.T) {
	runner := &stubRunner{}
	srv, orch := newTestServer(t, runner, func(o *Options) { o.MaxInputBytes = 1024 })
	input := writeInput(t, 4096)
	output := filepath.Join(t.TempDir(), "out.gif")

	rec := do(t, srv, http.MethodPost, "/api/convert", ConvertRequest{Input: input, Output: output})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", rec.Code)
	}
	if !strings.Contains(decodeBody[ErrorResponse](t, rec).Error, "4.0 KiB") {
		t.Fatalf("error should describe size, got %s", rec.Body.String())
	}

	rec = do(t, srv, http.MethodPost, "/api/convert", ConvertRequest{Input: input, Output: output, Force: true})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("forced status code = %d, body %s", rec.Code, rec.Body.String())
	}
	<-orch.Results()
}

func TestConvertProvisioningFailureIsUnavailable(t *testing.T) {
	runner := &stubRunner{}
	srv, _ := newTestServer(t, runner, func(o *Options) {
		o.Transcoder = stubExecutable{err: &provision.Error{Err: os.ErrNotExist}}
	})

	rec := do(t, srv, http.MethodPost, "/api/convert", ConvertRequest{Input: writeInput(t, 16), Output: filepath.Join(t.TempDir(), "out.gif")})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status code = %d, want 503", rec.Code)
	}
	if kind := decodeBody[ErrorResponse](t, rec).Kind; kind != orchestrator.KindProvisioning {
		t.Fatalf("kind = %q, want provisioning", kind)
	}
	if len(runner.requests()) != 0 {
		t.Fatal("runner should not be invoked")
	}
}

func TestProbeJobLifecycle(t *testing.T) {
	runner := &stubRunner{info: transcoder.VideoInfo{Width: 1920, Height: 1080, FrameRate: 30}}
	srv, orch := newTestServer(t, runner, nil)

	rec := do(t, srv, http.MethodPost, "/api/probe", ProbeRequest{Path: "/videos/clip.mp4"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status code = %d, body %s", rec.Code, rec.Body.String())
	}
	accepted := decodeBody[AcceptedResponse](t, rec)
	if accepted.State != "idle" {
		t.Fatalf("probe should not change state, got %q", accepted.State)
	}
	<-orch.Results()

	rec = do(t, srv, http.MethodGet, "/api/jobs/"+accepted.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	job := decodeBody[JobResponse](t, rec).Job
	if job.Kind != "probe" || job.Status != "succeeded" || job.Outcome != "success" {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Info == nil || job.Info.Width != 1920 || job.Info.Height != 1080 || job.Info.FrameRate != 30 {
		t.Fatalf("unexpected info %+v", job.Info)
	}

	list := decodeBody[JobListResponse](t, do(t, srv, http.MethodGet, "/api/jobs", nil))
	if len(list.Jobs) != 1 || list.Jobs[0].ID != accepted.ID {
		t.Fatalf("unexpected job list %+v", list.Jobs)
	}
}

func TestProbeMissingPathIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, nil)
	rec := do(t, srv, http.MethodPost, "/api/probe", ProbeRequest{Path: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", rec.Code)
	}
}

func TestJobsFromHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	runner := &stubRunner{info: transcoder.VideoInfo{Width: 640, Height: 360, FrameRate: 24}}
	srv, orch := newTestServer(t, runner, func(o *Options) { o.History = store }, orchestrator.WithRecorder(store))

	rec := do(t, srv, http.MethodPost, "/api/probe", ProbeRequest{Path: "/videos/a.mp4"})
	id := decodeBody[AcceptedResponse](t, rec).ID
	<-orch.Results()

	list := decodeBody[JobListResponse](t, do(t, srv, http.MethodGet, "/api/jobs", nil))
	if len(list.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %+v", list.Jobs)
	}
	job := list.Jobs[0]
	if job.ID != id || job.Status != "succeeded" || job.Info == nil || job.Info.Width != 640 {
		t.Fatalf("unexpected history job %+v", job)
	}
}

func TestUnknownJobIsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	srv, _ := newTestServer(t, &stubRunner{}, func(o *Options) { o.History = store })

	rec := do(t, srv, http.MethodGet, "/api/jobs/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status code = %d, want 404", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, nil)
	rec := do(t, srv, http.MethodGet, "/api/convert", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status code = %d, want 405", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, nil)
	do(t, srv, http.MethodGet, "/api/status", nil)

	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gifconv_http_requests_total") {
		t.Fatalf("metrics output missing request counter")
	}
}

func TestStartAndStop(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, func(o *Options) { o.Bind = "127.0.0.1:0" })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)

	resp, err := http.Get("http://" + srv.Addr() + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}

	srv.Stop()
	if srv.Addr() != "" {
		t.Fatal("expected listener to be released")
	}
}

func TestStartRequiresBind(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, nil)
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("expected error for empty bind")
	}
}

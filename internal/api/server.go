package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gifconv/internal/deps"
	"gifconv/internal/history"
	"gifconv/internal/inputguard"
	"gifconv/internal/logging"
	"gifconv/internal/metrics"
	"gifconv/internal/orchestrator"
	"gifconv/internal/transcoder"
)

const (
	maxBodyBytes     = 1 << 20
	defaultJobsLimit = 50
)

// Orchestrator is the subset of *orchestrator.Orchestrator the server uses.
type Orchestrator interface {
	RequestConvert(req transcoder.Request) (string, error)
	RequestProbe(path string) (string, error)
	Snapshot() orchestrator.Snapshot
	Job(id string) (orchestrator.Job, bool)
	Recent() []orchestrator.Job
}

// Provisioner reports the provisioned transcoder.
type Provisioner interface {
	Executable(ctx context.Context) (string, error)
	Source() string
}

// History is the subset of *history.Store the server uses.
type History interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
	Get(ctx context.Context, id string) (history.Entry, error)
}

// Options configures a Server.
type Options struct {
	Bind         string
	Orchestrator Orchestrator
	Transcoder   Provisioner
	// History is optional; without it job listings come from memory.
	History History
	// Dependencies is optional and evaluated on each status request.
	Dependencies func() []deps.Status
	// MaxInputBytes rejects larger inputs unless the request sets force.
	// Zero disables the check.
	MaxInputBytes int64
	Logger        *slog.Logger
}

// Server is the HTTP front end for an orchestrator.
type Server struct {
	opts    Options
	logger  *slog.Logger
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New builds a Server. It does not listen until Start is called.
func New(opts Options) *Server {
	s := &Server{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "api-server"),
	}

	router := mux.NewRouter()
	router.Use(metrics.Middleware("/metrics"))
	router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/probe", s.handleProbe).Methods(http.MethodPost)
	router.HandleFunc("/api/convert", s.handleConvert).Methods(http.MethodPost)
	router.HandleFunc("/api/jobs", s.handleJobs).Methods(http.MethodGet)
	router.HandleFunc("/api/jobs/{id}", s.handleJob).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found", "")
	})
	s.handler = router
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listening address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens on the configured bind address and serves in the background
// until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.opts.Bind)
	if bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.server = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting up to five seconds for open requests.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.server
	listener := s.listener
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.opts.Orchestrator.Snapshot()
	payload := StatusResponse{
		State:        snap.State.String(),
		Queued:       snap.Queued,
		Dependencies: []DependencyStatus{},
	}
	if snap.Current != nil {
		job := FromJob(*snap.Current)
		payload.Current = &job
	}
	if snap.Last != nil {
		job := FromJob(*snap.Last)
		payload.Last = &job
	}
	if s.opts.Transcoder != nil {
		path, err := s.opts.Transcoder.Executable(r.Context())
		if err != nil {
			payload.Transcoder = TranscoderStatus{Error: err.Error()}
		} else {
			payload.Transcoder = TranscoderStatus{Ready: true, Path: path, Source: s.opts.Transcoder.Source()}
		}
	}
	if s.opts.Dependencies != nil {
		payload.Dependencies = FromDependencies(s.opts.Dependencies())
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	var body ProbeRequest
	if !s.decode(w, r, &body) {
		return
	}
	if !s.transcoderReady(w, r) {
		return
	}
	id, err := s.opts.Orchestrator.RequestProbe(body.Path)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, AcceptedResponse{ID: id, State: s.opts.Orchestrator.Snapshot().State.String()})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var body ConvertRequest
	if !s.decode(w, r, &body) {
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if strings.TrimSpace(req.InputPath) == "" || strings.TrimSpace(req.OutputPath) == "" {
		s.writeFailure(w, orchestrator.ErrMissingPath)
		return
	}
	if !body.Force && s.opts.MaxInputBytes > 0 {
		if _, err := inputguard.Check(strings.TrimSpace(req.InputPath), s.opts.MaxInputBytes); err != nil {
			s.writeFailure(w, err)
			return
		}
	}
	if !s.transcoderReady(w, r) {
		return
	}

	id, err := s.opts.Orchestrator.RequestConvert(req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrBusy) {
			logging.WarnWithContext(s.logger, "conversion rejected", "conversion_busy",
				logging.String(logging.FieldErrorHint, "wait for the current conversion to finish"),
				logging.String("input", req.InputPath),
			)
		}
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, AcceptedResponse{ID: id, State: orchestrator.StateBusy.String()})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.opts.History != nil {
		entries, err := s.opts.History.List(r.Context(), defaultJobsLimit)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error(), orchestrator.KindUnknown)
			return
		}
		jobs := make([]Job, 0, len(entries))
		for _, entry := range entries {
			jobs = append(jobs, FromHistoryEntry(entry))
		}
		s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: jobs})
		return
	}

	recent := s.opts.Orchestrator.Recent()
	jobs := make([]Job, 0, len(recent))
	for _, job := range recent {
		jobs = append(jobs, FromJob(job))
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: jobs})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if job, ok := s.opts.Orchestrator.Job(id); ok {
		s.writeJSON(w, http.StatusOK, JobResponse{Job: FromJob(job)})
		return
	}
	if s.opts.History != nil {
		entry, err := s.opts.History.Get(r.Context(), id)
		switch {
		case err == nil:
			s.writeJSON(w, http.StatusOK, JobResponse{Job: FromHistoryEntry(entry)})
			return
		case !errors.Is(err, history.ErrNotFound):
			s.writeError(w, http.StatusInternalServerError, err.Error(), orchestrator.KindUnknown)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "job not found", "")
}

// transcoderReady resolves the executable so that provisioning failures are
// reported as 503 instead of surfacing later as a failed job.
func (s *Server) transcoderReady(w http.ResponseWriter, r *http.Request) bool {
	if s.opts.Transcoder == nil {
		return true
	}
	if _, err := s.opts.Transcoder.Executable(r.Context()); err != nil {
		logging.ErrorWithContext(s.logger, "transcoder unavailable", "provisioning_failed",
			logging.String(logging.FieldErrorHint, "check transcoder.resource_archive and paths.package_path"),
			logging.Error(err),
		)
		s.writeFailure(w, err)
		return false
	}
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), orchestrator.KindValidation)
		return false
	}
	return true
}

func (c ConvertRequest) toRequest() (transcoder.Request, error) {
	req := transcoder.Request{
		InputPath:  c.Input,
		OutputPath: c.Output,
		Width:      c.Width,
		Height:     c.Height,
		FrameRate:  c.FrameRate,
	}
	if c.Resolution != "" && c.Width == 0 && c.Height == 0 {
		width, height, err := transcoder.ParseResolution(c.Resolution)
		if err != nil {
			return req, &transcoder.ValidationError{Err: err}
		}
		req.Width, req.Height = width, height
	}
	return req, nil
}

// statusFor maps an orchestrator or provisioning error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrNotRunning), errors.Is(err, orchestrator.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	switch orchestrator.FailureKind(err) {
	case orchestrator.KindValidation:
		return http.StatusBadRequest
	case orchestrator.KindProvisioning:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	s.writeError(w, statusFor(err), err.Error(), orchestrator.FailureKind(err))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, ErrorResponse{Error: message, Kind: kind})
}

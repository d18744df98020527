package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gifconv/internal/config"
	"gifconv/internal/history"
	"gifconv/internal/logging"
	"gifconv/internal/orchestrator"
	"gifconv/internal/provision"
	"gifconv/internal/transcoder"
)

// session wires a provisioned transcoder to a running orchestrator for the
// lifetime of one command.
type session struct {
	cfg         *config.Config
	logger      *slog.Logger
	provisioner *provision.Provisioner
	history     *history.Store
	orch        *orchestrator.Orchestrator
	cancel      context.CancelFunc
}

// openSession provisions the transcoder and starts an orchestrator. A
// provisioning failure is returned as-is so callers exit non-zero. History
// is optional; failing to open it is reported on warn and the session
// continues without it.
func (c *commandContext) openSession(ctx context.Context, warn io.Writer, opts ...orchestrator.Option) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	prov := provision.NewFromConfig(cfg, logger)
	if _, err := prov.Executable(ctx); err != nil {
		return nil, fmt.Errorf("transcoder unavailable: %w", err)
	}

	store, err := c.openHistory()
	if err != nil {
		fmt.Fprintf(warn, "warn: %v; continuing without history\n", err)
		logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "jobs from this run are not recorded"),
		)
		store = nil
	}

	orchOpts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if store != nil {
		orchOpts = append(orchOpts, orchestrator.WithRecorder(store))
	}
	orchOpts = append(orchOpts, opts...)

	runCtx, cancel := context.WithCancel(ctx)
	orch := orchestrator.New(transcoder.New(prov, logger), orchOpts...)
	orch.Start(runCtx)

	return &session{
		cfg:         cfg,
		logger:      logger,
		provisioner: prov,
		history:     store,
		orch:        orch,
		cancel:      cancel,
	}, nil
}

func (s *session) Close() {
	if s == nil {
		return
	}
	s.orch.Stop()
	s.cancel()
	if s.history != nil {
		_ = s.history.Close()
	}
}

// await blocks until the job with the given ID is published.
func (s *session) await(ctx context.Context, id string) (orchestrator.Job, error) {
	for {
		select {
		case job, ok := <-s.orch.Results():
			if !ok {
				return orchestrator.Job{}, orchestrator.ErrNotRunning
			}
			if job.ID == id {
				return job, nil
			}
		case <-ctx.Done():
			return orchestrator.Job{}, ctx.Err()
		}
	}
}

// probe runs a probe job to completion.
func (s *session) probe(ctx context.Context, path string) (transcoder.VideoInfo, error) {
	id, err := s.orch.RequestProbe(path)
	if err != nil {
		return transcoder.VideoInfo{}, err
	}
	job, err := s.await(ctx, id)
	if err != nil {
		return transcoder.VideoInfo{}, err
	}
	return job.Info, job.Err
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"gifconv/internal/api"
	"gifconv/internal/deps"
	"gifconv/internal/logging"
	"gifconv/internal/metrics"
	"gifconv/internal/orchestrator"
	"gifconv/internal/preflight"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bindFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API",
		Long: `Run the local HTTP API.

The transcoder is provisioned before listening; the server refuses to start
when it cannot be provisioned. Conversions are accepted one at a time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, ctx, bindFlag)
		},
	}

	cmd.Flags().StringVar(&bindFlag, "bind", "", "Listen address (default: api.bind)")
	return cmd
}

func runServe(cmd *cobra.Command, ctx *commandContext, bindFlag string) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	base, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	eventLogger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      "json",
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "gifconv-serve.jsonl")},
	})
	if err != nil {
		return fmt.Errorf("init event log: %w", err)
	}
	logger := logging.TeeLogger(base, eventLogger)

	for _, result := range preflight.RunAll(signalCtx, cfg) {
		if result.Passed {
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}

	sess, err := ctx.openSession(signalCtx, cmd.ErrOrStderr(),
		orchestrator.WithObserver(metrics.NewJobObserver()),
		orchestrator.WithLogger(logger),
	)
	if err != nil {
		metrics.SetTranscoderReady("")
		return err
	}
	defer sess.Close()
	metrics.SetTranscoderReady(sess.provisioner.Source())

	opts := api.Options{
		Bind:          strings.TrimSpace(bindFlag),
		Orchestrator:  sess.orch,
		Transcoder:    sess.provisioner,
		MaxInputBytes: cfg.MaxInputBytes(),
		Dependencies:  func() []deps.Status { return preflight.CheckSystemDeps(cfg) },
		Logger:        logger,
	}
	if opts.Bind == "" {
		opts.Bind = cfg.API.Bind
	}
	if sess.history != nil {
		opts.History = sess.history
	}

	server := api.New(opts)
	if err := server.Start(signalCtx); err != nil {
		return err
	}
	defer server.Stop()
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", server.Addr())

	go drainResults(signalCtx, sess.orch.Results())

	<-signalCtx.Done()
	logger.Info("gifconv server shutting down")
	return nil
}

// drainResults consumes published jobs; the orchestrator already logs and
// records them, and the API reads state from snapshots.
func drainResults(ctx context.Context, results <-chan orchestrator.Job) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-results:
			if !ok {
				return
			}
		}
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"gifconv/internal/inputguard"
	"gifconv/internal/logging"
	"gifconv/internal/transcoder"
)

type convertOptions struct {
	output     string
	resolution string
	width      int
	height     int
	frameRate  float64
	force      bool
	noProbe    bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert <video>",
		Short: "Convert a video to an animated GIF",
		Long: `Convert a video to an animated GIF.

Parameters that are not given on the command line are taken from a probe of
the input. If the probe fails, conversion continues with whatever parameters
were supplied and ffmpeg picks the rest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, ctx, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output GIF path or directory (default: beside the input)")
	cmd.Flags().StringVarP(&opts.resolution, "resolution", "r", "", "Output resolution as WxH")
	cmd.Flags().IntVar(&opts.width, "width", 0, "Output width (requires --height)")
	cmd.Flags().IntVar(&opts.height, "height", 0, "Output height (requires --width)")
	cmd.Flags().Float64Var(&opts.frameRate, "fps", 0, "Output frame rate")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Skip the input size limit")
	cmd.Flags().BoolVar(&opts.noProbe, "no-probe", false, "Do not fill missing parameters from a probe")
	cmd.MarkFlagsMutuallyExclusive("resolution", "width")
	cmd.MarkFlagsMutuallyExclusive("resolution", "height")
	return cmd
}

func runConvert(cmd *cobra.Command, ctx *commandContext, arg string, opts convertOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	input, err := checkInput(arg, cfg.MaxInputBytes(), opts.force)
	if err != nil {
		return err
	}
	output, err := resolveOutputPath(input, opts.output)
	if err != nil {
		return err
	}

	req := transcoder.Request{
		InputPath:  input,
		OutputPath: output,
		Width:      opts.width,
		Height:     opts.height,
		FrameRate:  opts.frameRate,
	}
	if opts.resolution != "" {
		req.Width, req.Height, err = transcoder.ParseResolution(opts.resolution)
		if err != nil {
			return &transcoder.ValidationError{Err: err}
		}
	}
	if err := req.Validate(); err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	sess, err := ctx.openSession(cmd.Context(), stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	if !opts.noProbe && (!req.HasResolution() || !req.HasFrameRate()) {
		info, err := sess.probe(cmd.Context(), input)
		if err != nil {
			fmt.Fprintf(stderr, "warn: probe failed: %v; continuing with manual parameters\n", err)
			logging.WarnWithContext(sess.logger, "probe failed before conversion", "probe_failed",
				logging.String("input", input),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "pass --resolution and --fps explicitly"),
				logging.String(logging.FieldImpact, "ffmpeg chooses unset parameters"),
			)
		} else {
			req = req.WithDefaults(info)
		}
	}

	id, err := sess.orch.RequestConvert(req)
	if err != nil {
		return err
	}

	stop := startSpinner(stderr, "Converting "+displayName(input))
	job, err := sess.await(cmd.Context(), id)
	stop()
	if err != nil {
		return err
	}
	if !job.Succeeded() {
		return job.Err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s\n", output)
	fmt.Fprintf(out, "  Parameters: %s\n", describeParams(job.Request))
	if info, err := os.Stat(output); err == nil {
		fmt.Fprintf(out, "  Size:       %s\n", inputguard.Describe(info.Size()))
	}
	fmt.Fprintf(out, "  Elapsed:    %s\n", job.Duration().Round(time.Millisecond))
	return nil
}

func describeParams(req transcoder.Request) string {
	resolution := "source"
	if req.HasResolution() {
		resolution = fmt.Sprintf("%dx%d", req.Width, req.Height)
	}
	rate := "source"
	if req.HasFrameRate() {
		rate = strconv.FormatFloat(req.FrameRate, 'f', -1, 64) + " fps"
	}
	return resolution + " @ " + rate
}

func displayName(path string) string {
	if len(path) > 48 {
		return "..." + path[len(path)-45:]
	}
	return path
}

// startSpinner renders an indeterminate progress indicator on terminals
// until the returned function is called.
func startSpinner(w io.Writer, description string) func() {
	if !shouldColorize(w) {
		return func() {}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()
	return func() {
		cancel()
		<-done
		_ = bar.Finish()
	}
}

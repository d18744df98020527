package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gifconv/internal/inputguard"
)

type probeOutput struct {
	Input     string  `json:"input"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frameRate"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe <video>",
		Short: "Print the resolution and frame rate of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			input, err := checkInput(args[0], cfg.MaxInputBytes(), force)
			if err != nil {
				return err
			}

			sess, err := ctx.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.Close()

			info, err := sess.probe(cmd.Context(), input)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, probeOutput{Input: input, Width: info.Width, Height: info.Height, FrameRate: info.FrameRate})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Input:      %s\n", input)
			fmt.Fprintf(out, "Resolution: %s\n", info.Resolution())
			fmt.Fprintf(out, "Frame rate: %s fps\n", strconv.FormatFloat(info.FrameRate, 'f', -1, 64))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the input size limit")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// checkInput expands path and applies the size limit unless force is set.
func checkInput(path string, limit int64, force bool) (string, error) {
	input, err := expandInput(path)
	if err != nil {
		return "", err
	}
	if force {
		limit = 0
	}
	if _, err := inputguard.Check(input, limit); err != nil {
		return "", fmt.Errorf("%w (use --force to convert anyway)", err)
	}
	return input, nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gifconv/internal/provision"
)

func newProvisionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Locate or extract the ffmpeg executable",
		Long: `Locate or extract the ffmpeg executable.

The executable is taken from transcoder.binary when set, reused when already
extracted, or extracted from the bundled archive (then from the archive
nested in the distributable package). Other commands do this on demand.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			prov := provision.NewFromConfig(cfg, logger)
			path, err := prov.Executable(cmd.Context())
			if err != nil {
				return fmt.Errorf("transcoder unavailable: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Executable: %s\n", path)
			fmt.Fprintf(out, "Source:     %s\n", prov.Source())
			return nil
		},
	}
}

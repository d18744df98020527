package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"gifconv/internal/config"
	"gifconv/internal/inputguard"
	"gifconv/internal/preflight"
)

var titleCaser = cases.Title(language.English)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, transcoder and API status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			section := func(title string) {
				if len(lines) > 0 {
					lines = append(lines, "")
				}
				lines = append(lines, renderSectionHeader(title, colorize)...)
			}

			section("Configuration")
			configPath := ctx.configPath
			if configPath == "" {
				configPath = "(defaults)"
			}
			lines = append(lines,
				renderStatusLine("Config file", statusInfo, configPath, colorize),
				renderStatusLine("Size limit", statusInfo, describeLimit(cfg), colorize),
				renderStatusLine("History", statusInfo, yesNo(cfg.Conversion.HistoryEnabled), colorize),
			)

			section("Transcoder")
			for _, dep := range preflight.CheckSystemDeps(cfg) {
				kind, message := statusOK, dep.Command
				if !dep.Available {
					message = dep.Detail
					switch {
					case dep.Optional:
						kind = statusInfo
					case cfg.Transcoder.Binary == "":
						kind = statusWarn
					default:
						kind = statusError
					}
				}
				lines = append(lines, renderStatusLine(dep.Name, kind, message, colorize))
			}

			section("Preflight")
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			if cfg.Conversion.HistoryEnabled {
				section("History")
				lines = append(lines, historyStatusLines(cmd, ctx, colorize)...)
			}

			section("API")
			api := preflight.CheckAPIServer(cmd.Context(), cfg.API.Bind)
			apiKind := statusOK
			if !api.Passed {
				apiKind = statusInfo
			}
			lines = append(lines, renderStatusLine(api.Name, apiKind, api.Detail, colorize))

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func historyStatusLines(cmd *cobra.Command, ctx *commandContext, colorize bool) []string {
	store, err := ctx.openHistory()
	if err != nil {
		return []string{renderStatusLine("Jobs", statusError, err.Error(), colorize)}
	}
	defer store.Close()

	lines := make([]string, 0, 2)
	if version, err := store.SchemaVersion(cmd.Context()); err != nil {
		lines = append(lines, renderStatusLine("Schema", statusError, err.Error(), colorize))
	} else {
		lines = append(lines, renderStatusLine("Schema", statusInfo, fmt.Sprintf("version %d", version), colorize))
	}

	counts, err := store.Counts(cmd.Context())
	if err != nil {
		return append(lines, renderStatusLine("Jobs", statusError, err.Error(), colorize))
	}
	if len(counts) == 0 {
		return append(lines, renderStatusLine("Jobs", statusInfo, "none recorded", colorize))
	}
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, fmt.Sprintf("%s %d", titleCaser.String(status), counts[status]))
	}
	return append(lines, renderStatusLine("Jobs", statusInfo, strings.Join(parts, ", "), colorize))
}

func describeLimit(cfg *config.Config) string {
	limit := cfg.MaxInputBytes()
	if limit <= 0 {
		return "disabled"
	}
	return inputguard.Describe(limit)
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gifconv/internal/history"
	"gifconv/internal/transcoder"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded probe and conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := requireHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, historyJSON(entries))
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(entries, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete jobs queued before a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			store, err := requireHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, pluralize(removed, "job", "jobs"))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff")
	return cmd
}

func requireHistory(ctx *commandContext) (*history.Store, error) {
	store, err := ctx.openHistory()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("job history is disabled (set conversion.history_enabled = true)")
	}
	return store, nil
}

func renderHistoryTable(entries []history.Entry, now time.Time) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		finished := "-"
		if !entry.FinishedAt.IsZero() {
			finished = humanize.RelTime(entry.FinishedAt, now, "ago", "from now")
		}
		size := "-"
		if entry.OutputBytes > 0 {
			size = humanize.IBytes(uint64(entry.OutputBytes))
		}
		rows = append(rows, []string{
			shortID(entry.ID),
			titleCaser.String(entry.Kind),
			titleCaser.String(entry.Status),
			entry.InputPath,
			entryParams(entry),
			size,
			finished,
		})
	}
	return renderTable(
		[]string{"ID", "Kind", "Status", "Input", "Parameters", "Size", "Finished"},
		rows,
		5,
	)
}

func entryParams(entry history.Entry) string {
	if entry.Kind == "probe" {
		if entry.ProbedWidth == 0 {
			return "-"
		}
		return describeParams(transcoder.Request{Width: entry.ProbedWidth, Height: entry.ProbedHeight, FrameRate: entry.ProbedFrameRate})
	}
	return describeParams(transcoder.Request{Width: entry.Width, Height: entry.Height, FrameRate: entry.FrameRate})
}

type historyEntryJSON struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	Status       string  `json:"status"`
	Input        string  `json:"input"`
	Output       string  `json:"output,omitempty"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	FrameRate    float64 `json:"frameRate,omitempty"`
	ErrorKind    string  `json:"errorKind,omitempty"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	OutputBytes  int64   `json:"outputBytes,omitempty"`
	QueuedAt     string  `json:"queuedAt"`
	FinishedAt   string  `json:"finishedAt,omitempty"`
}

func historyJSON(entries []history.Entry) []historyEntryJSON {
	out := make([]historyEntryJSON, 0, len(entries))
	for _, entry := range entries {
		item := historyEntryJSON{
			ID:           entry.ID,
			Kind:         entry.Kind,
			Status:       entry.Status,
			Input:        entry.InputPath,
			Output:       entry.OutputPath,
			Width:        entry.Width,
			Height:       entry.Height,
			FrameRate:    entry.FrameRate,
			ErrorKind:    entry.ErrorKind,
			ErrorMessage: entry.ErrorMessage,
			OutputBytes:  entry.OutputBytes,
			QueuedAt:     entry.QueuedAt.UTC().Format(time.RFC3339),
		}
		if entry.Kind == "probe" && entry.ProbedWidth > 0 {
			item.Width, item.Height, item.FrameRate = entry.ProbedWidth, entry.ProbedHeight, entry.ProbedFrameRate
		}
		if !entry.FinishedAt.IsZero() {
			item.FinishedAt = entry.FinishedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, item)
	}
	return out
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func pluralize(n int64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

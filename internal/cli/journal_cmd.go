// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-agent/internal/agent"
	"github.com/jeranaias/rigrun-agent/internal/export"
	"github.com/jeranaias/rigrun-agent/internal/storage"
)

func newJournalCommand(a *app) *cobra.Command {
	var (
		limit int
		prune int
		types []string
	)

	cmd := &cobra.Command{
		Use:   "journal [run-id]",
		Short: "List journaled runs or replay one run's events",
		Long: `Without arguments, list the most recent journaled runs.
With a run id (or a unique prefix of one), print that run's events in order.

Examples:
  rigrun-agent journal
  rigrun-agent journal 3f2a9c1e
  rigrun-agent journal 3f2a9c1e --type task_failed --type approval_required
  rigrun-agent journal --prune 50`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := cmd.OutOrStdout()

			journal, err := storage.OpenJournal(a.cfg.Journal.Path)
			if err != nil {
				return NewCommandError("journal", "open", err)
			}
			defer journal.Close()

			if cmd.Flags().Changed("prune") {
				removed, err := journal.Prune(ctx, prune)
				if a.jsonMode {
					return writeJSON(out, "journal prune", map[string]int{"removed": removed}, err)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d run(s).\n", removed)
				return nil
			}

			if len(args) == 0 {
				runs, err := journal.Runs(ctx, limit)
				if a.jsonMode {
					return writeJSON(out, "journal", runs, err)
				}
				if err != nil {
					return err
				}
				renderRuns(out, runs, GetTerminalWidth())
				return nil
			}

			eventTypes, err := parseEventTypes(types)
			if err != nil {
				return err
			}
			run, err := resolveRun(ctx, journal, args[0])
			if err != nil {
				if a.jsonMode {
					return writeJSON(out, "journal", nil, err)
				}
				return err
			}
			events, err := journal.Events(ctx, run.ID, eventTypes...)
			if a.jsonMode {
				return writeJSON(out, "journal", map[string]any{
					"run":    run,
					"events": events,
				}, err)
			}
			if err != nil {
				return err
			}
			renderRunEvents(out, run, events, GetTerminalWidth())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list (0 for all)")
	cmd.Flags().IntVar(&prune, "prune", 0, "keep only the newest N runs")
	cmd.Flags().StringArrayVar(&types, "type", nil, "only show events of this type (repeatable)")
	cmd.AddCommand(newJournalExportCommand(a))
	return cmd
}

func newJournalExportCommand(a *app) *cobra.Command {
	var (
		format     string
		output     string
		theme      string
		noMetadata bool
	)

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a journaled run as Markdown, HTML or JSON",
		Long: `Write a report of one journaled run: its summary, every event and the
output of each completed step.

Without --output the file is named after the run and written to the current
directory; use '-o -' to write to stdout.

Examples:
  rigrun-agent journal export 3f2a9c1e
  rigrun-agent journal export 3f2a9c1e --format html --theme light -o run.html
  rigrun-agent journal export 3f2a9c1e --format json -o -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := cmd.OutOrStdout()

			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			opts := export.DefaultOptions()
			opts.IncludeMetadata = !noMetadata
			opts.Theme = theme
			exporter, err := export.New(f, opts)
			if err != nil {
				return err
			}

			journal, err := storage.OpenJournal(a.cfg.Journal.Path)
			if err != nil {
				return NewCommandError("journal export", "open", err)
			}
			defer journal.Close()

			run, err := resolveRun(ctx, journal, args[0])
			if err != nil {
				return err
			}
			events, err := journal.Events(ctx, run.ID)
			if err != nil {
				return err
			}
			report := &export.Report{Run: run, Events: events}

			if output == "-" {
				data, err := exporter.Export(report)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			path, err := export.ExportToFile(report, exporter, output, opts)
			if a.jsonMode {
				return writeJSON(out, "journal export", map[string]string{
					"path":      path,
					"mime_type": exporter.MimeType(),
				}, err)
			}
			if err != nil {
				return err
			}
			a.logger.Info("run exported", "run_id", run.ID, "path", path, "format", f)
			fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Exported"), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "markdown, html or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write, '-' for stdout")
	cmd.Flags().StringVar(&theme, "theme", "dark", "HTML theme: dark or light")
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "omit the run summary header")
	return cmd
}

// resolveRun finds a run by id or unique id prefix.
func resolveRun(ctx context.Context, journal *storage.Journal, id string) (*storage.RunSummary, error) {
	if run, err := journal.Run(ctx, id); err == nil {
		return run, nil
	}

	runs, err := journal.Runs(ctx, 0)
	if err != nil {
		return nil, err
	}
	var matches []storage.RunSummary
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous (%d matches)", id, len(matches))
	}
}

func parseEventTypes(names []string) ([]agent.EventType, error) {
	types := make([]agent.EventType, 0, len(names))
	for _, name := range names {
		t, err := agent.ParseEventType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func renderRunEvents(w io.Writer, run *storage.RunSummary, events []agent.Event, width int) {
	fmt.Fprintln(w, TitleStyle.Render(run.Title))
	fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("run"), run.ID)
	if run.Goal != "" {
		fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("goal"), run.Goal)
	}
	fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("state"), StateStyle(run.State).Render(run.State.String()))
	fmt.Fprintf(w, "%s %d/%d\n", LabelStyle.Render("steps"), run.CompletedSteps, run.TotalSteps)
	if run.Error != "" {
		fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("error"), ErrorStyle.Render(run.Error))
	}
	fmt.Fprintln(w, RenderSeparator(min(width, 70)))
	for _, ev := range events {
		fmt.Fprintln(w, renderEvent(ev, width))
	}
}

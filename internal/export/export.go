// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-agent/internal/agent"
	"github.com/jeranaias/rigrun-agent/internal/storage"
	"github.com/jeranaias/rigrun-agent/internal/util"
)

// =============================================================================
// REPORT
// =============================================================================

// Report is one journaled run together with its events.
type Report struct {
	Run    *storage.RunSummary `json:"run"`
	Events []agent.Event       `json:"events"`
}

// validate rejects reports the exporters cannot render.
func (r *Report) validate() error {
	if r == nil || r.Run == nil {
		return errors.New("report has no run")
	}
	if r.Run.StartedAt.IsZero() {
		return errors.New("run has invalid start timestamp")
	}
	return nil
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for run report exporters.
type Exporter interface {
	// Export converts a report to the target format and returns the content.
	Export(r *Report) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".html").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Format names an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or a common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (use markdown, html or json)", s)
	}
}

// New returns the exporter for format.
func New(format Format, opts *Options) (Exporter, error) {
	switch format {
	case FormatMarkdown:
		return NewMarkdownExporter(opts), nil
	case FormatHTML:
		return NewHTMLExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where ExportToFile writes when no path is given
	OutputDir string

	// IncludeMetadata includes the run summary header
	IncludeMetadata bool

	// IncludeTimestamps includes per-event timestamps
	IncludeTimestamps bool

	// Theme for HTML export ("light" or "dark")
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Theme:             "dark",
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile exports r with exporter and writes the result. An empty path
// means a generated file name in opts.OutputDir. Returns the path written.
func ExportToFile(r *Report, exporter Exporter, path string, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(r)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if path == "" {
		path = filepath.Join(opts.OutputDir, DefaultFilename(r, exporter))
	}
	if err := util.AtomicWriteFileWithDir(path, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// DefaultFilename is run_<title>_<short id><ext>.
func DefaultFilename(r *Report, exporter Exporter) string {
	id := r.Run.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("run_%s_%s%s", sanitizeFilename(r.Run.Title), id, exporter.FileExtension())
}

// WriteFile exports r in format to path.
func WriteFile(r *Report, format Format, path string, opts *Options) (string, error) {
	exporter, err := New(format, opts)
	if err != nil {
		return "", err
	}
	return ExportToFile(r, exporter, path, opts)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > 50 {
		runes = runes[:50]
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			result = append(result, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			result = append(result, '_')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "plan"
	}
	return string(result)
}

// formatDuration formats a duration in milliseconds to a human-readable string.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	if seconds < 60 {
		return fmt.Sprintf("%.2fs", seconds)
	}
	minutes := int(seconds / 60)
	return fmt.Sprintf("%dm %ds", minutes, int(seconds)%60)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}

// outcome summarises how far a run got.
func outcome(run *storage.RunSummary) string {
	switch run.State {
	case agent.StateCompleted:
		return "completed"
	case agent.StateFailed:
		return "failed"
	case agent.StateCancelled:
		return "cancelled"
	default:
		return "stopped while " + run.State.String()
	}
}

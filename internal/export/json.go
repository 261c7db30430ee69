// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/rigrun-agent/internal/agent"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports run reports to JSON. The output always holds the full
// run and every event, whatever the options say, so it can be re-read.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a report to indented JSON.
func (e *JSONExporter) Export(r *Report) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if r.Events == nil {
		r = &Report{Run: r.Run, Events: []agent.Event{}}
	}
	return json.MarshalIndent(r, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

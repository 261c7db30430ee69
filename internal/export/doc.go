// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders journaled runs as shareable reports.
//
// # Key Types
//
//   - Report: a storage.RunSummary plus its recorded events
//   - Exporter: converts a Report to bytes (Markdown, HTML, JSON)
//   - Options: metadata, timestamp and theme switches
//
// # Supported Formats
//
//   - Markdown: frontmatter, run summary, event table and step output
//   - HTML: standalone page with embedded CSS, dark or light theme
//   - JSON: the full report, always unfiltered
//
// # Usage
//
//	report := &export.Report{Run: run, Events: events}
//	path, err := export.WriteFile(report, export.FormatMarkdown, "", nil)
package export

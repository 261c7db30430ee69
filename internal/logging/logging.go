// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the structured loggers used across rigrun-agent.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// =============================================================================
// FORMAT
// =============================================================================

// Format is the log output encoding.
type Format int

const (
	// FormatText writes logfmt-style key=value lines
	FormatText Format = iota

	// FormatJSON writes one JSON object per line
	FormatJSON
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	default:
		return "text"
	}
}

// ParseFormat parses a format name. Unknown names give FormatText.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// ValidFormat reports whether s names a known format.
func ValidFormat(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "text":
		return true
	}
	return false
}

// =============================================================================
// LEVEL
// =============================================================================

// ParseLevel parses a level name. Unknown names give slog.LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a known level.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// =============================================================================
// LOGGER
// =============================================================================

// Config holds logger settings.
type Config struct {
	Level     slog.Level
	Format    Format
	AddSource bool
}

// DefaultConfig logs at info level as text.
func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, Format: FormatText}
}

// New creates a logger writing to w.
func New(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

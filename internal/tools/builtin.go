// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"
)

// =============================================================================
// BUILT-IN TOOL DEFINITIONS
// =============================================================================

// Builtin describes a tool name the planner knows about by default.
type Builtin struct {
	Name        string
	Description string
	RiskLevel   RiskLevel
}

// Builtins lists the default planner tools and their risk.
var Builtins = []Builtin{
	{Name: "read_file", Description: "Read the contents of a file", RiskLevel: RiskLow},
	{Name: "write_file", Description: "Create or overwrite a file", RiskLevel: RiskHigh},
	{Name: "edit_file", Description: "Apply an in-place edit to a file", RiskLevel: RiskMedium},
	{Name: "execute_command", Description: "Run a shell command", RiskLevel: RiskCritical},
	{Name: "search_files", Description: "Find files by glob pattern", RiskLevel: RiskLow},
	{Name: "search_content", Description: "Search file contents by pattern", RiskLevel: RiskLow},
}

// DryRunHandler reports what a tool would have done without doing it.
type DryRunHandler struct {
	Name string
}

// Run returns a description of the call. It fails only when ctx is done.
func (h DryRunHandler) Run(ctx context.Context, args map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(args) == 0 {
		return fmt.Sprintf("dry run: %s", h.Name), nil
	}
	return fmt.Sprintf("dry run: %s %v", h.Name, args), nil
}

// NewDryRunRegistry returns a registry holding every builtin backed by a
// DryRunHandler.
func NewDryRunRegistry() *Registry {
	r := NewRegistry()
	for _, b := range Builtins {
		r.Register(&Tool{
			Name:        b.Name,
			Description: b.Description,
			RiskLevel:   b.RiskLevel,
			Handler:     DryRunHandler{Name: b.Name},
		})
	}
	return r
}

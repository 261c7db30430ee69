// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-agent/internal/config"
	"github.com/jeranaias/rigrun-agent/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app holds state shared by every command of one invocation.
type app struct {
	// Flags
	configPath string
	verbose    bool
	jsonMode   bool

	cfg    *config.Config
	logger *slog.Logger

	// logFile is closed when the command finishes
	logFile io.Closer
}

// setup loads configuration and builds the logger. It runs before every
// command.
func (a *app) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := cfg.LoggingSettings()
	if a.verbose {
		logCfg.Level = slog.LevelDebug
	}

	var w io.Writer = cmd.ErrOrStderr()
	if path := cfg.Logging.File; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.logFile = f
		w = f
	}
	a.logger = logging.New(logCfg, w)
	a.logger.Debug("configuration loaded", "command", cmd.Name(), "path", a.configPath)
	return nil
}

func (a *app) teardown() error {
	if a.logFile == nil {
		return nil
	}
	err := a.logFile.Close()
	a.logFile = nil
	return err
}

// NewRootCommand builds the rigrun-agent command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "rigrun-agent",
		Short: "Plan and execute multi-step agent work with approval gates",
		Long: `rigrun-agent turns an LLM-produced plan into a dependency-ordered run.

Plans are JSON documents (optionally wrapped in prose) listing numbered steps,
the tools each step uses, its risk level and its dependencies. rigrun-agent
validates the plan, executes steps one at a time in dependency order, and
stops for human approval before any step that is risky or marked for review.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default is $HOME/.rigrun-agent/config.toml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "write machine-readable JSON output")

	root.AddCommand(
		newPromptCommand(a),
		newPlanCommand(a),
		newGenerateCommand(a),
		newRunCommand(a),
		newJournalCommand(a),
		newConfigCommand(a),
	)
	return root
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

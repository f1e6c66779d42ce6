// Package cli provides the command-line interface for the Steward task
// engine.
package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/logging"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// globalLogger stores the initialized logger for use by subcommands. It is
// set during PersistentPreRunE and accessed via GetLogger.
var (
	globalLogger   zerolog.Logger //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex   //nolint:gochecknoglobals // Protects globalLogger
)

// GetLogger returns the initialized logger for use by subcommands. Only
// valid after the root command's PersistentPreRunE has executed.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// rootState carries config and cleanup shared by subcommands.
type rootState struct {
	cfg       *config.Config
	logCloser io.Closer
}

// newRootCmd creates the root command for the steward CLI.
func newRootCmd(info BuildInfo) *cobra.Command {
	state := &rootState{}
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "steward",
		Short: "Steward - stateful task execution engine",
		Long: `Steward runs long-lived user tasks through an agentic step loop:
each step consults a chat model, executes at most one tool, and records
everything in a durable conversation ledger. Tasks pause for user input and
resume where they left off.`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			state.cfg = cfg

			level := cfg.Log.Level
			if verbose {
				level = "debug"
			}
			logger, closer, err := logging.Init(level, cfg.Log.File)
			if err != nil {
				return err
			}
			state.logCloser = closer

			globalLoggerMu.Lock()
			globalLogger = logger
			globalLoggerMu.Unlock()

			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if state.logCloser != nil {
				_ = state.logCloser.Close()
			}
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newServeCmd(state))
	cmd.AddCommand(newMigrateCmd(state))
	cmd.AddCommand(newTaskCmd(state))

	return cmd
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command with the provided context and build info.
func Execute(ctx context.Context, info BuildInfo) error {
	cmd := newRootCmd(info)
	return cmd.ExecuteContext(ctx)
}

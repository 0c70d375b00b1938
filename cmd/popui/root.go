// Package main provides the CLI entrypoint for popui.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/popui/internal/config"
	"github.com/jmylchreest/popui/internal/session"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		document   string
		record     string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "popui",
	Short: "Drive popup overlays on an HTML page from the terminal",
	Long: `popui loads an HTML page and binds popup overlays to its trigger
elements, then lets you open, close and hand off popups the way a browser
user would: clicking triggers, pressing Escape, clicking the background,
resizing and scrolling the window.

Remote popups fetch their content as JSON mutations before opening; the
serve command provides canned content for local testing.

Running popui without a subcommand launches the interactive TUI.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalOpts.document != "" {
			cfg.Document.Path = globalOpts.document
		}
		return nil
	},
	// Default to TUI when no subcommand is provided
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/popui/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.document, "document", "d", "",
		"HTML document to load (overrides [document] path)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.record, "record", "",
		"Append lifecycle journal entries to this JSONL file (default path when given without a value)")
	rootCmd.PersistentFlags().Lookup("record").NoOptDefVal = config.JournalPath()
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// openRecorder opens the journal file requested with --record, if any.
// The returned close function is always safe to call.
func openRecorder() (session.Recorder, func(), error) {
	if globalOpts.record == "" {
		return nil, func() {}, nil
	}
	f, err := session.OpenJournalFile(globalOpts.record)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open journal file: %w", err)
	}
	logger.Debug("recording journal", "path", f.Path())
	return f, func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close journal file", "error", err)
		}
	}, nil
}

// getConfig returns the global config instance.
func getConfig() *config.Config {
	return cfg
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/popui/internal/tui"
)

var tuiOpts struct {
	logFile string
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive page driver",
	Long: `Launch the terminal user interface for driving popups on a page.

The TUI provides:
  - List of popup triggers found on the page
  - Page state: scroll offset, body classes and compensation padding
  - Content of the open popup
  - Lifecycle journal, including remote fetch outcomes
  - Live reload when [document] watch is enabled

Key bindings:
  tab/shift+tab  Select trigger
  enter          Click selected trigger
  esc            Press Escape on the page
  b              Click the open popup's background
  x              Click the open popup's close button
  w              Resize the window to the terminal size
  j/k, ↓/↑       Scroll the page
  r              Reload the document
  s              Show session snapshot (y copies it)
  ?              Show help
  q              Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().StringVar(&tuiOpts.logFile, "log-file", "",
		"Write logs to this file (the TUI owns the terminal, so logs are discarded by default)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	// The alt screen owns stderr; route logs to a file or nowhere.
	var w io.Writer = io.Discard
	if tuiOpts.logFile != "" {
		f, err := os.OpenFile(tuiOpts.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		w = f
	}
	level := slog.LevelInfo
	if globalOpts.verbose {
		level = slog.LevelDebug
	}
	tuiLogger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))

	recorder, closeRecorder, err := openRecorder()
	if err != nil {
		return err
	}
	defer closeRecorder()

	return tui.Run(tui.RunOptions{
		Config:   getConfig(),
		Logger:   tuiLogger,
		Recorder: recorder,
	})
}

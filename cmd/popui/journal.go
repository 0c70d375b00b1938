package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/popui/internal/config"
	"github.com/jmylchreest/popui/internal/session"
)

var journalOpts struct {
	// Filter options
	since string
	popup string
	kind  string
	limit int

	// Output options
	format string
}

var journalCmd = &cobra.Command{
	Use:   "journal [file]",
	Short: "Print a recorded lifecycle journal",
	Long: `Print lifecycle journal entries recorded with --record.

Without a file argument, reads the default journal
(~/.local/share/popui/journal.jsonl).

Examples:
  # Record a TUI session, then review it
  popui --record tui
  popui journal

  # Only remote failures in the last hour
  popui journal --kind error --since 1h

  # Machine-readable output
  popui journal --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)

	journalCmd.Flags().StringVar(&journalOpts.since, "since", "",
		"Show entries from the last duration (e.g., 2h, 7d, 1w)")
	journalCmd.Flags().StringVar(&journalOpts.popup, "popup", "",
		"Filter by popup target id")
	journalCmd.Flags().StringVar(&journalOpts.kind, "kind", "",
		"Filter by kind (open, close, error, complete, reload, navigate)")
	journalCmd.Flags().IntVarP(&journalOpts.limit, "limit", "n", 0,
		"Maximum number of entries to show, most recent kept (0=unlimited)")
	journalCmd.Flags().StringVarP(&journalOpts.format, "format", "f", "plain",
		"Output format (plain, json, yaml)")
}

func runJournal(cmd *cobra.Command, args []string) error {
	path := config.JournalPath()
	if len(args) > 0 {
		path = args[0]
	}

	entries, err := session.ReadJournalFile(path)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	logger.Debug("read journal", "path", path, "entries", len(entries))

	since, err := session.ParseDuration(journalOpts.since)
	if err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}
	entries = session.Filter(entries, session.FilterOptions{
		Since: since,
		Popup: journalOpts.popup,
		Kind:  session.Kind(journalOpts.kind),
		Limit: journalOpts.limit,
	})

	switch journalOpts.format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	case "plain":
		for _, e := range entries {
			fmt.Println(formatEntry(e))
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q, must be one of: plain, json, yaml", journalOpts.format)
	}
}

func formatEntry(e session.Entry) string {
	line := fmt.Sprintf("%s  %-8s %s", humanize.Time(e.At), e.Kind, e.Popup)
	if e.Detail != "" {
		line += " (" + e.Detail + ")"
	}
	return line
}

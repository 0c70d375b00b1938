// Package output provides output formatters for session snapshots.
package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/popui/internal/session"
)

// Formatter formats a snapshot for output.
type Formatter interface {
	// Format writes the formatted snapshot to the writer.
	Format(w io.Writer, snap session.Snapshot) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatList  FormatType = "list"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
)

// FormatTypes lists the supported formats.
func FormatTypes() []FormatType {
	return []FormatType{FormatPlain, FormatList, FormatJSON, FormatYAML}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) (Formatter, error) {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts), nil
	case FormatYAML:
		return NewYAMLFormatter(opts), nil
	case FormatList:
		return NewListFormatter(opts), nil
	case FormatPlain, "":
		return NewPlainFormatter(opts)
	default:
		return nil, fmt.Errorf("unknown format %q, must be one of: %v", format, FormatTypes())
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template     string // Custom template for plain format
	ShowJournal  bool   // Include the lifecycle journal
	JournalLimit int    // Most recent entries to show (0 = all)
	Separator    string // Field separator for list format
}

// DefaultFormatterOptions returns sensible defaults.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowJournal:  true,
		JournalLimit: 20,
		Separator:    " | ",
	}
}

// journal returns the entries the options ask for.
func (o FormatterOptions) journal(snap session.Snapshot) []session.Entry {
	if !o.ShowJournal {
		return nil
	}
	entries := snap.Journal
	if o.JournalLimit > 0 && len(entries) > o.JournalLimit {
		entries = entries[len(entries)-o.JournalLimit:]
	}
	return entries
}

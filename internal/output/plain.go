package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/popui/internal/session"
)

// PlainFormatter formats snapshots as human readable text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter. A custom template
// is executed with the snapshot as data.
func NewPlainFormatter(opts FormatterOptions) (*PlainFormatter, error) {
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err != nil {
			return nil, fmt.Errorf("invalid template: %w", err)
		}
		f.template = tmpl
	}

	return f, nil
}

// Format writes the snapshot as plain text.
func (f *PlainFormatter) Format(w io.Writer, snap session.Snapshot) error {
	if f.template != nil {
		return f.template.Execute(w, snap)
	}

	var sb strings.Builder

	if snap.Document != "" {
		fmt.Fprintf(&sb, "document: %s\n", snap.Document)
	}
	open := snap.Open
	if open == "" {
		open = "none"
	}
	fmt.Fprintf(&sb, "open:     %s\n", open)
	fmt.Fprintf(&sb, "scroll:   %d\n", snap.Scroll)
	if classes := snap.BodyClassList(); classes != "" {
		fmt.Fprintf(&sb, "body:     %s\n", classes)
	}
	if snap.BodyStyle != "" {
		fmt.Fprintf(&sb, "style:    %s\n", snap.BodyStyle)
	}
	if snap.Pending > 0 {
		fmt.Fprintf(&sb, "pending:  %d\n", snap.Pending)
	}
	if snap.Location != "" {
		fmt.Fprintf(&sb, "location: %s\n", snap.Location)
	}
	if snap.Reloads > 0 {
		fmt.Fprintf(&sb, "reloads:  %s\n", humanize.Comma(int64(snap.Reloads)))
	}

	sb.WriteString("\npopups:\n")
	if len(snap.Popups) == 0 {
		sb.WriteString("  (none)\n")
	}
	for _, p := range snap.Popups {
		fmt.Fprintf(&sb, "  [%s] %s  %s", stateMarker(p.State), p.Name, p.Trigger)
		if !p.Overlay {
			sb.WriteString("  (overlay missing)")
		}
		if p.Remote != "" {
			fmt.Fprintf(&sb, "  remote=%s", p.Remote)
		}
		if p.SavedScroll != nil {
			fmt.Fprintf(&sb, "  saved=%d", *p.SavedScroll)
		}
		sb.WriteString("\n")
	}

	if entries := f.opts.journal(snap); len(entries) > 0 {
		sb.WriteString("\njournal:\n")
		for _, e := range entries {
			sb.WriteString("  " + journalLine(e, snap.Taken) + "\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// stateMarker returns a one character marker for a popup state.
func stateMarker(state string) string {
	if state == "open" {
		return "*"
	}
	return " "
}

// journalLine formats an entry relative to now.
func journalLine(e session.Entry, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(relativeTime(e.At, now))
	sb.WriteString("  ")
	sb.WriteString(string(e.Kind))
	if e.Popup != "" {
		sb.WriteString(" " + e.Popup)
	}
	if e.Detail != "" {
		sb.WriteString(" (" + e.Detail + ")")
	}
	return sb.String()
}

// relativeTime returns a human-readable time of t as seen from now.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	if now.IsZero() {
		return humanize.Time(t)
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"join": strings.Join,
		"reltime": func(t time.Time) string {
			return humanize.Time(t)
		},
		"marker": stateMarker,
	}
}

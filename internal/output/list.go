package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jmylchreest/popui/internal/session"
)

// ListFormatter writes one line per popup, for dmenu/fzf style pickers.
type ListFormatter struct {
	opts FormatterOptions
}

// NewListFormatter creates a new list formatter.
func NewListFormatter(opts FormatterOptions) *ListFormatter {
	return &ListFormatter{opts: opts}
}

// Format writes the popups of the snapshot, one per line.
func (f *ListFormatter) Format(w io.Writer, snap session.Snapshot) error {
	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}
	for i, p := range snap.Popups {
		parts := []string{fmt.Sprintf("%d", i+1), p.Name, p.State, p.Trigger}
		if p.Remote != "" {
			parts = append(parts, p.Remote)
		}
		if _, err := fmt.Fprintln(w, strings.Join(parts, sep)); err != nil {
			return err
		}
	}
	return nil
}

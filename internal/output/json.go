package output

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/popui/internal/session"
)

// JSONFormatter formats snapshots as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes the snapshot as an indented JSON object.
func (f *JSONFormatter) Format(w io.Writer, snap session.Snapshot) error {
	snap.Journal = f.opts.journal(snap)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snap)
}

// YAMLFormatter formats snapshots as YAML.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// Format writes the snapshot as a YAML document.
func (f *YAMLFormatter) Format(w io.Writer, snap session.Snapshot) error {
	snap.Journal = f.opts.journal(snap)
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(snap); err != nil {
		return err
	}
	return encoder.Close()
}

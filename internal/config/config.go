// Package config handles configuration file loading and parsing.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/popui/internal/dom"
	"github.com/jmylchreest/popui/internal/popup"
)

// DefaultJournalLines is how many journal entries the TUI shows.
const DefaultJournalLines = 8

// Configuration errors.
var (
	ErrMissingTrigger = errors.New("popup entry needs a trigger selector")
	ErrBadMetric      = errors.New("document metric cannot be negative")
)

// Duration is a time.Duration read from strings like "5s" or "1m30s", or
// from an integer number of milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config represents the popui configuration.
type Config struct {
	Document DocumentConfig `toml:"document"`
	Defaults Overrides      `toml:"defaults"`
	TUI      TUIConfig      `toml:"tui"`
	Popups   []PopupEntry   `toml:"popup,omitempty"`
}

// TUIConfig holds TUI-specific settings.
type TUIConfig struct {
	JournalLines int    `toml:"journal_lines"` // journal entries shown in the side panel
	Clipboard    string `toml:"clipboard"`     // auto-detected if empty
}

// DocumentConfig describes the page popups live on and its simulated layout.
type DocumentConfig struct {
	Path           string `toml:"path"`
	ViewportWidth  int    `toml:"viewport_width"`
	ViewportHeight int    `toml:"viewport_height"`
	ContentHeight  int    `toml:"content_height"`
	ScrollbarWidth int    `toml:"scrollbar_width"` // 0 for overlay scrollbars
	UserAgent      string `toml:"user_agent"`
	Watch          bool   `toml:"watch"` // reload the TUI when the file changes
}

// Overrides holds popup settings that differ from the built-in defaults.
// Unset fields keep the value underneath.
type Overrides struct {
	OpenedClass            *string `toml:"opened_class,omitempty"`
	OpenedBodyClass        *string `toml:"opened_body_class,omitempty"`
	CloseButton            *string `toml:"close_button,omitempty"`
	EventNamespace         *string `toml:"event_namespace,omitempty"`
	LockScreen             *bool   `toml:"lock_screen,omitempty"`
	CloseOnBackgroundClick *bool   `toml:"close_on_background,omitempty"`
	CloseOnEscape          *bool   `toml:"close_on_escape,omitempty"`
	CloseOnResize          *bool   `toml:"close_on_resize,omitempty"`
	OpenOnActivate         *bool   `toml:"open_on_activate,omitempty"`

	// Hook names, resolved against the host's hook set.
	BeforeOpen  string `toml:"before_open,omitempty"`
	AfterOpen   string `toml:"after_open,omitempty"`
	BeforeClose string `toml:"before_close,omitempty"`
	AfterClose  string `toml:"after_close,omitempty"`

	Remote *RemoteConfig `toml:"remote,omitempty"`
}

// RemoteConfig configures content fetched before a popup opens.
type RemoteConfig struct {
	URL     string            `toml:"url"`
	Query   map[string]string `toml:"query,omitempty"`
	Timeout Duration          `toml:"timeout,omitempty"` // 0 uses the transport default
}

// PopupEntry binds the elements matching Trigger to popups.
type PopupEntry struct {
	Name    string `toml:"name,omitempty"`
	Trigger string `toml:"trigger"`          // CSS selector
	Target  string `toml:"target,omitempty"` // defaults to the trigger's data-popup-target

	Overrides
}

// Label names the entry for logs and listings.
func (e PopupEntry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Trigger
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Document: DocumentConfig{
			ViewportWidth:  dom.DefaultViewportWidth,
			ViewportHeight: dom.DefaultViewportHeight,
			ContentHeight:  dom.DefaultContentHeight,
			ScrollbarWidth: dom.DefaultScrollbarWidth,
			UserAgent:      dom.DefaultUserAgent,
		},
		TUI: TUIConfig{
			JournalLines: DefaultJournalLines,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "popui", "config.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "popui")
}

// JournalPath returns the default path of the recorded journal.
func JournalPath() string {
	return filepath.Join(DataPath(), "journal.jsonl")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("failed to parse config file: %w\n%s", err, strict.String())
		}
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for values no popup could work with.
func (c *Config) Validate() error {
	d := c.Document
	if d.ViewportWidth < 0 || d.ViewportHeight < 0 || d.ContentHeight < 0 || d.ScrollbarWidth < 0 {
		return ErrBadMetric
	}
	for i, e := range c.Popups {
		if e.Trigger == "" {
			return fmt.Errorf("popup %d: %w", i, ErrMissingTrigger)
		}
		if _, err := c.PopupConfig(e, nil, nil); err != nil {
			return fmt.Errorf("popup %s: %w", e.Label(), err)
		}
	}
	return nil
}

// Metrics returns the document layout, with zero values replaced by the
// defaults. ScrollbarWidth is taken as is.
func (d DocumentConfig) Metrics() dom.Metrics {
	m := dom.DefaultMetrics()
	if d.ViewportWidth > 0 {
		m.ViewportWidth = d.ViewportWidth
	}
	if d.ViewportHeight > 0 {
		m.ViewportHeight = d.ViewportHeight
	}
	if d.ContentHeight > 0 {
		m.ContentHeight = d.ContentHeight
	}
	if d.UserAgent != "" {
		m.UserAgent = d.UserAgent
	}
	m.ScrollbarWidth = d.ScrollbarWidth
	return m
}

// Options converts the overrides, resolving hook names against hooks.
func (o Overrides) Options(hooks popup.HookSet, logger *slog.Logger) popup.Options {
	opts := popup.Options{
		OpenedClass:            o.OpenedClass,
		OpenedBodyClass:        o.OpenedBodyClass,
		CloseButtonSelector:    o.CloseButton,
		EventNamespace:         o.EventNamespace,
		LockScreen:             o.LockScreen,
		CloseOnBackgroundClick: o.CloseOnBackgroundClick,
		CloseOnEscape:          o.CloseOnEscape,
		CloseOnResize:          o.CloseOnResize,
		OpenOnActivate:         o.OpenOnActivate,
	}
	if hooks != nil {
		opts.BeforeOpen = hooks.Resolve(o.BeforeOpen, logger)
		opts.AfterOpen = hooks.Resolve(o.AfterOpen, logger)
		opts.BeforeClose = hooks.Resolve(o.BeforeClose, logger)
		opts.AfterClose = hooks.Resolve(o.AfterClose, logger)
	}
	if o.Remote != nil {
		opts.Remote = o.Remote.remote()
	}
	return opts
}

func (r *RemoteConfig) remote() *popup.Remote {
	rem := &popup.Remote{
		URL:     r.URL,
		Timeout: r.Timeout.Duration(),
	}
	if len(r.Query) > 0 {
		rem.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			rem.Query.Set(k, v)
		}
	}
	return rem
}

// PopupConfig layers the built-in defaults, the [defaults] table and the
// entry's own settings into a popup configuration. TargetID may still be
// empty, in which case each trigger supplies it.
func (c *Config) PopupConfig(e PopupEntry, hooks popup.HookSet, logger *slog.Logger) (popup.Config, error) {
	cfg := popup.Merge(popup.DefaultConfig(), c.Defaults.Options(hooks, logger))
	cfg = popup.Merge(cfg, e.Options(hooks, logger))
	if e.Target != "" {
		cfg.TargetID = e.Target
	}

	check := cfg
	if check.TargetID == "" {
		check.TargetID = "-"
	}
	if err := check.Validate(); err != nil {
		return popup.Config{}, err
	}
	return cfg, nil
}

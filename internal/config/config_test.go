package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/popui/internal/dom"
	"github.com/jmylchreest/popui/internal/popup"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Empty(t, cfg.Document.Path)
	assert.Equal(t, dom.DefaultMetrics(), cfg.Document.Metrics())
	assert.False(t, cfg.Document.Watch)
	assert.Empty(t, cfg.Popups)
	assert.Equal(t, DefaultJournalLines, cfg.TUI.JournalLines)
	assert.Empty(t, cfg.TUI.Clipboard)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_ParsesTOML(t *testing.T) {
	path := writeConfig(t, `
[document]
path = "page.html"
viewport_height = 30
content_height = 400
scrollbar_width = 17
watch = true

[defaults]
close_on_resize = true
after_open = "log"

[tui]
clipboard = "wl-copy"

[[popup]]
name = "login"
trigger = "#open-login"
target = "login"
opened_class = "is-open"
lock_screen = false

[[popup]]
trigger = "[data-popup-remote]"

[popup.remote]
url = "http://localhost:8080/popup/news"
timeout = "5s"

[popup.remote.query]
lang = "en"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "page.html", cfg.Document.Path)
	assert.Equal(t, 30, cfg.Document.ViewportHeight)
	assert.Equal(t, 400, cfg.Document.ContentHeight)
	assert.Equal(t, 17, cfg.Document.ScrollbarWidth)
	assert.True(t, cfg.Document.Watch)
	// Unset keys keep their defaults
	assert.Equal(t, dom.DefaultViewportWidth, cfg.Document.ViewportWidth)
	assert.Equal(t, "wl-copy", cfg.TUI.Clipboard)
	assert.Equal(t, DefaultJournalLines, cfg.TUI.JournalLines)

	require.NotNil(t, cfg.Defaults.CloseOnResize)
	assert.True(t, *cfg.Defaults.CloseOnResize)
	assert.Equal(t, "log", cfg.Defaults.AfterOpen)

	require.Len(t, cfg.Popups, 2)
	login := cfg.Popups[0]
	assert.Equal(t, "login", login.Label())
	assert.Equal(t, "#open-login", login.Trigger)
	assert.Equal(t, "login", login.Target)
	require.NotNil(t, login.OpenedClass)
	assert.Equal(t, "is-open", *login.OpenedClass)
	require.NotNil(t, login.LockScreen)
	assert.False(t, *login.LockScreen)

	news := cfg.Popups[1]
	assert.Equal(t, "[data-popup-remote]", news.Label())
	require.NotNil(t, news.Remote)
	assert.Equal(t, "http://localhost:8080/popup/news", news.Remote.URL)
	assert.Equal(t, 5*time.Second, news.Remote.Timeout.Duration())
	assert.Equal(t, map[string]string{"lang": "en"}, news.Remote.Query)
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := writeConfig(t, `
[defaults]
close_on_scroll = true
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close_on_scroll")
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := writeConfig(t, `this is not valid toml [`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing trigger",
			content: "[[popup]]\ntarget = \"x\"\n",
			wantErr: ErrMissingTrigger,
		},
		{
			name:    "negative metric",
			content: "[document]\nviewport_height = -1\n",
			wantErr: ErrBadMetric,
		},
		{
			name:    "empty opened class",
			content: "[[popup]]\ntrigger = \"#t\"\nopened_class = \"\"\n",
			wantErr: popup.ErrEmptyOpenedClass,
		},
		{
			name:    "negative timeout",
			content: "[[popup]]\ntrigger = \"#t\"\n[popup.remote]\nurl = \"/x\"\ntimeout = \"-1s\"\n",
			wantErr: popup.ErrNegativeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "5s", want: 5 * time.Second},
		{in: "1m30s", want: 90 * time.Second},
		{in: "250", want: 250 * time.Millisecond},
		{in: "0", want: 0},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration())
		})
	}
}

func TestConfig_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config.toml")

	on := true
	cfg := DefaultConfig()
	cfg.Document.Path = "page.html"
	cfg.Popups = []PopupEntry{{
		Name:    "news",
		Trigger: "#news",
		Overrides: Overrides{
			CloseOnResize: &on,
			Remote:        &RemoteConfig{URL: "/popup/news", Timeout: Duration(2 * time.Second)},
		},
	}}

	require.NoError(t, cfg.Save(path))
	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "page.html", loaded.Document.Path)
	require.Len(t, loaded.Popups, 1)
	assert.Equal(t, "#news", loaded.Popups[0].Trigger)
	require.NotNil(t, loaded.Popups[0].CloseOnResize)
	assert.True(t, *loaded.Popups[0].CloseOnResize)
	require.NotNil(t, loaded.Popups[0].Remote)
	assert.Equal(t, 2*time.Second, loaded.Popups[0].Remote.Timeout.Duration())
}

func TestConfig_PopupConfig(t *testing.T) {
	resize, lock := true, false
	class := "visible"
	cfg := DefaultConfig()
	cfg.Defaults = Overrides{CloseOnResize: &resize, OpenedClass: &class, AfterOpen: "track"}

	var tracked, closed int
	hooks := popup.HookSet{
		"track": func(*popup.Popup) { tracked++ },
		"done":  func(*popup.Popup) { closed++ },
	}

	entry := PopupEntry{
		Trigger: "#login",
		Target:  "login",
		Overrides: Overrides{
			LockScreen: &lock,
			AfterClose: "done",
			BeforeOpen: "missing",
			Remote:     &RemoteConfig{URL: "/popup/login", Query: map[string]string{"a": "1"}},
		},
	}

	pc, err := cfg.PopupConfig(entry, hooks, nil)
	require.NoError(t, err)

	assert.Equal(t, "login", pc.TargetID)
	assert.Equal(t, "visible", pc.OpenedClass)
	assert.True(t, pc.CloseOnResize)
	assert.False(t, pc.LockScreen)
	assert.True(t, pc.CloseOnEscape)
	assert.Nil(t, pc.BeforeOpen)

	require.NotNil(t, pc.AfterOpen)
	require.NotNil(t, pc.AfterClose)
	pc.AfterOpen(nil)
	pc.AfterClose(nil)
	assert.Equal(t, 1, tracked)
	assert.Equal(t, 1, closed)

	require.NotNil(t, pc.Remote)
	assert.Equal(t, "/popup/login", pc.Remote.URL)
	assert.Equal(t, "1", pc.Remote.Query.Get("a"))
}

func TestConfig_PopupConfig_EntryOverridesDefaults(t *testing.T) {
	on, off := true, false
	cfg := DefaultConfig()
	cfg.Defaults = Overrides{CloseOnEscape: &off, Remote: &RemoteConfig{URL: "/shared"}}

	pc, err := cfg.PopupConfig(PopupEntry{Trigger: "#t", Overrides: Overrides{CloseOnEscape: &on}}, nil, nil)
	require.NoError(t, err)
	assert.True(t, pc.CloseOnEscape)
	assert.Empty(t, pc.TargetID)
	require.NotNil(t, pc.Remote)
	assert.Equal(t, "/shared", pc.Remote.URL)
}

func TestDocumentConfig_Metrics(t *testing.T) {
	m := DocumentConfig{ViewportHeight: 10, ScrollbarWidth: 0, UserAgent: "Android"}.Metrics()
	assert.Equal(t, 10, m.ViewportHeight)
	assert.Equal(t, dom.DefaultContentHeight, m.ContentHeight)
	assert.Equal(t, 0, m.ScrollbarWidth)
	assert.Equal(t, "Android", m.UserAgent)
}

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/popui/config.toml", ConfigPath())
}

func TestConfigPathDefault(t *testing.T) {
	path := ConfigPath()
	assert.Contains(t, path, "popui/config.toml")
}

func TestJournalPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	assert.Equal(t, "/custom/data/popui", DataPath())
	assert.Equal(t, "/custom/data/popui/journal.jsonl", JournalPath())
}

package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/popui/internal/config"
	"github.com/jmylchreest/popui/internal/popup"
)

const page = `<!DOCTYPE html>
<html><body>
<a id="open-login" data-popup-target="login">Log in</a>
<a id="open-news" data-popup-target="news" data-popup-remote="http://fixture.test/popup/news">News</a>
<div class="popup" data-popup-id="login">
  <div class="popup__inner"><span class="popup__close">x</span><p>Hello</p></div>
</div>
<div class="popup" data-popup-id="news"><div class="popup__inner"></div></div>
</body></html>`

// syncTransport answers every request immediately.
type syncTransport struct {
	mutation *popup.Mutation
	err      error
	urls     []string
}

func (s *syncTransport) Send(_ context.Context, req *popup.Request) {
	if req.OnBeforeSend != nil && !req.OnBeforeSend(req) {
		return
	}
	s.urls = append(s.urls, req.URL)
	if s.err != nil {
		req.OnError(s.err)
	} else {
		req.OnSuccess(s.mutation)
	}
	req.OnComplete()
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return at }
}

func newSession(t *testing.T, cfg *config.Config, opts ...Option) *Session {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Document.ContentHeight = 200
	opts = append([]Option{WithHTML(page), WithClock(fixedClock())}, opts...)
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	return s
}

func TestNew_NoDocument(t *testing.T) {
	_, err := New(config.DefaultConfig())
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestNew_MissingFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Document.Path = filepath.Join(t.TempDir(), "missing.html")
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNew_DiscoversTriggers(t *testing.T) {
	s := newSession(t, nil, WithTransport(&syncTransport{}))

	require.Len(t, s.Bindings(), 2)
	assert.Equal(t, "login", s.Bindings()[0].Popup.TargetID())
	assert.Equal(t, "news", s.Bindings()[1].Popup.TargetID())
	assert.Equal(t, "http://fixture.test/popup/news", s.Bindings()[1].Popup.Config().Remote.URL)
}

func TestNew_ConfiguredEntries(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Popups = []config.PopupEntry{
		{Name: "login", Trigger: "#open-login", Overrides: config.Overrides{AfterOpen: "mark-visited"}},
		{Name: "ghost", Trigger: "#nothing-here"},
	}
	s := newSession(t, cfg, WithTransport(&syncTransport{}))

	require.Len(t, s.Bindings(), 1)
	assert.Equal(t, "login", s.Bindings()[0].Entry.Name)

	require.NoError(t, s.Click("#open-login"))
	assert.True(t, s.Document().HasClass(s.Document().FindByID("open-login"), "popup-visited"))
}

func TestSession_Handoff(t *testing.T) {
	s := newSession(t, nil, WithTransport(&syncTransport{mutation: &popup.Mutation{}}))

	assert.True(t, s.Scroll(25))
	require.NoError(t, s.Click("#open-login"))
	assert.False(t, s.Scroll(10), "page is locked while a popup is open")

	require.NoError(t, s.Click("#open-news"))
	require.NoError(t, s.Settle(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, "news", snap.Open)
	open, ok := snap.OpenState()
	require.True(t, ok)
	require.NotNil(t, open.SavedScroll)
	assert.Equal(t, 25, *open.SavedScroll)
	assert.Contains(t, snap.BodyClasses, popup.DefaultOpenedBodyClass)

	s.PressKey("Escape")
	assert.Equal(t, 25, s.Document().ScrollOffset())
	assert.Equal(t, []Kind{KindOpen, KindClose, KindOpen, KindComplete, KindClose}, s.Journal().Kinds())
}

func TestSession_RemoteError(t *testing.T) {
	ft := &syncTransport{err: errors.New("connection refused")}
	s := newSession(t, nil, WithTransport(ft))

	require.NoError(t, s.Click("#open-news"))
	require.NoError(t, s.Settle(context.Background()))

	assert.Equal(t, []string{"http://fixture.test/popup/news"}, ft.urls)
	assert.Equal(t, []Kind{KindError, KindComplete}, s.Journal().Kinds())
	assert.Equal(t, "connection refused", s.Journal().Entries()[0].Detail)
	assert.Equal(t, "news", s.Journal().Entries()[0].Popup)
	assert.Empty(t, s.Snapshot().Open)
}

func TestSession_CloseControls(t *testing.T) {
	s := newSession(t, nil, WithTransport(&syncTransport{}))

	assert.ErrorIs(t, s.ClickBackground(), ErrNothingOpen)
	assert.ErrorIs(t, s.ClickClose(), ErrNothingOpen)
	assert.ErrorIs(t, s.Click("#nope"), ErrNoMatch)

	require.NoError(t, s.Click("#open-login"))
	require.NoError(t, s.ClickClose())
	assert.Empty(t, s.Snapshot().Open)

	require.NoError(t, s.Click("#open-login"))
	require.NoError(t, s.ClickBackground())
	assert.Empty(t, s.Snapshot().Open)
}

func TestSession_Activate(t *testing.T) {
	s := newSession(t, nil, WithTransport(&syncTransport{}))

	assert.ErrorIs(t, s.Activate(-1), ErrNoMatch)
	assert.ErrorIs(t, s.Activate(2), ErrNoMatch)

	require.NoError(t, s.Activate(0))
	assert.Equal(t, "login", s.Snapshot().Open)
}

func TestSession_ClickClose_NoButton(t *testing.T) {
	s := newSession(t, nil, WithTransport(&syncTransport{mutation: &popup.Mutation{}}))

	require.NoError(t, s.Click("#open-news"))
	require.NoError(t, s.Settle(context.Background()))
	assert.ErrorIs(t, s.ClickClose(), ErrNoCloser)
}

func TestSession_Resize(t *testing.T) {
	on := true
	cfg := config.DefaultConfig()
	cfg.Defaults.CloseOnResize = &on
	s := newSession(t, cfg, WithTransport(&syncTransport{}))

	require.NoError(t, s.Click("#open-login"))
	s.Resize(80, 0)

	assert.Empty(t, s.Snapshot().Open)
	assert.Equal(t, 80, s.Document().Metrics().ViewportWidth)
	assert.Equal(t, config.DefaultConfig().Document.ViewportHeight, s.Document().Metrics().ViewportHeight)
}

func TestSession_ReloadRebuilds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0644))

	cfg := config.DefaultConfig()
	cfg.Document.Path = path
	s, err := New(cfg, WithTransport(&syncTransport{}), WithClock(fixedClock()))
	require.NoError(t, err)

	before := s.Bindings()[0].Popup.ID()
	require.NoError(t, s.Click("#open-login"))

	require.NoError(t, s.Reload())

	assert.Equal(t, 1, s.Snapshot().Reloads)
	assert.Empty(t, s.Snapshot().Open)
	require.Len(t, s.Bindings(), 2)
	assert.NotEqual(t, before, s.Bindings()[0].Popup.ID())
	assert.Equal(t, KindReload, s.Journal().Entries()[1].Kind)

	require.NoError(t, s.Click("#open-login"))
	assert.Equal(t, "login", s.Snapshot().Open)
}

func TestSession_RemoteRedirect(t *testing.T) {
	s := newSession(t, nil, WithTransport(&syncTransport{mutation: &popup.Mutation{Redirect: "/elsewhere"}}))

	require.NoError(t, s.Click("#open-news"))
	require.NoError(t, s.Settle(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, "/elsewhere", snap.Location)
	assert.Empty(t, snap.Open)
	assert.Equal(t, []Kind{KindNavigate, KindComplete}, s.Journal().Kinds())
}

func TestSession_CustomDispatcher(t *testing.T) {
	var posted []func()
	s := newSession(t, nil,
		WithTransport(&syncTransport{mutation: &popup.Mutation{}}),
		WithDispatcher(func(fn func()) { posted = append(posted, fn) }),
	)

	require.NoError(t, s.Click("#open-news"))
	require.NoError(t, s.Settle(context.Background()))
	assert.Equal(t, 1, s.Pending())
	require.Len(t, posted, 2)

	for _, fn := range posted {
		fn()
	}
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, "news", s.Snapshot().Open)
}

func TestSnapshot(t *testing.T) {
	s := newSession(t, nil, WithTransport(&syncTransport{}))
	s.Scroll(12)
	require.NoError(t, s.Click("#open-login"))

	snap := s.Snapshot()
	assert.Equal(t, fixedClock()(), snap.Taken)
	assert.Equal(t, 12, snap.Scroll)
	assert.Equal(t, "login", snap.Open)
	assert.Equal(t, "popup-opened", snap.BodyClassList())
	assert.Contains(t, snap.BodyStyle, "top: -12px")
	require.Len(t, snap.Popups, 2)

	login := snap.Popups[0]
	assert.Equal(t, "login", login.Name)
	assert.Equal(t, "open", login.State)
	assert.True(t, login.Overlay)
	assert.Equal(t, "a#open-login", login.Trigger)
	assert.Empty(t, login.Remote)
	assert.Equal(t, "closed", snap.Popups[1].State)
	assert.Nil(t, snap.Popups[1].SavedScroll)
}

func TestJournal_Bounded(t *testing.T) {
	j := NewJournal()
	at := time.Now()
	for i := range DefaultJournalSize + 5 {
		j.Add(at.Add(time.Duration(i)*time.Millisecond), "p", KindOpen, "")
	}

	assert.Equal(t, DefaultJournalSize, j.Len())
	last := j.Last(2)
	require.Len(t, last, 2)
	assert.True(t, last[0].At.Before(last[1].At))
	assert.NotEqual(t, last[0].ID, last[1].ID)
	assert.Len(t, j.Last(1000), DefaultJournalSize)
}

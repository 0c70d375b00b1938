// Package session wires a document, its popup registry and the popups
// described by the configuration into one drivable unit. Hosts (the TUI and
// the inspect command) act on the page through a Session and read its
// state back as a Snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/popui/internal/config"
	"github.com/jmylchreest/popui/internal/dom"
	"github.com/jmylchreest/popui/internal/popup"
)

// DefaultTrigger selects triggers when the configuration lists no popups.
const DefaultTrigger = "[data-popup-target]"

// Session errors.
var (
	ErrNoDocument  = errors.New("no document configured")
	ErrNoMatch     = errors.New("selector matched no element")
	ErrNothingOpen = errors.New("no popup is open")
	ErrNoCloser    = errors.New("open popup has no close button")
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTML uses markup instead of the configured document path.
func WithHTML(markup string) Option {
	return func(s *Session) {
		s.source = dom.Source{HTML: markup}
	}
}

// WithTransport sets the remote content transport.
func WithTransport(t popup.Transport) Option {
	return func(s *Session) {
		s.transport = t
	}
}

// WithDispatcher routes remote completions through d instead of the
// session's own queue. Settle then returns immediately.
func WithDispatcher(d popup.Dispatcher) Option {
	return func(s *Session) {
		s.dispatch = d
	}
}

// WithHooks adds hooks that configuration entries can name.
func WithHooks(hooks popup.HookSet) Option {
	return func(s *Session) {
		for name, h := range hooks {
			s.hooks[name] = h
		}
	}
}

// WithClock sets the journal clock.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRecorder records every journal entry to r as well.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// Binding is a popup built from a configuration entry.
type Binding struct {
	Entry config.PopupEntry
	Popup *popup.Popup
}

// Session is a document with live popups. Like the document it is not safe
// for concurrent use.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger
	source dom.Source
	now    func() time.Time

	transport popup.Transport
	dispatch  popup.Dispatcher
	queue     *popup.Queue
	hooks     popup.HookSet

	doc      *dom.Document
	reg      *popup.Registry
	bindings []Binding

	journal  *Journal
	recorder Recorder
}

// New loads the configured document and builds its popups.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Session{
		cfg:     cfg,
		logger:  slog.Default(),
		source:  dom.Source{Path: cfg.Document.Path},
		now:     time.Now,
		hooks:   make(popup.HookSet),
		journal: NewJournal(),
	}
	for name, h := range s.builtinHooks() {
		s.hooks[name] = h
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.source.Path == "" && s.source.HTML == "" {
		return nil, ErrNoDocument
	}
	if s.recorder != nil {
		s.journal.onAdd = func(e Entry) {
			if err := s.recorder.Record(e); err != nil {
				s.logger.Warn("failed to record journal entry", "error", err)
			}
		}
	}
	if s.dispatch == nil {
		s.queue = popup.NewQueue(64)
		s.dispatch = s.queue.Dispatch
	}

	doc, err := dom.New(s.source,
		dom.WithMetrics(cfg.Document.Metrics()),
		dom.WithLogger(s.logger),
		dom.WithReloadHandler(s.onReload),
		dom.WithNavigateHandler(s.onNavigate),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	s.doc = doc

	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

// build creates a fresh registry and binds every configured popup.
func (s *Session) build() error {
	opts := []popup.RegistryOption{
		popup.WithLogger(s.logger),
		popup.WithDispatcher(s.dispatch),
	}
	if s.transport != nil {
		opts = append(opts, popup.WithTransport(s.transport))
	}
	s.reg = popup.NewRegistry(s.doc, opts...)
	s.bindings = nil

	entries := s.cfg.Popups
	if len(entries) == 0 {
		entries = []config.PopupEntry{{Trigger: DefaultTrigger}}
	}

	for _, entry := range entries {
		base, err := s.cfg.PopupConfig(entry, s.hooks, s.logger)
		if err != nil {
			return fmt.Errorf("popup %s: %w", entry.Label(), err)
		}

		triggers := s.doc.FindBySelector(nil, entry.Trigger)
		if len(triggers) == 0 {
			s.logger.Warn("popup trigger matched nothing", "popup", entry.Label(), "trigger", entry.Trigger)
			continue
		}
		for _, trigger := range triggers {
			target := base.TargetID
			if target == "" {
				target = s.doc.Attr(trigger, "data-popup-target")
			}
			p, err := popup.New(s.reg, trigger, s.instrument(base, target))
			if err != nil {
				return fmt.Errorf("popup %s: %w", entry.Label(), err)
			}
			s.bindings = append(s.bindings, Binding{Entry: entry, Popup: p})
		}
	}

	s.logger.Debug("session built", "popups", len(s.bindings))
	return nil
}

// instrument chains the journal into a popup's lifecycle and remote callbacks.
func (s *Session) instrument(cfg popup.Config, target string) popup.Config {
	cfg.AfterOpen = popup.Chain(s.record(KindOpen), cfg.AfterOpen)
	cfg.AfterClose = popup.Chain(s.record(KindClose), cfg.AfterClose)

	remote := &popup.Remote{}
	if cfg.Remote != nil {
		copied := *cfg.Remote
		remote = &copied
	}
	remote.OnError = func(err error) {
		s.journal.Add(s.now(), target, KindError, err.Error())
	}
	remote.OnComplete = func() {
		s.journal.Add(s.now(), target, KindComplete, "")
	}
	cfg.Remote = remote
	return cfg
}

func (s *Session) record(kind Kind) popup.Hook {
	return func(p *popup.Popup) {
		detail := ""
		if offset, ok := p.SavedScrollOffset(); ok && kind == KindOpen {
			detail = fmt.Sprintf("scroll %d", offset)
		}
		s.journal.Add(s.now(), p.TargetID(), kind, detail)
	}
}

func (s *Session) builtinHooks() popup.HookSet {
	return popup.HookSet{
		"log": func(p *popup.Popup) {
			s.logger.Info("popup lifecycle", "popup", p.TargetID(), "state", p.State())
		},
		"mark-visited": func(p *popup.Popup) {
			s.doc.AddClass(p.Trigger(), "popup-visited")
		},
	}
}

func (s *Session) onReload() {
	s.journal.Add(s.now(), "", KindReload, s.source.Path)
	if err := s.build(); err != nil {
		s.logger.Error("failed to rebuild popups after reload", "error", err)
	}
}

func (s *Session) onNavigate(url string) {
	s.journal.Add(s.now(), "", KindNavigate, url)
}

// Document returns the live document.
func (s *Session) Document() *dom.Document { return s.doc }

// Registry returns the current popup registry. It is replaced on reload.
func (s *Session) Registry() *popup.Registry { return s.reg }

// Bindings returns the popups built from configuration, in trigger order.
func (s *Session) Bindings() []Binding { return s.bindings }

// Journal returns the lifecycle journal.
func (s *Session) Journal() *Journal { return s.journal }

// Config returns the session configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Click activates the first element matching selector.
func (s *Session) Click(selector string) error {
	matches := s.doc.FindBySelector(nil, selector)
	if len(matches) == 0 {
		return fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	s.doc.Click(matches[0])
	return nil
}

// Activate clicks the trigger of the binding at index.
func (s *Session) Activate(index int) error {
	if index < 0 || index >= len(s.bindings) {
		return fmt.Errorf("%w: binding %d", ErrNoMatch, index)
	}
	s.doc.Click(s.bindings[index].Popup.Trigger())
	return nil
}

// PressKey releases key on the document.
func (s *Session) PressKey(key string) {
	s.doc.KeyUp(key)
}

// Resize changes the viewport and fires the window resize event.
// Non-positive dimensions keep their current value.
func (s *Session) Resize(width, height int) {
	m := s.doc.Metrics()
	if width > 0 {
		m.ViewportWidth = width
	}
	if height > 0 {
		m.ViewportHeight = height
	}
	s.doc.SetMetrics(m)
	s.doc.Resize()
}

// ClickBackground clicks the overlay of the open popup outside its content.
func (s *Session) ClickBackground() error {
	p := s.reg.OpenPopup()
	if p == nil || p.Overlay() == nil {
		return ErrNothingOpen
	}
	s.doc.Click(p.Overlay())
	return nil
}

// ClickClose clicks the close button of the open popup.
func (s *Session) ClickClose() error {
	p := s.reg.OpenPopup()
	if p == nil || p.Overlay() == nil {
		return ErrNothingOpen
	}
	buttons := s.doc.FindBySelector(p.Overlay(), p.Config().CloseButtonSelector)
	if len(buttons) == 0 {
		return ErrNoCloser
	}
	s.doc.Click(buttons[0])
	return nil
}

// Scroll moves the page by delta. It reports false when an open popup
// locks the page.
func (s *Session) Scroll(delta int) bool {
	if p := s.reg.OpenPopup(); p != nil && p.Config().LockScreen {
		return false
	}
	s.doc.SetScrollOffset(s.doc.ScrollOffset() + delta)
	return true
}

// Reload re-reads the document and rebuilds every popup.
func (s *Session) Reload() error {
	return s.doc.Reload()
}

// Pending returns the number of remote requests in flight.
func (s *Session) Pending() int {
	return s.reg.Loader().Pending()
}

// Settle runs queued remote completions until none are in flight. It
// returns immediately when the host supplied its own dispatcher.
func (s *Session) Settle(ctx context.Context) error {
	if s.queue == nil {
		return nil
	}
	err := s.queue.RunUntil(ctx, func() bool {
		return s.Pending() == 0
	})
	// A reload swaps the registry; completions of the old one may still be queued.
	s.queue.RunPending()
	return err
}

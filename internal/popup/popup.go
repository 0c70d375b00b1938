// Package popup implements the modal overlay lifecycle: one open popup per
// document, scroll position preservation across open/close and popup to
// popup handoffs, scrollbar compensation, escape/resize/background
// dismissal, and optional remote content applied before display.
//
// All popup and registry methods must be called from the goroutine that
// owns the document. Remote completions are routed back to it through the
// registry Dispatcher.
package popup

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/popui/internal/dom"
)

// scrollDataKey is the overlay data key holding the scroll offset to restore.
const scrollDataKey = "popupScrollTop"

// State is the lifecycle state of a popup.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Popup binds a trigger element to an overlay element.
type Popup struct {
	id     string
	reg    *Registry
	doc    dom.Bridge
	logger *slog.Logger
	cfg    Config
	bus    EventBus

	trigger *dom.Element
	overlay *dom.Element

	state State

	saved    int
	hasSaved bool

	// Offset handed over by the popup this one displaced.
	inherited    int
	hasInherited bool
}

// New creates a popup for trigger and activates it. TargetID defaults to
// the trigger's data-popup-target attribute and the remote URL to its
// data-popup-remote attribute.
//
// A missing overlay is not an error: it is logged once and every later
// overlay operation becomes a no-op.
func New(reg *Registry, trigger *dom.Element, cfg Config) (*Popup, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}
	if trigger == nil {
		return nil, ErrNoTrigger
	}
	doc := reg.doc

	cfg.Remote = cfg.Remote.clone()
	if cfg.TargetID == "" {
		cfg.TargetID = doc.Attr(trigger, "data-popup-target")
	}
	if remoteURL := doc.Attr(trigger, "data-popup-remote"); remoteURL != "" {
		if cfg.Remote == nil {
			cfg.Remote = &Remote{}
		}
		if cfg.Remote.URL == "" {
			cfg.Remote.URL = remoteURL
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid popup config for %s: %w", trigger, err)
	}

	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate popup id: %w", err)
	}

	p := &Popup{
		id:      id.String(),
		reg:     reg,
		doc:     doc,
		cfg:     cfg,
		bus:     NewEventBus(doc, cfg.EventNamespace),
		trigger: trigger,
	}
	p.logger = reg.logger.With("popup", cfg.TargetID)

	p.overlay = p.findOverlay()
	if p.overlay == nil {
		p.logger.Warn("popup overlay not found, popup will not render", "selector", p.overlaySelector())
	}

	return p.Activate(), nil
}

// ID returns the unique popup instance id.
func (p *Popup) ID() string { return p.id }

// TargetID returns the data-popup-id of the overlay.
func (p *Popup) TargetID() string { return p.cfg.TargetID }

// Config returns the popup configuration.
func (p *Popup) Config() Config { return p.cfg }

// State returns the lifecycle state.
func (p *Popup) State() State { return p.state }

// Trigger returns the trigger element.
func (p *Popup) Trigger() *dom.Element { return p.trigger }

// Overlay returns the overlay element, nil when it is missing.
func (p *Popup) Overlay() *dom.Element { return p.overlay }

// SavedScrollOffset returns the scroll offset captured by the last Open.
func (p *Popup) SavedScrollOffset() (int, bool) {
	return p.saved, p.hasSaved
}

func (p *Popup) overlaySelector() string {
	return fmt.Sprintf("[data-popup-id=%q]", p.cfg.TargetID)
}

func (p *Popup) findOverlay() *dom.Element {
	matches := p.doc.FindBySelector(nil, p.overlaySelector())
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// current is the popup a close on this overlay acts on: the open popup when
// it shows this overlay, else the one bound to it. A later activation on the
// same overlay takes over its listeners.
func (p *Popup) current() *Popup {
	if open := p.reg.OpenPopup(); open != nil && open.cfg.TargetID == p.cfg.TargetID {
		return open
	}
	if bound := p.reg.Lookup(p.cfg.TargetID); bound != nil {
		return bound
	}
	return p
}

// Activate wires the popup's listeners. Re-activating an overlay that is
// already bound only swaps the binding and the trigger listener; window and
// document listeners are installed once per registry.
func (p *Popup) Activate() *Popup {
	if p.reg.Lookup(p.cfg.TargetID) != nil {
		p.reg.bind(p)
		if p.cfg.OpenOnActivate {
			p.registerOpenOnActivate()
		}
		return p
	}

	p.registerCloseButton()
	p.reg.bind(p)

	if p.cfg.CloseOnEscape {
		p.registerCloseOnEscape()
	}
	if p.cfg.CloseOnBackgroundClick {
		p.registerCloseOnBackground()
	}
	if p.cfg.CloseOnResize {
		p.registerCloseOnResize()
	}
	if p.cfg.OpenOnActivate {
		p.registerOpenOnActivate()
	}
	return p
}

func (p *Popup) registerOpenOnActivate() {
	p.bus.BindActivation(p.trigger, func(dom.Event) {
		p.activateTrigger(context.Background())
	})
}

// activateTrigger opens the popup, fetching remote content first when
// configured. A failed or cancelled fetch leaves the popup closed.
func (p *Popup) activateTrigger(ctx context.Context) {
	if p.cfg.Remote == nil || p.cfg.Remote.URL == "" {
		p.Open(nil)
		return
	}
	p.reg.loader.Fetch(ctx, p.cfg.Remote, func(m *Mutation) {
		if m == nil {
			m = &Mutation{}
		}
		p.Open(m)
	})
}

// Request runs what a trigger activation runs, without an event: fetch
// remote content when configured, then Open.
func (p *Popup) Request(ctx context.Context) {
	p.activateTrigger(ctx)
}

func (p *Popup) registerCloseButton() {
	if p.overlay == nil {
		p.logger.Debug("close button not wired, overlay missing")
		return
	}
	buttons := p.doc.FindBySelector(p.overlay, p.cfg.CloseButtonSelector)
	if len(buttons) == 0 {
		p.logger.Warn("close button not found", "selector", p.cfg.CloseButtonSelector)
		return
	}
	for _, btn := range buttons {
		p.bus.BindActivation(btn, func(dom.Event) {
			p.current().Close(false)
		})
	}
}

func (p *Popup) registerCloseOnBackground() {
	if p.overlay == nil {
		return
	}
	overlay := p.overlay
	p.bus.BindActivation(overlay, func(ev dom.Event) {
		if ev.Target == overlay {
			p.current().Close(false)
		}
	})
}

func (p *Popup) registerCloseOnEscape() {
	openedBodyClass, openedClass := p.cfg.OpenedBodyClass, p.cfg.OpenedClass
	p.reg.EnsureEscapeListener(p.bus, func() {
		if p.doc.HasClass(p.doc.Body(), openedBodyClass) {
			p.reg.CloseAll(openedClass)
		}
	})
}

func (p *Popup) registerCloseOnResize() {
	openedBodyClass, openedClass := p.cfg.OpenedBodyClass, p.cfg.OpenedClass
	p.reg.EnsureResizeListener(p.bus, func() {
		if p.doc.HasClass(p.doc.Body(), openedBodyClass) {
			p.reg.CloseAll(openedClass)
		}
	})
}

// checkAndCloseCurrent closes the open popup, if it is another one, as a
// displaced close and inherits its saved scroll offset.
func (p *Popup) checkAndCloseCurrent() {
	cur := p.reg.OpenPopup()
	if cur == nil || cur == p {
		return
	}
	if offset, ok := cur.SavedScrollOffset(); ok {
		p.inherited, p.hasInherited = offset, true
	}
	p.logger.Debug("displacing open popup", "displaced", cur.TargetID())
	cur.Close(true)
}

// Open shows the popup. A non-nil remote mutation is applied first; if it
// reloads or navigates the page, nothing else happens. Opening an open
// popup does nothing.
func (p *Popup) Open(remote *Mutation) *Popup {
	if p.state == Open {
		p.logger.Debug("open ignored, popup already open")
		return p
	}
	p.checkAndCloseCurrent()

	if remote != nil {
		terminal, err := remote.Apply(p.doc)
		if err != nil {
			p.logger.Warn("remote mutation failed", "error", err)
		}
		if terminal {
			p.hasInherited = false
			return p
		}
		p.refreshOverlay()
		p.registerCloseButton()
	}

	p.run(p.cfg.BeforeOpen)

	offset := p.doc.ScrollOffset()
	if p.hasInherited {
		offset = p.inherited
		p.hasInherited = false
	}
	p.saved, p.hasSaved = offset, true
	p.doc.SetData(p.overlay, scrollDataKey, offset)

	if p.cfg.LockScreen {
		p.reg.compensator.Lock()
	}

	body := p.doc.Body()
	p.doc.SetStyle(body, "top", dom.Pixels(-offset))
	p.doc.AddClass(body, p.cfg.OpenedBodyClass)
	p.doc.AddClass(p.overlay, p.cfg.OpenedClass)

	p.state = Open
	p.reg.SetOpenPopup(p)
	p.logger.Debug("popup opened", "scroll", offset)

	p.run(p.cfg.AfterOpen)
	return p
}

// refreshOverlay re-resolves the overlay after a mutation may have replaced it.
func (p *Popup) refreshOverlay() {
	overlay := p.findOverlay()
	if overlay == p.overlay {
		return
	}
	p.overlay = overlay
	if p.cfg.CloseOnBackgroundClick {
		p.registerCloseOnBackground()
	}
}

// Close hides the popup. A displaced close, made because another popup is
// opening, leaves the body pinned and the scroll position alone so the
// next popup takes over without a visible jump. Closing a closed popup
// does nothing.
func (p *Popup) Close(displaced bool) *Popup {
	if p.state != Open {
		p.logger.Debug("close ignored, popup not open")
		return p
	}

	p.run(p.cfg.BeforeClose)

	if !displaced {
		if p.cfg.LockScreen || p.reg.compensator.Locked() {
			p.reg.compensator.Unlock()
		}
		body := p.doc.Body()
		p.doc.SetStyle(body, "top", "")
		p.doc.RemoveClass(body, p.cfg.OpenedBodyClass)
		p.doc.SetScrollOffset(p.restoreOffset())
	}

	p.doc.RemoveClass(p.overlay, p.cfg.OpenedClass)

	p.state = Closed
	if p.reg.OpenPopup() == p {
		p.reg.SetOpenPopup(nil)
	}
	p.logger.Debug("popup closed", "displaced", displaced)

	p.run(p.cfg.AfterClose)
	return p
}

func (p *Popup) restoreOffset() int {
	if v, ok := p.doc.Data(p.overlay, scrollDataKey); ok {
		if offset, ok := v.(int); ok {
			return offset
		}
	}
	return p.saved
}

// Kill removes the trigger listener and the overlay binding. An open popup
// stays open.
func (p *Popup) Kill() {
	p.bus.UnbindActivation(p.trigger)
	p.reg.unbind(p.cfg.TargetID)
	p.logger.Debug("popup killed")
}

func (p *Popup) run(h Hook) {
	if h != nil {
		h(p)
	}
}

package popup

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/jmylchreest/popui/internal/dom"
)

// ErrNotBound is returned when an overlay has no popup bound to it.
var ErrNotBound = errors.New("no popup bound to overlay")

// Dispatcher runs fn on the goroutine that owns the document. Transports
// complete on their own goroutines and hand results back through it.
type Dispatcher func(fn func())

// Inline runs fn immediately. It suits synchronous transports and tests.
func Inline(fn func()) { fn() }

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger, shared by its popups.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDispatcher sets how asynchronous completions reach the UI goroutine.
func WithDispatcher(d Dispatcher) RegistryOption {
	return func(r *Registry) {
		if d != nil {
			r.dispatch = d
			r.dispatchSet = true
		}
	}
}

// WithTransport sets the transport used for remote content.
func WithTransport(t Transport) RegistryOption {
	return func(r *Registry) {
		r.transport = t
	}
}

// Registry tracks the single open popup of a document and the one-shot
// guards for document wide listeners. It is created once per document and
// lives as long as the document does.
type Registry struct {
	doc         dom.Bridge
	logger      *slog.Logger
	dispatch    Dispatcher
	dispatchSet bool

	transport   Transport
	loader      *Loader
	compensator *Compensator

	open            *Popup
	resizeInstalled bool
	escapeInstalled bool

	// Back references keyed by overlay data-popup-id. Lookup only: the
	// document owns the overlays.
	bound map[string]*Popup
}

// NewRegistry creates the registry for doc. Without a dispatcher,
// completions run inline, so the default HTTP transport is made synchronous
// and an asynchronous transport is refused at fetch time.
func NewRegistry(doc dom.Bridge, opts ...RegistryOption) *Registry {
	r := &Registry{
		doc:      doc,
		logger:   slog.Default(),
		dispatch: Inline,
		bound:    make(map[string]*Popup),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.transport == nil {
		t := NewHTTPTransport(&http.Client{}, r.logger)
		if !r.dispatchSet {
			t = t.Synchronous()
		}
		r.transport = t
	}
	r.loader = NewLoader(r.transport, r.dispatch, r.logger)
	if !r.dispatchSet && isAsync(r.transport) {
		r.loader.needsDispatcher = true
	}
	r.compensator = NewCompensator(doc)
	return r
}

// Document returns the document the registry belongs to.
func (r *Registry) Document() dom.Bridge {
	return r.doc
}

// Loader returns the remote content loader shared by the registry's popups.
func (r *Registry) Loader() *Loader {
	return r.loader
}

// Compensator returns the scrollbar compensator for the document body.
func (r *Registry) Compensator() *Compensator {
	return r.compensator
}

// OpenPopup returns the currently open popup, or nil.
func (r *Registry) OpenPopup() *Popup {
	return r.open
}

// SetOpenPopup records p (or nil) as the open popup.
func (r *Registry) SetOpenPopup(p *Popup) {
	r.open = p
}

// Lookup returns the popup bound to the overlay with the given data-popup-id.
func (r *Registry) Lookup(targetID string) *Popup {
	return r.bound[targetID]
}

// Popups returns the bound popups ordered by target id.
func (r *Registry) Popups() []*Popup {
	ids := make([]string, 0, len(r.bound))
	for id := range r.bound {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]*Popup, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.bound[id])
	}
	return out
}

func (r *Registry) bind(p *Popup) {
	r.bound[p.cfg.TargetID] = p
}

func (r *Registry) unbind(targetID string) {
	delete(r.bound, targetID)
}

// CloseAll closes every popup whose overlay carries openedClass
// ("opened" when empty). These are user initiated closes, so the page
// scroll position is restored.
func (r *Registry) CloseAll(openedClass string) {
	if openedClass == "" {
		openedClass = DefaultOpenedClass
	}

	selector := "[data-popup-id]." + openedClass
	for _, overlay := range r.doc.FindBySelector(nil, selector) {
		id := r.doc.Attr(overlay, "data-popup-id")
		p := r.open
		if p == nil || p.cfg.TargetID != id {
			p = r.Lookup(id)
		}
		if p == nil {
			r.logger.Debug("opened overlay has no popup bound", "target", id)
			continue
		}
		p.Close(false)
	}
}

// EnsureResizeListener installs fn on the window resize event once for the
// lifetime of the registry. It reports whether fn was installed.
func (r *Registry) EnsureResizeListener(bus EventBus, fn func()) bool {
	if r.resizeInstalled {
		return false
	}
	bus.onResize(r.doc.Window(), func(dom.Event) { fn() })
	r.resizeInstalled = true
	r.logger.Debug("installed resize listener", "namespace", bus.Namespace())
	return true
}

// EnsureEscapeListener installs fn for Escape key releases on the document
// once for the lifetime of the registry. It reports whether fn was installed.
func (r *Registry) EnsureEscapeListener(bus EventBus, fn func()) bool {
	if r.escapeInstalled {
		return false
	}
	bus.onKeyUp(r.doc.Root(), func(ev dom.Event) {
		if isEscape(ev.Key) {
			fn()
		}
	})
	r.escapeInstalled = true
	r.logger.Debug("installed escape listener", "namespace", bus.Namespace())
	return true
}

func isEscape(key string) bool {
	switch strings.ToLower(key) {
	case "escape", "esc", "27":
		return true
	}
	return false
}

// KillPopup tears down the popup bound to overlay.
func (r *Registry) KillPopup(overlay *dom.Element) error {
	id := r.doc.Attr(overlay, "data-popup-id")
	p := r.Lookup(id)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrNotBound, overlay)
	}
	p.Kill()
	return nil
}

package popup

import (
	"strings"

	"github.com/jmylchreest/popui/internal/dom"
)

// EventBus builds namespaced event names and binds listeners without
// duplicating them. Window and document level listeners go through the
// Registry guards instead of being bound per popup.
type EventBus struct {
	events    dom.EventTarget
	namespace string
}

// NewEventBus creates a bus for the given namespace.
func NewEventBus(events dom.EventTarget, namespace string) EventBus {
	return EventBus{events: events, namespace: namespace}
}

// Namespace returns the bus namespace.
func (b EventBus) Namespace() string {
	return b.namespace
}

func (b EventBus) names(types ...string) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, t+"."+b.namespace)
	}
	return strings.Join(parts, " ")
}

// Activation returns the click/tap event names, e.g. "click.popup tap.popup".
func (b EventBus) Activation() string {
	return b.names("click", "tap")
}

// Resize returns the namespaced resize event name.
func (b EventBus) Resize() string {
	return b.names("resize")
}

// KeyUp returns the namespaced keyup event name.
func (b EventBus) KeyUp() string {
	return b.names("keyup")
}

// BindActivation replaces any namespaced activation listener on el with fn.
func (b EventBus) BindActivation(el *dom.Element, fn dom.Handler) {
	b.UnbindActivation(el)
	b.events.On(el, b.Activation(), fn)
}

// UnbindActivation removes the namespaced activation listeners from el.
func (b EventBus) UnbindActivation(el *dom.Element) {
	b.events.Off(el, b.Activation())
}

func (b EventBus) onResize(window *dom.Element, fn dom.Handler) {
	b.events.On(window, b.Resize(), fn)
}

func (b EventBus) onKeyUp(root *dom.Element, fn dom.Handler) {
	b.events.On(root, b.KeyUp(), fn)
}

package dom

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/net/html"
)

type elementKind int

const (
	kindNode elementKind = iota
	kindWindow
)

// Element is a stable handle to a node of a Document.
// The same node always yields the same *Element.
type Element struct {
	node *html.Node
	key  string
	kind elementKind
}

func newElement(n *html.Node, kind elementKind) *Element {
	return &Element{
		node: n,
		key:  ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		kind: kind,
	}
}

// Key returns the element's stable identifier.
func (e *Element) Key() string {
	if e == nil {
		return ""
	}
	return e.key
}

// Node returns the underlying HTML node (nil for the window).
func (e *Element) Node() *html.Node {
	if e == nil {
		return nil
	}
	return e.node
}

// Tag returns the lowercase tag name, "#window" or "#document".
func (e *Element) Tag() string {
	switch {
	case e == nil:
		return ""
	case e.kind == kindWindow:
		return "#window"
	case e.node.Type == html.DocumentNode:
		return "#document"
	default:
		return e.node.Data
	}
}

// String describes the element like a CSS selector, for logs.
func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	if e.node == nil || e.node.Type != html.ElementNode {
		return e.Tag()
	}

	var b strings.Builder
	b.WriteString(e.node.Data)
	if id := attr(e.node, "id"); id != "" {
		b.WriteString("#" + id)
	}
	for _, c := range strings.Fields(attr(e.node, "class")) {
		b.WriteString("." + c)
	}
	return b.String()
}

// Event is dispatched to listeners registered with On.
type Event struct {
	Type          string
	Target        *Element
	CurrentTarget *Element
	Key           string // keyboard events only, e.g. "Escape"
}

// Handler receives dispatched events.
type Handler func(Event)

type listener struct {
	typ string
	ns  string
	fn  Handler
}

// parseEvents splits "click.popup tap.popup" into (type, namespace) pairs.
func parseEvents(events string) [][2]string {
	var out [][2]string
	for _, tok := range strings.Fields(events) {
		typ, ns, _ := strings.Cut(tok, ".")
		out = append(out, [2]string{typ, ns})
	}
	return out
}

func attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Package dom provides an in-memory HTML document implementing the bridge
// consumed by the popup core: element lookup, classes, inline styles,
// associated data, namespaced events, layout metrics and markup mutation.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Default layout metrics.
const (
	DefaultViewportWidth  = 120
	DefaultViewportHeight = 40
	DefaultContentHeight  = 120
	DefaultScrollbarWidth = 15
	DefaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) popui"
)

// ErrNoSource is returned by Reload when the document has nothing to re-read.
var ErrNoSource = errors.New("document has no source to reload")

// Metrics describes the simulated viewport and platform.
type Metrics struct {
	ViewportWidth  int
	ViewportHeight int
	ContentHeight  int
	ScrollbarWidth int // width a vertical scrollbar occupies; 0 for overlay scrollbars
	UserAgent      string
}

// DefaultMetrics returns metrics for a desktop viewport with a scrollable page.
func DefaultMetrics() Metrics {
	return Metrics{
		ViewportWidth:  DefaultViewportWidth,
		ViewportHeight: DefaultViewportHeight,
		ContentHeight:  DefaultContentHeight,
		ScrollbarWidth: DefaultScrollbarWidth,
		UserAgent:      DefaultUserAgent,
	}
}

// Source is where a document's markup comes from.
// Path wins over HTML when both are set.
type Source struct {
	Path string
	HTML string
}

func (s Source) read() ([]byte, error) {
	if s.Path != "" {
		return os.ReadFile(s.Path)
	}
	if s.HTML != "" {
		return []byte(s.HTML), nil
	}
	return nil, ErrNoSource
}

// Option configures a Document.
type Option func(*Document)

// WithMetrics sets the layout metrics.
func WithMetrics(m Metrics) Option {
	return func(d *Document) {
		d.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithNavigateHandler sets the function called on Navigate.
func WithNavigateHandler(fn func(url string)) Option {
	return func(d *Document) {
		d.onNavigate = fn
	}
}

// WithReloadHandler sets the function called after a successful Reload.
func WithReloadHandler(fn func()) Option {
	return func(d *Document) {
		d.onReload = fn
	}
}

// Document is a parsed HTML page with the state a browser would hold for it.
// It is not safe for concurrent use; callers drive it from a single goroutine.
type Document struct {
	logger  *slog.Logger
	source  Source
	metrics Metrics

	root     *html.Node
	elements map[*html.Node]*Element
	window   *Element

	listeners map[*Element][]listener
	data      map[*Element]map[string]any
	scripts   []string

	scroll   int
	location string
	reloads  int

	onNavigate func(url string)
	onReload   func()
}

// Parse builds a document from markup.
func Parse(markup string, opts ...Option) (*Document, error) {
	return New(Source{HTML: markup}, opts...)
}

// Open builds a document from an HTML file.
func Open(path string, opts ...Option) (*Document, error) {
	return New(Source{Path: path}, opts...)
}

// New builds a document from src.
func New(src Source, opts ...Option) (*Document, error) {
	d := &Document{
		logger:  slog.Default(),
		source:  src,
		metrics: DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) load() error {
	data, err := d.source.read()
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}

	d.root = root
	d.elements = make(map[*html.Node]*Element)
	d.window = newElement(nil, kindWindow)
	d.listeners = make(map[*Element][]listener)
	d.data = make(map[*Element]map[string]any)
	d.scripts = nil
	d.scroll = 0
	return nil
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := newElement(n, kindNode)
	d.elements[n] = el
	return el
}

// Metrics returns the document's layout metrics.
func (d *Document) Metrics() Metrics {
	return d.metrics
}

// SetMetrics replaces the layout metrics, e.g. after a terminal resize.
func (d *Document) SetMetrics(m Metrics) {
	d.metrics = m
	d.SetScrollOffset(d.scroll)
}

// Root returns the document node, the last stop of event bubbling.
func (d *Document) Root() *Element {
	return d.wrap(d.root)
}

// Window returns the pseudo element receiving resize events.
func (d *Document) Window() *Element {
	return d.window
}

// Body returns the <body> element.
func (d *Document) Body() *Element {
	return d.wrap(findFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	}))
}

// FindByID returns the element with the given id attribute, or nil.
func (d *Document) FindByID(id string) *Element {
	if id == "" {
		return nil
	}
	return d.wrap(findFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "id") == id
	}))
}

// FindBySelector returns the descendants of root (the whole document when
// root is nil) matching a CSS selector. Invalid selectors match nothing.
func (d *Document) FindBySelector(root *Element, selector string) []*Element {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		d.logger.Warn("invalid selector", "selector", selector, "error", err)
		return nil
	}

	start := d.root
	if root != nil {
		if root.node == nil {
			return nil
		}
		start = root.node
	}

	var out []*Element
	for _, n := range sel.MatchAll(start) {
		out = append(out, d.wrap(n))
	}
	return out
}

// Attr returns an attribute value, "" when absent.
func (d *Document) Attr(el *Element, name string) string {
	if el == nil {
		return ""
	}
	return attr(el.node, name)
}

// SetAttr sets an attribute, removing it when value is empty.
func (d *Document) SetAttr(el *Element, name, value string) {
	if el == nil || el.node == nil || el.node.Type != html.ElementNode {
		return
	}
	if value == "" {
		removeAttr(el.node, name)
		return
	}
	setAttr(el.node, name, value)
}

// Classes returns the element's class list.
func (d *Document) Classes(el *Element) []string {
	return strings.Fields(d.Attr(el, "class"))
}

// HasClass reports whether the element carries the class.
func (d *Document) HasClass(el *Element, name string) bool {
	for _, c := range d.Classes(el) {
		if c == name {
			return true
		}
	}
	return false
}

// AddClass adds a class if not present.
func (d *Document) AddClass(el *Element, name string) {
	if name == "" || d.HasClass(el, name) {
		return
	}
	d.SetAttr(el, "class", strings.Join(append(d.Classes(el), name), " "))
}

// RemoveClass removes a class if present.
func (d *Document) RemoveClass(el *Element, name string) {
	classes := d.Classes(el)
	kept := classes[:0]
	for _, c := range classes {
		if c != name {
			kept = append(kept, c)
		}
	}
	d.SetAttr(el, "class", strings.Join(kept, " "))
}

// Style returns an inline style property.
func (d *Document) Style(el *Element, prop string) string {
	return styleValue(parseStyle(d.Attr(el, "style")), prop)
}

// SetStyle sets an inline style property; an empty value removes it.
func (d *Document) SetStyle(el *Element, prop, value string) {
	if el == nil {
		return
	}
	decls := withStyle(parseStyle(d.Attr(el, "style")), prop, value)
	d.SetAttr(el, "style", formatStyle(decls))
}

// ScrollOffset returns the vertical scroll position of the viewport.
func (d *Document) ScrollOffset() int {
	return d.scroll
}

// SetScrollOffset scrolls the viewport, clamped to the scrollable range.
func (d *Document) SetScrollOffset(n int) {
	limit := d.metrics.ContentHeight - d.metrics.ViewportHeight
	if n > limit {
		n = limit
	}
	if n < 0 {
		n = 0
	}
	d.scroll = n
}

// Data returns a value associated with the element.
func (d *Document) Data(el *Element, key string) (any, bool) {
	if el == nil {
		return nil, false
	}
	v, ok := d.data[el][key]
	return v, ok
}

// SetData associates a value with the element.
func (d *Document) SetData(el *Element, key string, value any) {
	if el == nil {
		return
	}
	m, ok := d.data[el]
	if !ok {
		m = make(map[string]any)
		d.data[el] = m
	}
	m[key] = value
}

// RemoveData drops an associated value.
func (d *Document) RemoveData(el *Element, key string) {
	if el == nil {
		return
	}
	delete(d.data[el], key)
}

// On registers fn for each space separated "type.namespace" event name.
func (d *Document) On(el *Element, events string, fn Handler) {
	if el == nil || fn == nil {
		return
	}
	for _, ev := range parseEvents(events) {
		d.listeners[el] = append(d.listeners[el], listener{typ: ev[0], ns: ev[1], fn: fn})
	}
}

// Off removes listeners matching the event names. "click" removes every
// click listener, ".popup" every listener of the namespace, "click.popup"
// only the namespaced click listeners.
func (d *Document) Off(el *Element, events string) {
	if el == nil {
		return
	}
	for _, ev := range parseEvents(events) {
		ls := d.listeners[el]
		kept := ls[:0]
		for _, l := range ls {
			typeMatch := ev[0] == "" || l.typ == ev[0]
			nsMatch := ev[1] == "" || l.ns == ev[1]
			if !(typeMatch && nsMatch) {
				kept = append(kept, l)
			}
		}
		d.listeners[el] = kept
	}
}

// ListenerCount returns how many listeners of the given type are bound to el.
func (d *Document) ListenerCount(el *Element, typ string) int {
	n := 0
	for _, l := range d.listeners[el] {
		if l.typ == typ {
			n++
		}
	}
	return n
}

// Dispatch delivers an event to target and bubbles it to the document node.
// Events targeted at the window do not bubble.
func (d *Document) Dispatch(target *Element, ev Event) {
	if target == nil {
		return
	}
	ev.Target = target

	path := []*Element{target}
	if target.kind == kindNode {
		for n := target.node.Parent; n != nil; n = n.Parent {
			path = append(path, d.wrap(n))
		}
	}

	for _, el := range path {
		ev.CurrentTarget = el
		// Handlers may bind or unbind while running.
		ls := append([]listener(nil), d.listeners[el]...)
		for _, l := range ls {
			if l.typ == ev.Type {
				l.fn(ev)
			}
		}
	}
}

// Click dispatches a click on el.
func (d *Document) Click(el *Element) {
	d.Dispatch(el, Event{Type: "click"})
}

// KeyUp dispatches a keyup with the given key on the document node.
func (d *Document) KeyUp(key string) {
	d.Dispatch(d.Root(), Event{Type: "keyup", Key: key})
}

// Resize dispatches a resize event on the window.
func (d *Document) Resize() {
	d.Dispatch(d.window, Event{Type: "resize"})
}

// CreateElement makes a detached element.
func (d *Document) CreateElement(tag string) *Element {
	tag = strings.ToLower(tag)
	return d.wrap(&html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	})
}

// AppendChild appends child to parent, detaching it first if needed.
func (d *Document) AppendChild(parent, child *Element) {
	if parent == nil || child == nil || parent.node == nil || child.node == nil {
		return
	}
	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	parent.node.AppendChild(child.node)
}

// Remove detaches el from the tree.
func (d *Document) Remove(el *Element) {
	if el == nil || el.node == nil || el.node.Parent == nil {
		return
	}
	el.node.Parent.RemoveChild(el.node)
}

// OffsetWidth returns the rendered width of el including its scrollbar.
// Supported widths are "Npx" and "N%" of the parent's inner width; an
// absent width fills the parent.
func (d *Document) OffsetWidth(el *Element) int {
	if el == nil || el.node == nil {
		return 0
	}
	return d.width(el.node)
}

func (d *Document) width(n *html.Node) int {
	if n == nil || n.Type != html.ElementNode {
		return d.metrics.ViewportWidth
	}
	v := styleValue(parseStyle(attr(n, "style")), "width")
	switch {
	case strings.HasSuffix(v, "%"):
		pct := ParsePixels(strings.TrimSuffix(v, "%"))
		return d.innerWidth(n.Parent) * pct / 100
	case v != "" && v != "auto":
		return ParsePixels(v)
	default:
		return d.innerWidth(n.Parent)
	}
}

// innerWidth is the width available to children: a scrolling element
// loses the scrollbar's width.
func (d *Document) innerWidth(n *html.Node) int {
	w := d.width(n)
	if n != nil && n.Type == html.ElementNode {
		if styleValue(parseStyle(attr(n, "style")), "overflow") == "scroll" {
			w -= d.metrics.ScrollbarWidth
		}
	}
	return w
}

// ContentHeight returns the page height.
func (d *Document) ContentHeight() int {
	return d.metrics.ContentHeight
}

// ViewportHeight returns the viewport height.
func (d *Document) ViewportHeight() int {
	return d.metrics.ViewportHeight
}

// UserAgent returns the platform user agent string.
func (d *Document) UserAgent() string {
	return d.metrics.UserAgent
}

// Location returns the last URL passed to Navigate.
func (d *Document) Location() string {
	return d.location
}

// Reloads returns how many times the document was reloaded.
func (d *Document) Reloads() int {
	return d.reloads
}

// Scripts returns the markup injected with InjectScript since the last load.
func (d *Document) Scripts() []string {
	return append([]string(nil), d.scripts...)
}

// Reload re-reads and re-parses the source, dropping all element state.
func (d *Document) Reload() error {
	if err := d.load(); err != nil {
		return err
	}
	d.reloads++
	d.logger.Debug("document reloaded", "reloads", d.reloads)
	if d.onReload != nil {
		d.onReload()
	}
	return nil
}

// Navigate records a navigation to url.
func (d *Document) Navigate(url string) {
	d.location = url
	d.logger.Debug("document navigated", "url", url)
	if d.onNavigate != nil {
		d.onNavigate(url)
	}
}

// OuterHTML renders el and its subtree.
func (d *Document) OuterHTML(el *Element) string {
	if el == nil || el.node == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, el.node); err != nil {
		return ""
	}
	return buf.String()
}

// Text returns the text content of el with whitespace collapsed per line.
func (d *Document) Text(el *Element) string {
	if el == nil || el.node == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				b.WriteString(t)
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(el.node)
	return strings.TrimRight(b.String(), "\n")
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

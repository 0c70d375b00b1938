package dom

// Finder locates elements in the document.
type Finder interface {
	Body() *Element
	Window() *Element
	Root() *Element
	FindByID(id string) *Element
	FindBySelector(root *Element, selector string) []*Element
	Attr(el *Element, name string) string
	SetAttr(el *Element, name, value string)
}

// ClassList mutates element classes.
type ClassList interface {
	AddClass(el *Element, name string)
	RemoveClass(el *Element, name string)
	HasClass(el *Element, name string) bool
}

// Styler reads and writes inline style properties.
// Setting a property to "" removes it.
type Styler interface {
	Style(el *Element, prop string) string
	SetStyle(el *Element, prop, value string)
}

// Scroller exposes the viewport scroll offset.
type Scroller interface {
	ScrollOffset() int
	SetScrollOffset(n int)
}

// DataStore associates arbitrary values with elements.
type DataStore interface {
	Data(el *Element, key string) (any, bool)
	SetData(el *Element, key string, value any)
	RemoveData(el *Element, key string)
}

// EventTarget registers namespaced listeners, e.g. "click.popup tap.popup".
type EventTarget interface {
	On(el *Element, events string, fn Handler)
	Off(el *Element, events string)
}

// Layout gives access to the measurements needed for scroll locking.
type Layout interface {
	Body() *Element
	CreateElement(tag string) *Element
	AppendChild(parent, child *Element)
	Remove(el *Element)
	OffsetWidth(el *Element) int
	ContentHeight() int
	ViewportHeight() int
	UserAgent() string
	Styler
}

// Mutator applies markup level changes and page navigation.
type Mutator interface {
	ReplaceWith(selector, markup string) int
	Append(selector, markup string) int
	SetContent(selector, markup string) int
	InjectScript(markup string)
	Reload() error
	Navigate(url string)
}

// Bridge is the full document surface consumed by the popup core.
type Bridge interface {
	Finder
	ClassList
	Styler
	Scroller
	DataStore
	EventTarget
	Layout
	Mutator
}

var _ Bridge = (*Document)(nil)

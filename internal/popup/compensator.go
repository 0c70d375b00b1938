package popup

import (
	"regexp"

	"github.com/jmylchreest/popui/internal/dom"
)

// touchPlatform matches user agents whose scrollbars overlay the content.
var touchPlatform = regexp.MustCompile(`(?i)iphone|ipad|ipod|android|mobile`)

// Compensator pads the body by the scrollbar width while scrolling is
// locked so the page does not shift sideways.
type Compensator struct {
	layout dom.Layout

	locked  bool
	applied int
	prev    string // padding-right before Lock
	wrote   string // padding-right written by Lock
}

// NewCompensator creates a compensator for the document body.
func NewCompensator(layout dom.Layout) *Compensator {
	return &Compensator{layout: layout}
}

// Enabled reports whether the platform has layout scrollbars at all.
func (c *Compensator) Enabled() bool {
	return !touchPlatform.MatchString(c.layout.UserAgent())
}

// Locked reports whether Lock is in effect.
func (c *Compensator) Locked() bool {
	return c.locked
}

// MeasureWidth returns the width of the page scrollbar, 0 when the page
// does not scroll. It measures an off-screen probe: a scrolling box and a
// full-width child differ by exactly the scrollbar width.
func (c *Compensator) MeasureWidth() int {
	if c.layout.ContentHeight() <= c.layout.ViewportHeight() {
		return 0
	}
	body := c.layout.Body()
	if body == nil {
		return 0
	}

	outer := c.layout.CreateElement("div")
	c.layout.SetStyle(outer, "position", "absolute")
	c.layout.SetStyle(outer, "top", "-9999px")
	c.layout.SetStyle(outer, "width", "100px")
	c.layout.SetStyle(outer, "overflow", "scroll")
	inner := c.layout.CreateElement("div")
	c.layout.SetStyle(inner, "width", "100%")

	c.layout.AppendChild(outer, inner)
	c.layout.AppendChild(body, outer)
	defer c.layout.Remove(outer)

	return max(c.layout.OffsetWidth(outer)-c.layout.OffsetWidth(inner), 0)
}

// Lock adds the scrollbar width to the body's right padding. Calling Lock
// while locked does nothing.
func (c *Compensator) Lock() {
	if c.locked || !c.Enabled() {
		return
	}
	body := c.layout.Body()
	if body == nil {
		return
	}

	c.prev = c.layout.Style(body, "padding-right")
	c.applied = c.MeasureWidth()
	c.locked = true
	if c.applied == 0 {
		c.wrote = c.prev
		return
	}

	c.wrote = dom.Pixels(dom.ParsePixels(c.prev) + c.applied)
	c.layout.SetStyle(body, "padding-right", c.wrote)
}

// Unlock removes what Lock added. If nobody touched the padding since, the
// original value is restored verbatim; otherwise the applied width is
// subtracted from the current value.
func (c *Compensator) Unlock() {
	if !c.locked {
		return
	}
	c.locked = false
	body := c.layout.Body()
	if body == nil {
		return
	}

	cur := c.layout.Style(body, "padding-right")
	if cur == c.wrote {
		c.layout.SetStyle(body, "padding-right", c.prev)
		return
	}
	c.layout.SetStyle(body, "padding-right", dom.Pixels(dom.ParsePixels(cur)-c.applied))
}

package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// parseFragment parses markup in the context of n, falling back to the body
// for detached or non-element contexts.
func (d *Document) parseFragment(markup string, n *html.Node) []*html.Node {
	if n == nil || n.Type != html.ElementNode {
		n = d.Body().Node()
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		d.logger.Warn("failed to parse fragment", "error", err)
		return nil
	}
	return nodes
}

// ReplaceWith replaces every element matching selector with markup and
// returns the number of replaced elements.
func (d *Document) ReplaceWith(selector, markup string) int {
	matches := d.FindBySelector(nil, selector)
	for _, el := range matches {
		n := el.node
		parent := n.Parent
		if parent == nil {
			continue
		}
		for _, c := range d.parseFragment(markup, parent) {
			parent.InsertBefore(c, n)
		}
		parent.RemoveChild(n)
	}
	d.logger.Debug("replaced elements", "selector", selector, "count", len(matches))
	return len(matches)
}

// Append appends markup to every element matching selector.
func (d *Document) Append(selector, markup string) int {
	matches := d.FindBySelector(nil, selector)
	for _, el := range matches {
		for _, c := range d.parseFragment(markup, el.node) {
			el.node.AppendChild(c)
		}
	}
	d.logger.Debug("appended to elements", "selector", selector, "count", len(matches))
	return len(matches)
}

// SetContent replaces the children of every element matching selector.
func (d *Document) SetContent(selector, markup string) int {
	matches := d.FindBySelector(nil, selector)
	for _, el := range matches {
		for c := el.node.FirstChild; c != nil; c = el.node.FirstChild {
			el.node.RemoveChild(c)
		}
		for _, c := range d.parseFragment(markup, el.node) {
			el.node.AppendChild(c)
		}
	}
	d.logger.Debug("set element content", "selector", selector, "count", len(matches))
	return len(matches)
}

// InjectScript appends script markup to the body. Scripts are recorded,
// not executed.
func (d *Document) InjectScript(markup string) {
	body := d.Body()
	if body == nil {
		return
	}
	for _, c := range d.parseFragment(markup, body.node) {
		body.node.AppendChild(c)
	}
	d.scripts = append(d.scripts, markup)
}

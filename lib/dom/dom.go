// Package dom is a small browser-like document model built on the
// golang.org/x/net/html node tree. It supplies what the client side of the
// runtime needs from a browser: parsed markup, attribute access, id lookup
// and bubbling events with default-action suppression.
package dom

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document owns a node tree together with the event listeners and per-node
// data attached to it.
type Document struct {
	Root *html.Node

	listeners map[*html.Node]map[string][]Listener
	data      map[*html.Node]map[string]any
}

// NewDocument creates an empty document with html, head and body elements.
func NewDocument() *Document {
	doc, _ := ParseString("")
	return doc
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return Wrap(root), nil
}

// ParseString parses markup held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Wrap adopts an existing node tree.
func Wrap(root *html.Node) *Document {
	return &Document{
		Root:      root,
		listeners: make(map[*html.Node]map[string][]Listener),
		data:      make(map[*html.Node]map[string]any),
	}
}

// Body returns the body element, or nil if the tree has none.
func (d *Document) Body() *html.Node {
	return Find(d.Root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	})
}

// ElementByID returns the element whose id attribute equals id.
func (d *Document) ElementByID(id string) *html.Node {
	return ElementByID(d.Root, id)
}

// SetData attaches an arbitrary value to a node, like an expando property
// on a browser element.
func (d *Document) SetData(n *html.Node, key string, v any) {
	m := d.data[n]
	if m == nil {
		m = make(map[string]any)
		d.data[n] = m
	}
	m[key] = v
}

// Data returns the value stored with SetData.
func (d *Document) Data(n *html.Node, key string) (any, bool) {
	v, ok := d.data[n][key]
	return v, ok
}

// NewElement creates a detached element node.
func NewElement(tag string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// NewText creates a detached text node.
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Attr returns the value of the named attribute.
func Attr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the named attribute is present.
func HasAttr(n *html.Node, name string) bool {
	_, ok := Attr(n, name)
	return ok
}

// SetAttr sets or replaces the named attribute, keeping its position when it
// already exists.
func SetAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr deletes the named attribute.
func RemoveAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Find returns the first node in document order, starting at n, for which
// match returns true.
func Find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := Find(c, match); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every node under n, in document order, for which match
// returns true.
func FindAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// ElementByID returns the element under n whose id attribute equals id.
func ElementByID(n *html.Node, id string) *html.Node {
	return Find(n, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := Attr(n, "id")
		return ok && v == id
	})
}

// ElementByAttr returns the first element under n carrying name=value.
func ElementByAttr(n *html.Node, name, value string) *html.Node {
	return Find(n, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := Attr(n, name)
		return ok && v == value
	})
}

// TextContent concatenates the text of n and its descendants.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// IsWhitespace reports whether n is a text node holding only whitespace.
func IsWhitespace(n *html.Node) bool {
	return n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

// Render serializes n and its descendants.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}

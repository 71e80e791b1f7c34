// Package render holds the composition backends: HTML builds markup for
// server responses, Live maintains a node tree on the client.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/pthm/summon/lib/compose"
)

// textSeparator keeps adjacent text nodes apart when the markup is parsed.
const textSeparator = "<!---->"

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// IsVoid reports whether tag is an HTML void element.
func IsVoid(tag string) bool {
	return voidElements[tag]
}

// HTML is a compose.Backend that writes markup into a buffer.
type HTML struct {
	buf      bytes.Buffer
	stack    []string
	lastText bool
}

type htmlCheckpoint struct {
	size     int
	depth    int
	lastText bool
}

// NewHTML creates an empty string backend.
func NewHTML() *HTML {
	return &HTML{}
}

// Begin discards previous output.
func (h *HTML) Begin() {
	h.buf.Reset()
	h.stack = h.stack[:0]
	h.lastText = false
}

// End finishes the pass.
func (h *HTML) End() {}

// OpenNode writes the start tag of spec.
func (h *HTML) OpenNode(spec compose.NodeSpec) compose.Handle {
	if !validName(spec.Tag) {
		panic(fmt.Errorf("render: invalid tag name %q", spec.Tag))
	}
	h.buf.WriteByte('<')
	h.buf.WriteString(spec.Tag)
	for _, a := range spec.Attributes() {
		if !validName(a.Name) {
			panic(fmt.Errorf("render: invalid attribute name %q", a.Name))
		}
		h.buf.WriteByte(' ')
		h.buf.WriteString(a.Name)
		h.buf.WriteString(`="`)
		h.buf.WriteString(templ.EscapeString(a.Value))
		h.buf.WriteByte('"')
	}
	h.buf.WriteByte('>')
	h.stack = append(h.stack, spec.Tag)
	h.lastText = false
	return nil
}

// Text writes escaped text.
func (h *HTML) Text(content string) compose.Handle {
	if h.lastText {
		h.buf.WriteString(textSeparator)
	}
	h.buf.WriteString(templ.EscapeString(content))
	h.lastText = true
	return nil
}

// CloseNode writes the end tag of the current element.
func (h *HTML) CloseNode() {
	n := len(h.stack)
	if n == 0 {
		panic(compose.ErrUnbalancedNode)
	}
	tag := h.stack[n-1]
	h.stack = h.stack[:n-1]
	if !voidElements[tag] {
		h.buf.WriteString("</")
		h.buf.WriteString(tag)
		h.buf.WriteByte('>')
	}
	h.lastText = false
}

// Parent returns nil: markup has no addressable containers.
func (h *HTML) Parent() compose.Handle { return nil }

// Checkpoint captures the buffer position.
func (h *HTML) Checkpoint() compose.Checkpoint {
	return htmlCheckpoint{size: h.buf.Len(), depth: len(h.stack), lastText: h.lastText}
}

// Rollback truncates output written since cp.
func (h *HTML) Rollback(cp compose.Checkpoint) {
	c := cp.(htmlCheckpoint)
	h.buf.Truncate(c.size)
	h.stack = h.stack[:c.depth]
	h.lastText = c.lastText
}

// String returns the markup of the last pass.
func (h *HTML) String() string {
	return h.buf.String()
}

// WriteTo writes the markup of the last pass to w.
func (h *HTML) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(h.buf.Bytes())
	return int64(n), err
}

// Component returns the current markup as a templ component.
func (h *HTML) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := h.WriteTo(w)
		return err
	})
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		case b >= '0' && b <= '9', b == '-', b == '_', b == ':', b == '.':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

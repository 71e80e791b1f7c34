package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/pthm/summon/lib/compose"
	"github.com/pthm/summon/lib/dom"
)

// Sentinel errors for hydration.
var (
	ErrNoRoot     = errors.New("hydrate: root container not found")
	ErrNoPayload  = errors.New("hydrate: payload block not found")
	ErrBadPayload = errors.New("hydrate: payload block does not decode")
)

// IsNoRoot reports whether err is ErrNoRoot.
func IsNoRoot(err error) bool { return errors.Is(err, ErrNoRoot) }

// Root returns the element carrying data-summon-root="rootID".
func Root(doc *dom.Document, rootID string) (*html.Node, error) {
	n := dom.ElementByAttr(doc.Root, compose.AttrRoot, rootID)
	if n == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoRoot, rootID)
	}
	return n, nil
}

// Roots returns the ids of every root container in the document.
func Roots(doc *dom.Document) []string {
	var ids []string
	for _, n := range dom.FindAll(doc.Root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && dom.HasAttr(n, compose.AttrRoot)
	}) {
		id, _ := dom.Attr(n, compose.AttrRoot)
		ids = append(ids, id)
	}
	return ids
}

// ReadPayload decodes the island records embedded for rootID. A missing or
// broken block yields an empty, non-nil map together with the error, so the
// caller can carry on with client-side fallbacks.
func ReadPayload(doc *dom.Document, rootID string) (map[string]compose.IslandRecord, error) {
	recs := make(map[string]compose.IslandRecord)
	el := doc.ElementByID(compose.PayloadID(rootID))
	if el == nil {
		return recs, fmt.Errorf("%w: #%s", ErrNoPayload, compose.PayloadID(rootID))
	}
	raw := strings.TrimSpace(dom.TextContent(el))
	if raw == "" {
		return recs, nil
	}
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return make(map[string]compose.IslandRecord), fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return recs, nil
}

// IsHydrated reports whether the root element was already hydrated.
func IsHydrated(root *html.Node) bool {
	v, _ := dom.Attr(root, compose.AttrHydrated)
	return v == "true"
}

// MarkHydrated flags the root element as hydrated.
func MarkHydrated(root *html.Node) {
	dom.SetAttr(root, compose.AttrHydrated, "true")
}

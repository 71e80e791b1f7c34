package summon

import (
	"bytes"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// StaticPrefix is the path client bundles are served under.
const StaticPrefix = "/summon/static/"

//go:embed static/summon.mjs static/summon.legacy.js
var staticFS embed.FS

// Asset is one content-hashed client bundle.
type Asset struct {
	// Name is the logical name, e.g. "summon" or "summon.legacy".
	Name string
	// Hash is the first 8 bytes of the content's SHA-256, hex encoded.
	Hash string
	// Module marks the ES module bundle. The other bundle is nomodule.
	Module bool

	body []byte
}

// File returns the served file name, {name}.{hash}.js.
func (a *Asset) File() string { return a.Name + "." + a.Hash + ".js" }

// Size returns the bundle length in bytes.
func (a *Asset) Size() int { return len(a.body) }

// Assets serves the client bundles and renders the script tags that load
// them. Bundle URLs change with their content, so responses are cached
// forever.
type Assets struct {
	prefix string
	module *Asset
	legacy *Asset
	byFile map[string]*Asset
}

// NewAssets loads the embedded bundles for serving under prefix. An empty
// prefix means StaticPrefix.
func NewAssets(prefix string) *Assets {
	if prefix == "" {
		prefix = StaticPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	a := &Assets{prefix: prefix, byFile: make(map[string]*Asset)}
	a.module = a.load("summon", "static/summon.mjs", true)
	a.legacy = a.load("summon.legacy", "static/summon.legacy.js", false)
	return a
}

func (a *Assets) load(name, file string, module bool) *Asset {
	body, err := staticFS.ReadFile(file)
	if err != nil {
		panic(fmt.Sprintf("summon: missing embedded asset %s: %v", file, err))
	}
	sum := sha256.Sum256(body)
	asset := &Asset{Name: name, Hash: hex.EncodeToString(sum[:8]), Module: module, body: body}
	a.byFile[asset.File()] = asset
	return asset
}

// Prefix returns the mount path.
func (a *Assets) Prefix() string { return a.prefix }

// URL returns the served path of asset.
func (a *Assets) URL(asset *Asset) string { return a.prefix + asset.File() }

// List returns the bundles in file name order.
func (a *Assets) List() []*Asset {
	out := make([]*Asset, 0, len(a.byFile))
	for _, asset := range a.byFile {
		out = append(out, asset)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File() < out[j].File() })
	return out
}

// Lookup returns the bundle served as file.
func (a *Assets) Lookup(file string) (*Asset, bool) {
	asset, ok := a.byFile[file]
	return asset, ok
}

// Scripts renders the loader tags: the module bundle for current browsers
// and the nomodule bundle for the rest. Both are deferred.
//
// Add this to your layout template (typically at the end of <head>):
//
//	@assets.Scripts()
func (a *Assets) Scripts() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<script type="module" src="%s" defer></script><script nomodule src="%s" defer></script>`,
			templ.EscapeString(a.URL(a.module)), templ.EscapeString(a.URL(a.legacy)))
		return err
	})
}

// ServeHTTP serves GET {prefix}{name}.{hash}.js.
func (a *Assets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	asset, ok := a.Lookup(path.Base(r.URL.Path))
	if !ok || !strings.HasPrefix(r.URL.Path, a.prefix) {
		http.NotFound(w, r)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/javascript; charset=utf-8")
	h.Set("Cache-Control", "public, max-age=31536000, immutable")
	h.Set("ETag", `"`+asset.Hash+`"`)
	http.ServeContent(w, r, asset.File(), time.Time{}, bytes.NewReader(asset.body))
}

package summon

import (
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/summon/lib/dispatch"
)

// Render writes a templ component to the HTTP response.
//
// Sets Content-Type to text/html and renders the component using the
// request's context:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    summon.Render(w, r, summon.Page("app", app))
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsSummonRequest returns true if the request was issued by the client
// runtime, which sends X-Summon-Request: true on every RPC.
func IsSummonRequest(r *http.Request) bool {
	return r.Header.Get(dispatch.RequestHeader) == "true"
}

// WantsJSON returns true if the response should be a JSON directive rather
// than a redirect: either the client runtime sent the request or the
// Accept header prefers application/json.
func WantsJSON(r *http.Request) bool {
	if IsSummonRequest(r) {
		return true
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}

// RefererPath returns the path of the page that issued the request, or "/"
// when the Referer is absent or points at another host.
//
// Used as the 303 target for form posts from clients without scripts.
func RefererPath(r *http.Request) string {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "/"
	}
	if u.Host != "" && u.Host != r.Host {
		return "/"
	}
	p := u.EscapedPath()
	if p == "" || !strings.HasPrefix(p, "/") {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

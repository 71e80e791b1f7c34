package summon

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pthm/summon/lib/action"
)

// CallbackHandler serves POST /summon/callback/{id}.
//
// A hit runs the registered closure. Scripted clients (X-Summon-Request or
// Accept: application/json) get 200 with a reload directive; plain form
// posts get 303 See Other back to the page they came from. Unknown ids go
// to OnMiss, which answers 404 by default.
type CallbackHandler struct {
	reg    *CallbackRegistry
	prefix string
	log    *zap.Logger

	// OnMiss is called when the id is unknown or expired.
	// Customize this to render an expiry notice.
	OnMiss func(w http.ResponseWriter, r *http.Request, id string)
}

// HandlerOption configures a CallbackHandler.
type HandlerOption func(*CallbackHandler)

// WithOnMiss replaces the handler for unknown ids.
func WithOnMiss(fn func(w http.ResponseWriter, r *http.Request, id string)) HandlerOption {
	return func(h *CallbackHandler) { h.OnMiss = fn }
}

// WithPrefix sets the path the handler is mounted under. Defaults to
// /summon/callback/.
func WithPrefix(prefix string) HandlerOption {
	return func(h *CallbackHandler) { h.prefix = prefix }
}

// WithHandlerLogger sets the request logger.
func WithHandlerLogger(l *zap.Logger) HandlerOption {
	return func(h *CallbackHandler) { h.log = l }
}

// NewCallbackHandler creates a handler executing callbacks from reg.
func NewCallbackHandler(reg *CallbackRegistry, opts ...HandlerOption) *CallbackHandler {
	h := &CallbackHandler{reg: reg, prefix: action.CallbackPrefix}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = Logger()
	}
	if h.OnMiss == nil {
		h.OnMiss = func(w http.ResponseWriter, r *http.Request, id string) {
			http.Error(w, "Callback expired", http.StatusNotFound)
		}
	}
	return h
}

// Prefix returns the path the handler expects to be mounted under.
func (h *CallbackHandler) Prefix() string { return h.prefix }

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// CSRF protection: browsers label cross-site requests.
	if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		http.Error(w, "Forbidden: cross-site request", http.StatusForbidden)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		id = strings.TrimPrefix(r.URL.Path, h.prefix)
	}
	if id == "" || strings.Contains(id, "/") || !h.reg.Execute(id) {
		h.log.Debug("callback miss", zap.String("id", id))
		h.OnMiss(w, r, id)
		return
	}
	h.log.Debug("callback executed", zap.String("id", id))

	if WantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(action.Reload()); err != nil {
			h.log.Warn("writing reload directive", zap.String("id", id), zap.Error(err))
		}
		return
	}
	http.Redirect(w, r, RefererPath(r), http.StatusSeeOther)
}

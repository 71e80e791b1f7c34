package summon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	"github.com/pthm/summon/lib/action"
	"github.com/pthm/summon/lib/compose"
	"github.com/pthm/summon/lib/render"
)

// TestResult holds the result of rendering a composition or calling an
// endpoint in a test.
//
// Provides convenience methods for asserting on HTML content, islands,
// callbacks, status codes, directives and redirects.
type TestResult struct {
	HTML       string
	Islands    map[string]compose.IslandRecord
	Errors     []error
	StatusCode int
	Headers    http.Header
	Directive  action.Directive

	// RedirectURL is the Location of a 303 response.
	RedirectURL string

	// Callbacks holds the closures registered while composing.
	Callbacks *CallbackRegistry

	composer *compose.Composer
	html     *render.HTML
}

// TestCompose renders body with the string backend and returns testable
// output.
//
// Use this for pure unit tests of compositions. Callbacks are stored in a
// fresh registry with sequential ids (cb-1, cb-2, ...), and component
// failures are collected in Errors instead of being logged:
//
//	result, err := summon.TestCompose(counter)
//	result.Invoke(result.CallbackIDs("c1")[0])
//	if !result.HTMLContains("<output>1</output>") {
//	    t.Fatal("counter did not advance")
//	}
func TestCompose(body func(c *compose.Composer)) (*TestResult, error) {
	return TestComposeWithEncoder(nil, body)
}

// TestComposeWithEncoder is TestCompose for compositions that build RPC
// actions with compose.RPC.
func TestComposeWithEncoder(enc *Encoder, body func(c *compose.Composer)) (*TestResult, error) {
	n := 0
	reg := NewCallbackRegistry(WithIDGenerator(func() string {
		n++
		return "cb-" + strconv.Itoa(n)
	}))
	r := &TestResult{
		StatusCode: http.StatusOK,
		Headers:    make(http.Header),
		Callbacks:  reg,
		html:       render.NewHTML(),
	}
	r.composer = compose.New(compose.Options{
		Backend:   r.html,
		Callbacks: reg,
		Encoder:   enc,
		ErrorSink: func(err error) { r.Errors = append(r.Errors, err) },
	})
	if err := r.composer.Compose(body); err != nil {
		return nil, err
	}
	if err := r.snapshot(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *TestResult) snapshot() error {
	recs, err := r.composer.Islands()
	if err != nil {
		return err
	}
	r.Islands = recs
	r.HTML = r.html.String()
	return nil
}

// Invoke executes callback id and re-renders pending changes, as a click
// followed by a page reload would. It reports whether id was known.
func (r *TestResult) Invoke(id string) bool {
	if r.composer == nil || !r.Callbacks.Execute(id) {
		return false
	}
	return r.Refresh() == nil
}

// Refresh runs the pending recomposition batch and updates HTML and
// Islands.
func (r *TestResult) Refresh() error {
	if r.composer == nil {
		return nil
	}
	if err := r.composer.RunPending(); err != nil {
		return err
	}
	return r.snapshot()
}

// CallbackIDs returns the callback ids recorded for island id, in order.
func (r *TestResult) CallbackIDs(id string) []string {
	return r.Islands[id].Callbacks
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HTMLContainsAny checks if the HTML contains any of the given substrings.
func (r *TestResult) HTMLContainsAny(substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(r.HTML, s) {
			return true
		}
	}
	return false
}

// HasIsland checks if an island with the given id and type was composed.
func (r *TestResult) HasIsland(id, typ string) bool {
	rec, ok := r.Islands[id]
	return ok && rec.Type == typ
}

// HasErrors checks if any component failed while composing.
func (r *TestResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// IsOK checks if the status code is 200.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

// HasStatus checks if the status code matches.
func (r *TestResult) HasStatus(code int) bool {
	return r.StatusCode == code
}

// HasHeader checks if a header is set with the given value.
func (r *TestResult) HasHeader(key, value string) bool {
	return r.Headers.Get(key) == value
}

// GetHeader returns the value of a header.
func (r *TestResult) GetHeader(key string) string {
	return r.Headers.Get(key)
}

// WasRedirected checks if the response was a redirect.
func (r *TestResult) WasRedirected() bool {
	return r.RedirectURL != ""
}

// RedirectedTo checks if the response was redirected to a specific URL.
func (r *TestResult) RedirectedTo(url string) bool {
	return r.RedirectURL == url
}

// IsReload checks if the response asked the client to reload.
func (r *TestResult) IsReload() bool {
	return r.Directive.Action == action.DirectiveReload
}

// TestCallback simulates the client runtime executing callback id against
// h, which is usually a *CallbackHandler.
//
//	result, err := summon.TestCallback(handler, id)
//	if !result.IsReload() {
//	    t.Fatal("expected reload directive")
//	}
func TestCallback(h http.Handler, id string) (*TestResult, error) {
	return NewTestRequest(http.MethodPost, action.CallbackEndpoint(id)).
		WithHeader("X-Summon-Request", "true").
		Execute(h)
}

// TestRequestBuilder provides a fluent interface for building test requests.
//
// Use this when you need fine-grained control over request construction:
//
//	result, err := summon.NewTestRequest("POST", summon.CallbackEndpoint(id)).
//	    WithHeader("Referer", "http://example.com/page").
//	    WithContext(ctx).
//	    Execute(handler)
type TestRequestBuilder struct {
	method  string
	url     string
	body    string
	headers map[string]string
	ctx     context.Context
}

// NewTestRequest creates a new test request builder.
func NewTestRequest(method, url string) *TestRequestBuilder {
	return &TestRequestBuilder{
		method:  method,
		url:     url,
		headers: make(map[string]string),
		ctx:     context.Background(),
	}
}

// WithJSON sets a JSON request body.
func (b *TestRequestBuilder) WithJSON(v any) *TestRequestBuilder {
	data, _ := json.Marshal(v)
	b.body = string(data)
	b.headers["Content-Type"] = "application/json"
	return b
}

// WithHeader adds a header to the request.
func (b *TestRequestBuilder) WithHeader(key, value string) *TestRequestBuilder {
	b.headers[key] = value
	return b
}

// WithContext sets the context for the request.
func (b *TestRequestBuilder) WithContext(ctx context.Context) *TestRequestBuilder {
	b.ctx = ctx
	return b
}

// Execute executes the request against h.
func (b *TestRequestBuilder) Execute(h http.Handler) (*TestResult, error) {
	req := httptest.NewRequest(b.method, b.url, strings.NewReader(b.body))
	req = req.WithContext(b.ctx)
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		return nil, err
	}
	result := &TestResult{
		HTML:       string(body),
		StatusCode: rec.Code,
		Headers:    rec.Header(),
	}
	if rec.Code == http.StatusSeeOther {
		result.RedirectURL = rec.Header().Get("Location")
	}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		dir, err := action.ParseDirective(body)
		if err != nil {
			return nil, err
		}
		result.Directive = dir
	}
	return result, nil
}

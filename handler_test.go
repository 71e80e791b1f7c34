package summon

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		id         string
		headers    map[string]string
		wantStatus int
		wantCalls  int
		wantLoc    string
		wantBody   string
	}{
		{
			name:       "scripted client gets reload directive",
			method:     http.MethodPost,
			id:         "known",
			headers:    map[string]string{"X-Summon-Request": "true"},
			wantStatus: http.StatusOK,
			wantCalls:  1,
			wantBody:   `{"action":"reload"}`,
		},
		{
			name:       "accept json gets reload directive",
			method:     http.MethodPost,
			id:         "known",
			headers:    map[string]string{"Accept": "application/json"},
			wantStatus: http.StatusOK,
			wantCalls:  1,
			wantBody:   `{"action":"reload"}`,
		},
		{
			name:       "form post redirects to referer",
			method:     http.MethodPost,
			id:         "known",
			headers:    map[string]string{"Referer": "http://example.com/todos?filter=open"},
			wantStatus: http.StatusSeeOther,
			wantCalls:  1,
			wantLoc:    "/todos?filter=open",
		},
		{
			name:       "form post without referer redirects home",
			method:     http.MethodPost,
			id:         "known",
			wantStatus: http.StatusSeeOther,
			wantCalls:  1,
			wantLoc:    "/",
		},
		{
			name:       "unknown id",
			method:     http.MethodPost,
			id:         "gone",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "GET not allowed",
			method:     http.MethodGet,
			id:         "known",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "cross-site request refused",
			method:     http.MethodPost,
			id:         "known",
			headers:    map[string]string{"Sec-Fetch-Site": "cross-site"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "same-origin fetch allowed",
			method:     http.MethodPost,
			id:         "known",
			headers:    map[string]string{"Sec-Fetch-Site": "same-origin", "X-Summon-Request": "true"},
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewCallbackRegistry()
			calls := 0
			reg.Bind("known", func() { calls++ })
			h := NewCallbackHandler(reg)

			req := httptest.NewRequest(tt.method, "http://example.com"+CallbackEndpoint(tt.id), nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantLoc != "" && rec.Header().Get("Location") != tt.wantLoc {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.wantLoc)
			}
			if tt.wantBody != "" && strings.TrimSpace(rec.Body.String()) != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestCallbackHandlerOnMiss(t *testing.T) {
	var missed string
	h := NewCallbackHandler(NewCallbackRegistry(), WithOnMiss(func(w http.ResponseWriter, r *http.Request, id string) {
		missed = id
		w.WriteHeader(http.StatusGone)
	}))

	result, err := TestCallback(h, "expired")
	if err != nil {
		t.Fatalf("TestCallback() error = %v", err)
	}
	if !result.HasStatus(http.StatusGone) {
		t.Errorf("status = %d, want %d", result.StatusCode, http.StatusGone)
	}
	if missed != "expired" {
		t.Errorf("OnMiss id = %q, want %q", missed, "expired")
	}
}

func TestCallbackHandlerPathValue(t *testing.T) {
	reg := NewCallbackRegistry()
	ran := false
	reg.Bind("abc", func() { ran = true })

	mux := http.NewServeMux()
	mux.Handle("/cb/{id}", NewCallbackHandler(reg, WithPrefix("/cb/")))

	result, err := NewTestRequest(http.MethodPost, "/cb/abc").
		WithHeader("X-Summon-Request", "true").
		Execute(mux)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsOK() || !result.IsReload() {
		t.Errorf("status = %d, directive = %+v; want 200 reload", result.StatusCode, result.Directive)
	}
	if !ran {
		t.Error("callback did not run")
	}
}

func TestCallbackHandlerSingleUse(t *testing.T) {
	reg := NewCallbackRegistry(WithSingleUse())
	id := reg.Register(func() {})
	h := NewCallbackHandler(reg)

	first, _ := TestCallback(h, id)
	second, _ := TestCallback(h, id)
	if !first.IsOK() {
		t.Errorf("first status = %d, want 200", first.StatusCode)
	}
	if !second.HasStatus(http.StatusNotFound) {
		t.Errorf("second status = %d, want 404", second.StatusCode)
	}
}

// brokenWriter fails every body write.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestCallbackHandlerLogsWriteError(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := NewCallbackRegistry()
	reg.Bind("known", func() {})
	h := NewCallbackHandler(reg, WithHandlerLogger(zap.New(core)))

	req := httptest.NewRequest(http.MethodPost, CallbackEndpoint("known"), nil)
	req.Header.Set("X-Summon-Request", "true")
	h.ServeHTTP(brokenWriter{httptest.NewRecorder()}, req)

	entries := logs.FilterMessage("writing reload directive").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d write errors, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["error"]; got != "connection reset" {
		t.Errorf("logged error = %v, want %q", got, "connection reset")
	}
}

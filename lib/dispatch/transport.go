package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pthm/summon/lib/action"
)

// RequestHeader marks requests issued by the runtime. Servers answer them
// with a JSON directive instead of a redirect.
const RequestHeader = "X-Summon-Request"

// ErrStatus is returned for RPC responses outside the 2xx range.
var ErrStatus = errors.New("dispatch: unexpected rpc status")

// HTTPTransport performs RPCs as JSON POST requests.
type HTTPTransport struct {
	// BaseURL is prefixed to relative endpoints.
	BaseURL string

	// Client defaults to http.DefaultClient.
	Client *http.Client

	// Header is added to every request.
	Header http.Header
}

// Call posts payload as JSON to endpoint and decodes the directive in the
// response.
func (t *HTTPTransport) Call(ctx context.Context, endpoint string, payload map[string]any) (action.Directive, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return action.Directive{}, fmt.Errorf("dispatch: encode payload: %w", err)
	}

	url := endpoint
	if t.BaseURL != "" && strings.HasPrefix(endpoint, "/") {
		url = strings.TrimSuffix(t.BaseURL, "/") + endpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return action.Directive{}, err
	}
	for k, vs := range t.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestHeader, "true")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return action.Directive{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return action.Directive{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return action.Directive{}, fmt.Errorf("%w: %s %d", ErrStatus, endpoint, resp.StatusCode)
	}
	return action.ParseDirective(data)
}

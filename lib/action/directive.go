package action

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Directive verbs a server can answer an RPC with.
const (
	DirectiveNone     = "none"
	DirectiveReload   = "reload"
	DirectiveNavigate = "navigate"
)

// Directive tells the client what to do once an RPC has completed.
type Directive struct {
	Action string `json:"action"`
	URL    string `json:"url,omitempty"`
}

// Reload asks the client to reload the current document.
func Reload() Directive { return Directive{Action: DirectiveReload} }

// Redirect asks the client to navigate to url.
func Redirect(url string) Directive { return Directive{Action: DirectiveNavigate, URL: url} }

// ParseDirective decodes an RPC response body. An empty body is DirectiveNone.
func ParseDirective(data []byte) (Directive, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Directive{Action: DirectiveNone}, nil
	}
	var d Directive
	if err := json.Unmarshal(data, &d); err != nil {
		return Directive{}, fmt.Errorf("%w: directive: %v", ErrMalformedAction, err)
	}
	switch d.Action {
	case "":
		d.Action = DirectiveNone
	case DirectiveNone, DirectiveReload:
	case DirectiveNavigate:
		if d.URL == "" {
			return Directive{}, fmt.Errorf("%w: navigate directive without url", ErrMalformedAction)
		}
	default:
		return Directive{}, fmt.Errorf("%w: directive %q", ErrUnknownAction, d.Action)
	}
	return d, nil
}

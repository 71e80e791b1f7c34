// Package action defines the UI Action union: a serializable description of
// what should happen when a user interacts with an element. Actions travel
// inside server-rendered markup and are executed either by the client
// dispatcher or, for callbacks, by the server endpoint.
package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind is the wire tag of an action.
type Kind string

const (
	KindNavigate Kind = "navigate"
	KindRPC      Kind = "rpc"
	KindToggle   Kind = "toggle"
)

// CallbackPrefix is the path under which server callbacks are executed.
const CallbackPrefix = "/summon/callback/"

var (
	ErrMalformedAction = errors.New("action: malformed action payload")
	ErrUnknownAction   = errors.New("action: unknown action type")
)

// Action is one of Navigate, ServerRPC or Toggle.
type Action interface {
	Kind() Kind
	validate() error
}

// Navigate changes the document location.
type Navigate struct {
	URL string
}

// ServerRPC issues a request to Endpoint carrying Payload.
type ServerRPC struct {
	Endpoint string
	Payload  map[string]any
}

// Toggle flips the visibility of the element whose id is TargetID.
type Toggle struct {
	TargetID string
}

func (Navigate) Kind() Kind  { return KindNavigate }
func (ServerRPC) Kind() Kind { return KindRPC }
func (Toggle) Kind() Kind    { return KindToggle }

func (a Navigate) validate() error {
	if a.URL == "" {
		return fmt.Errorf("%w: navigate without url", ErrMalformedAction)
	}
	return nil
}

func (a ServerRPC) validate() error {
	if a.Endpoint == "" {
		return fmt.Errorf("%w: rpc without endpoint", ErrMalformedAction)
	}
	return nil
}

func (a Toggle) validate() error {
	if a.TargetID == "" {
		return fmt.Errorf("%w: toggle without targetId", ErrMalformedAction)
	}
	return nil
}

// CallbackID returns the callback id addressed by an RPC endpoint, if the
// endpoint points at the callback path.
func (a ServerRPC) CallbackID() (string, bool) {
	return CallbackID(a.Endpoint)
}

// Callback returns an RPC action that executes the server callback id.
func Callback(id string) ServerRPC {
	return ServerRPC{Endpoint: CallbackEndpoint(id)}
}

// CallbackEndpoint returns the endpoint path for a callback id.
func CallbackEndpoint(id string) string {
	return CallbackPrefix + id
}

// CallbackID extracts the callback id from an endpoint path.
func CallbackID(endpoint string) (string, bool) {
	id, ok := strings.CutPrefix(endpoint, CallbackPrefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// wire is the JSON shape shared by all variants. Field order fixes the
// serialized key order: {"type":"toggle","targetId":"menu-42"}.
type wire struct {
	Type     Kind           `json:"type"`
	URL      string         `json:"url,omitempty"`
	Endpoint string         `json:"endpoint,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
	TargetID string         `json:"targetId,omitempty"`
}

// Marshal serializes an action to its JSON wire form.
func Marshal(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil action", ErrMalformedAction)
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	w := wire{Type: a.Kind()}
	switch v := a.(type) {
	case Navigate:
		w.URL = v.URL
	case ServerRPC:
		w.Endpoint = v.Endpoint
		w.Payload = v.Payload
	case Toggle:
		w.TargetID = v.TargetID
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
	return json.Marshal(w)
}

// MarshalString is Marshal returning a string, for use in attribute values.
func MarshalString(a Action) (string, error) {
	data, err := Marshal(a)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Unmarshal parses the JSON wire form of an action.
func Unmarshal(data []byte) (Action, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	var a Action
	switch w.Type {
	case KindNavigate:
		a = Navigate{URL: w.URL}
	case KindRPC:
		a = ServerRPC{Endpoint: w.Endpoint, Payload: w.Payload}
	case KindToggle:
		a = Toggle{TargetID: w.TargetID}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedAction)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, w.Type)
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// IsMalformed reports whether err stems from an undecodable payload.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedAction)
}

// IsUnknown reports whether err stems from an unrecognized action type.
func IsUnknown(err error) bool {
	return errors.Is(err, ErrUnknownAction)
}

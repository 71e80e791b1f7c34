package summon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pthm/summon/lib/action"
	"github.com/pthm/summon/lib/compose"
)

type saveProps struct {
	ItemID string
	Title  string
}

func (p saveProps) EncodeProps() map[string]any {
	return map[string]any{"id": p.ItemID, "t": p.Title}
}

func (p *saveProps) DecodeProps(m map[string]any) error {
	id, ok := m["id"].(string)
	if !ok {
		return fmt.Errorf("id: got %T", m["id"])
	}
	p.ItemID = id
	p.Title, _ = m["t"].(string)
	return nil
}

func testEncoder(t *testing.T) *Encoder {
	t.Helper()
	enc, err := NewEncoder([]byte("test-key-test-key-test-key-12345"))
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}
	return enc
}

func rpcRequest(t *testing.T, payload map[string]any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return httptest.NewRequest(http.MethodPost, "/todos/save", bytes.NewReader(body))
}

func TestDecodeRPCRoundTrip(t *testing.T) {
	enc := testEncoder(t)

	var rpc action.ServerRPC
	result, err := TestComposeWithEncoder(enc, func(c *compose.Composer) {
		a := compose.RPC(c, "/todos/save", saveProps{ItemID: "42", Title: "milk"})
		rpc = a.(action.ServerRPC)
		c.El("button", []compose.Attr{compose.OnAction(a)}, func() { c.Text("Save") })
	})
	if err != nil {
		t.Fatalf("TestComposeWithEncoder() error = %v", err)
	}
	if !result.HTMLContains("data-summon-action=") {
		t.Errorf("HTML = %q, want an action attribute", result.HTML)
	}
	if rpc.Endpoint != "/todos/save" {
		t.Errorf("Endpoint = %q, want /todos/save", rpc.Endpoint)
	}

	var got saveProps
	if err := DecodeRPC(enc, rpcRequest(t, rpc.Payload), &got); err != nil {
		t.Fatalf("DecodeRPC() error = %v", err)
	}
	if got.ItemID != "42" || got.Title != "milk" {
		t.Errorf("DecodeRPC() = %+v, want {42 milk}", got)
	}
}

func TestDecodeRPCErrors(t *testing.T) {
	enc := testEncoder(t)
	other, err := NewEncoder([]byte("another key"))
	if err != nil {
		t.Fatal(err)
	}
	forged, err := other.Encode(saveProps{ItemID: "1"}, 0)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		body string
		want error
	}{
		{"not json", "{", ErrInvalidFormat},
		{"missing payload", `{}`, ErrInvalidFormat},
		{"empty payload", `{"p":""}`, ErrInvalidFormat},
		{"garbage payload", `{"p":"not-a-payload"}`, ErrInvalidFormat},
		{"wrong key", `{"p":"` + forged + `"}`, ErrSignatureInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var got saveProps
			err := DecodeRPC(enc, req, &got)
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodeRPC() error = %v, want %v", err, tt.want)
			}
		})
	}
}

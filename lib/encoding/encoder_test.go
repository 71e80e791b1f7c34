package encoding

import (
	"errors"
	"strings"
	"testing"
)

// counterProps implements Encodable and Decodable for testing.
type counterProps struct {
	ID    int64
	Label string
	Step  bool
}

func (p counterProps) EncodeProps() map[string]any {
	return map[string]any{
		"id":    p.ID,
		"label": p.Label,
		"step":  p.Step,
	}
}

func (p *counterProps) DecodeProps(m map[string]any) error {
	switch n := m["id"].(type) {
	case int64:
		p.ID = n
	case int8:
		p.ID = int64(n)
	case int16:
		p.ID = int64(n)
	case int32:
		p.ID = int64(n)
	case uint8:
		p.ID = int64(n)
	case uint16:
		p.ID = int64(n)
	case uint32:
		p.ID = int64(n)
	case uint64:
		p.ID = int64(n)
	}
	if v, ok := m["label"].(string); ok {
		p.Label = v
	}
	if v, ok := m["step"].(bool); ok {
		p.Step = v
	}
	return nil
}

func newTestEncoder(t *testing.T, key string) *Encoder {
	t.Helper()
	enc, err := NewEncoder([]byte(key))
	if err != nil {
		t.Fatalf("NewEncoder(%q) failed: %v", key, err)
	}
	return enc
}

func TestNewEncoder(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"short key is stretched", "short", false},
		{"32 byte key", "this-is-a-32-byte-key-for-aes!!!", false},
		{"empty key", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncoder([]byte(tt.key))
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEncoder() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	enc := newTestEncoder(t, "test-key")
	tests := []struct {
		name  string
		mode  Mode
		props counterProps
	}{
		{"signed", Signed, counterProps{ID: 12345, Label: "clicks", Step: true}},
		{"sealed", Sealed, counterProps{ID: 67890, Label: "secret"}},
		{"zero values", Signed, counterProps{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := enc.Encode(tt.props, tt.mode)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got := strings.HasPrefix(encoded, "e."); got != (tt.mode == Sealed) {
				t.Errorf("Encode() sealed prefix = %v for mode %v", got, tt.mode)
			}
			var got counterProps
			if err := enc.Decode(encoded, &got); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tt.props {
				t.Errorf("Decode() = %+v, want %+v", got, tt.props)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	enc := newTestEncoder(t, "test-key")
	signed, err := enc.Encode(counterProps{ID: 1, Label: "x"}, Signed)
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := enc.Encode(counterProps{ID: 1, Label: "x"}, Sealed)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		encoded string
		want    error
	}{
		{"missing separator", "invalidbase64withoutseparator", ErrInvalidFormat},
		{"tampered signature", signed[:len(signed)-2] + "XX", ErrSignature},
		{"tampered ciphertext", sealed[:len(sealed)-2] + "XX", ErrDecrypt},
		{"short ciphertext", "e.AAAA", ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got counterProps
			err := enc.Decode(tt.encoded, &got)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDifferentKeysCannotDecode(t *testing.T) {
	one := newTestEncoder(t, "key-one")
	two := newTestEncoder(t, "key-two")

	encoded, err := one.Encode(counterProps{ID: 123}, Signed)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var got counterProps
	if err := two.Decode(encoded, &got); !errors.Is(err, ErrSignature) {
		t.Errorf("Decode() with other key error = %v, want %v", err, ErrSignature)
	}
}

func TestNotEncodable(t *testing.T) {
	enc := newTestEncoder(t, "test-key")
	if _, err := enc.Encode(struct{}{}, Signed); !errors.Is(err, ErrNotEncodable) {
		t.Errorf("Encode() error = %v, want %v", err, ErrNotEncodable)
	}
	encoded, _ := enc.EncodeMap(map[string]any{"a": "b"}, Signed)
	var v struct{}
	if err := enc.Decode(encoded, &v); !errors.Is(err, ErrNotDecodable) {
		t.Errorf("Decode() error = %v, want %v", err, ErrNotDecodable)
	}
}

func TestDecodeMap(t *testing.T) {
	enc := newTestEncoder(t, "test-key")
	encoded, err := enc.EncodeMap(map[string]any{"label": "hello"}, Signed)
	if err != nil {
		t.Fatal(err)
	}
	props, err := enc.DecodeMap(encoded)
	if err != nil {
		t.Fatalf("DecodeMap() error = %v", err)
	}
	if props["label"] != "hello" {
		t.Errorf("DecodeMap()[label] = %v, want %q", props["label"], "hello")
	}
}

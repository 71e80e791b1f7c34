// Package encoding seals the props carried by server RPC payloads.
//
// Props travel through the page and back to the server, so they are either
// signed (readable, tamper-evident) or encrypted (opaque). Both forms are
// msgpack underneath and URL-safe base64 on the wire.
package encoding

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Sentinel errors returned by Decode.
var (
	ErrInvalidFormat  = errors.New("encoding: invalid payload format")
	ErrSignature      = errors.New("encoding: signature verification failed")
	ErrDecrypt        = errors.New("encoding: decryption failed")
	ErrNotEncodable   = errors.New("encoding: type does not implement Encodable")
	ErrNotDecodable   = errors.New("encoding: type does not implement Decodable")
	sealedPrefix      = "e."
	signatureByteSize = 16
)

// Mode selects how a payload is protected.
type Mode int

const (
	// Signed payloads are readable but tamper-evident.
	Signed Mode = iota
	// Sealed payloads are encrypted with AES-256-GCM.
	Sealed
)

// Encoder signs or seals prop maps with one key.
type Encoder struct {
	key []byte
	gcm cipher.AEAD
}

// NewEncoder creates an encoder. Keys shorter than 32 bytes are stretched
// with SHA-256.
func NewEncoder(key []byte) (*Encoder, error) {
	if len(key) == 0 {
		return nil, errors.New("encoding: empty key")
	}
	if len(key) < 32 {
		h := sha256.Sum256(key)
		key = h[:]
	}
	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encoder{key: key, gcm: gcm}, nil
}

// Encodable is implemented by props passed to RPC actions.
type Encodable interface {
	EncodeProps() map[string]any
}

// Decodable is implemented by props received by RPC endpoints.
type Decodable interface {
	DecodeProps(map[string]any) error
}

// Encode protects v's props. Sealed payloads carry an "e." prefix so
// Decode can tell the modes apart.
func (e *Encoder) Encode(v any, mode Mode) (string, error) {
	enc, ok := v.(Encodable)
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrNotEncodable, v)
	}
	return e.EncodeMap(enc.EncodeProps(), mode)
}

// EncodeMap protects a raw prop map.
func (e *Encoder) EncodeMap(props map[string]any, mode Mode) (string, error) {
	packed, err := msgpack.Marshal(props)
	if err != nil {
		return "", err
	}
	if mode == Sealed {
		return e.seal(packed)
	}
	return e.sign(packed), nil
}

// Decode verifies or opens encoded and hands the props to v.
func (e *Encoder) Decode(encoded string, v any) error {
	dec, ok := v.(Decodable)
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotDecodable, v)
	}
	props, err := e.DecodeMap(encoded)
	if err != nil {
		return err
	}
	return dec.DecodeProps(props)
}

// DecodeMap verifies or opens encoded and returns the raw prop map.
func (e *Encoder) DecodeMap(encoded string) (map[string]any, error) {
	var (
		packed []byte
		err    error
	)
	if rest, ok := strings.CutPrefix(encoded, sealedPrefix); ok {
		packed, err = e.open(rest)
	} else {
		packed, err = e.verify(encoded)
	}
	if err != nil {
		return nil, err
	}
	var props map[string]any
	if err := msgpack.Unmarshal(packed, &props); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return props, nil
}

// sign returns base64(data) "." base64(mac[:16]).
func (e *Encoder) sign(data []byte) string {
	mac := hmac.New(sha256.New, e.key)
	mac.Write(data)
	return base64.RawURLEncoding.EncodeToString(data) + "." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil)[:signatureByteSize])
}

func (e *Encoder) verify(encoded string) ([]byte, error) {
	body, sig, ok := strings.Cut(encoded, ".")
	if !ok {
		return nil, fmt.Errorf("%w: missing signature", ErrInvalidFormat)
	}
	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	mac := hmac.New(sha256.New, e.key)
	mac.Write(data)
	if !hmac.Equal(got, mac.Sum(nil)[:signatureByteSize]) {
		return nil, ErrSignature
	}
	return data, nil
}

func (e *Encoder) seal(data []byte) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(e.gcm.Seal(nonce, nonce, data, nil)), nil
}

func (e *Encoder) open(encoded string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	n := e.gcm.NonceSize()
	if len(raw) < n {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrInvalidFormat)
	}
	data, err := e.gcm.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return data, nil
}

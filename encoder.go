package summon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pthm/summon/lib/encoding"
)

// Encoder is an alias for encoding.Encoder for convenience.
type Encoder = encoding.Encoder

// Encodable is implemented by RPC props that encode themselves.
type Encodable = encoding.Encodable

// Decodable is implemented by RPC props that decode themselves.
type Decodable = encoding.Decodable

// NewEncoder creates a new encoder with the given key.
func NewEncoder(key []byte) (*Encoder, error) {
	return encoding.NewEncoder(key)
}

// wrapEncodingError wraps encoding package errors with summon sentinel errors.
func wrapEncodingError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, encoding.ErrInvalidFormat) {
		return ErrInvalidFormat
	}
	if errors.Is(err, encoding.ErrSignature) {
		return ErrSignatureInvalid
	}
	if errors.Is(err, encoding.ErrDecrypt) {
		return ErrDecryptFailed
	}
	return err
}

// payloadKey is the RPC payload field compose.RPC stores the props under.
const payloadKey = "p"

// maxRPCBody bounds the JSON body read by DecodeRPC.
const maxRPCBody = 1 << 20

// DecodeRPC reads the JSON payload of an RPC request built with compose.RPC
// and decodes the signed props into v.
//
//	func save(w http.ResponseWriter, r *http.Request) {
//	    var props SaveProps
//	    if err := summon.DecodeRPC(enc, r, &props); err != nil {
//	        http.Error(w, "bad request", http.StatusBadRequest)
//	        return
//	    }
//	    ...
//	}
func DecodeRPC(enc *Encoder, r *http.Request, v Decodable) error {
	var body map[string]any
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRPCBody))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return DecodePayload(enc, body, v)
}

// DecodePayload decodes the signed props of an already parsed RPC payload.
func DecodePayload(enc *Encoder, payload map[string]any, v Decodable) error {
	raw, ok := payload[payloadKey].(string)
	if !ok || raw == "" {
		return fmt.Errorf("%w: missing %q", ErrInvalidFormat, payloadKey)
	}
	return wrapEncodingError(enc.Decode(raw, v))
}

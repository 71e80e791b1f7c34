package summon

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pthm/summon/lib/encoding"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrDecryptFailed,
		ErrSignatureInvalid,
		ErrInvalidFormat,
		ErrHydrationFailed,
		ErrInvalidConfig,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("errors.Is(%v, %v) = true", a, b)
			}
		}
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name string
		err  error
		fn   func(error) bool
		want bool
	}{
		{"not found", ErrNotFound, IsNotFound, true},
		{"wrapped not found", fmt.Errorf("lookup: %w", ErrNotFound), IsNotFound, true},
		{"other not found", ErrInvalidFormat, IsNotFound, false},
		{"decrypt", ErrDecryptFailed, IsDecryptionError, true},
		{"signature", ErrSignatureInvalid, IsDecryptionError, true},
		{"format is not decryption", ErrInvalidFormat, IsDecryptionError, false},
		{"config", fmt.Errorf("%w: addr is empty", ErrInvalidConfig), IsInvalidConfig, true},
		{"nil", nil, IsInvalidConfig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("helper(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrapEncodingError(t *testing.T) {
	other := errors.New("boom")
	tests := []struct {
		in   error
		want error
	}{
		{nil, nil},
		{encoding.ErrInvalidFormat, ErrInvalidFormat},
		{fmt.Errorf("%w: short", encoding.ErrInvalidFormat), ErrInvalidFormat},
		{encoding.ErrSignature, ErrSignatureInvalid},
		{encoding.ErrDecrypt, ErrDecryptFailed},
		{other, other},
	}

	for _, tt := range tests {
		if got := wrapEncodingError(tt.in); got != tt.want {
			t.Errorf("wrapEncodingError(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

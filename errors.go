package summon

import "errors"

// Sentinel errors for runtime operations.
var (
	ErrNotFound         = errors.New("summon: callback not found")
	ErrDecryptFailed    = errors.New("summon: payload decryption failed")
	ErrSignatureInvalid = errors.New("summon: signature verification failed")
	ErrInvalidFormat    = errors.New("summon: invalid payload format")
	ErrHydrationFailed  = errors.New("summon: hydration failed")
	ErrInvalidConfig    = errors.New("summon: invalid configuration")
)

// IsNotFound checks if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDecryptionError checks if err is a decryption or signature error.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrSignatureInvalid)
}

// IsInvalidConfig checks if err stems from a bad configuration.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

package compose

import (
	"errors"
	"fmt"
)

// Sentinel errors for composition.
var (
	ErrUnbalancedGroup = errors.New("compose: unbalanced group start/end")
	ErrUnbalancedNode  = errors.New("compose: unbalanced node start/end")
	ErrBatchRunning    = errors.New("compose: recomposition batch already running")
	ErrDisposed        = errors.New("compose: composition disposed")
	ErrNoCallbacks     = errors.New("compose: no callback registrar configured")
	ErrNoEncoder       = errors.New("compose: no payload encoder configured")
	ErrUnknownFactory  = errors.New("compose: unknown component type")
)

// CompositionError reports a component body that failed while executing.
type CompositionError struct {
	Key any
	Err error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose: component %v failed: %v", e.Key, e.Err)
}

func (e *CompositionError) Unwrap() error {
	return e.Err
}

// IsCompositionError reports whether err is a *CompositionError.
func IsCompositionError(err error) bool {
	var ce *CompositionError
	return errors.As(err, &ce)
}

// panicError converts a recovered panic value into an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}

// isAssertion reports whether a recovered value is a structural programming
// error that must not be isolated as a component failure.
func isAssertion(r any) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	return errors.Is(err, ErrUnbalancedGroup) || errors.Is(err, ErrUnbalancedNode)
}

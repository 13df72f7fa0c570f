package domain

import (
	"errors"
	"fmt"
)

// Acquisition and per-frame error kinds. Adapters wrap the cause with Wrap so
// that errors.Is matches the kind and Error() keeps the original reason.
var (
	// ErrCapabilityUnavailable - the host has no camera or detector support
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrPermissionDenied - the user or OS declined camera access
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDevice - camera hardware or stream fault
	ErrDevice = errors.New("device error")
	// ErrSample - a single frame grab failed
	ErrSample = errors.New("sample error")
	// ErrDetection - a single detect call failed
	ErrDetection = errors.New("detection error")
)

// Control errors
var (
	ErrNotReady          = errors.New("camera stream is not ready")
	ErrInvalidTransition = errors.New("invalid capture state transition")
	ErrClosed            = errors.New("scanner is closed")
	ErrCancelled         = errors.New("operation cancelled")
	ErrBookNotFound      = errors.New("book not found")
)

// Wrap attaches an error kind to a cause
func Wrap(kind, cause error) error {
	if cause == nil {
		return kind
	}
	if errors.Is(cause, kind) {
		return cause
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// Fatal reports whether the error must not be retried within the session
func Fatal(err error) bool {
	return errors.Is(err, ErrCapabilityUnavailable)
}

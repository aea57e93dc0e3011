package concurrency

import (
	"fmt"
	"time"
)

// ErrorCode represents the type of locking error that occurred.
type ErrorCode int

const (
	// ErrLockTimeout indicates a bounded acquisition did not succeed before
	// its deadline. The requesting context's lock state is unchanged.
	ErrLockTimeout ErrorCode = iota + 1

	// ErrInvalidMode indicates a request used a mode that is not valid for
	// the operation (e.g. ModeNone to Acquire).
	ErrInvalidMode
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrLockTimeout:
		return "LockTimeout"
	case ErrInvalidMode:
		return "InvalidMode"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// LockError is a locking failure with an error code.
//
// Precondition violations (hierarchy misuse, forbidden relock transitions)
// are caller bugs and panic instead; LockError is reserved for conditions a
// correct caller can encounter at runtime.
type LockError struct {
	Code     ErrorCode
	Message  string
	Resource ResourceID
	Mode     LockMode
}

// Error implements the error interface.
func (e *LockError) Error() string {
	return fmt.Sprintf("%s: %s (resource: %s, mode: %s)", e.Code, e.Message, e.Resource, e.Mode)
}

// NewLockTimeoutError creates the error for a bounded acquisition that ran
// out of time.
func NewLockTimeoutError(res ResourceID, mode LockMode, timeout time.Duration) *LockError {
	return &LockError{
		Code:     ErrLockTimeout,
		Message:  fmt.Sprintf("lock not granted within %v", timeout),
		Resource: res,
		Mode:     mode,
	}
}

// NewInvalidModeError creates the error for a request with an unusable mode.
func NewInvalidModeError(res ResourceID, mode LockMode) *LockError {
	return &LockError{
		Code:     ErrInvalidMode,
		Message:  "mode is not acquirable",
		Resource: res,
		Mode:     mode,
	}
}

// IsTimeoutError returns true if the error is a lock timeout.
func IsTimeoutError(err error) bool {
	if lockErr, ok := err.(*LockError); ok {
		return lockErr.Code == ErrLockTimeout
	}
	return false
}

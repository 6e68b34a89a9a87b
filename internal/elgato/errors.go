package elgato

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrorType represents the category of a device communication error.
type ErrorType int

const (
	// ErrTypeNetwork indicates a transport-level error (host unreachable,
	// connection reset, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the device did not respond in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the device refused the connection
	ErrTypeConnectionRefused
	// ErrTypeHTTP indicates a non-success HTTP status from the device
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed response body
	ErrTypeParse
	// ErrTypeValidation indicates an invalid state value rejected before
	// any network call
	ErrTypeValidation
)

// String returns a human-readable name for the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError is an error that occurred while talking to a device.
type DeviceError struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	Err        error     // Underlying error (if any)
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// classifyNetworkError maps a raw transport error to a DeviceError
// with a specific type.
func classifyNetworkError(message string, err error) *DeviceError {
	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return &DeviceError{Type: ErrTypeTimeout, Message: message, Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return &DeviceError{Type: ErrTypeConnectionRefused, Message: message, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &DeviceError{Type: ErrTypeTimeout, Message: message, Err: err}
		}
	}

	return &DeviceError{Type: ErrTypeNetwork, Message: message, Err: err}
}

// NewNetworkError creates a transport-level error with automatic
// classification of the underlying cause.
func NewNetworkError(message string, err error) *DeviceError {
	return classifyNetworkError(message, err)
}

// NewHTTPError creates an error for a non-success device response.
func NewHTTPError(statusCode int, message string) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewParseError creates an error for a malformed response body.
func NewParseError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates an error for a rejected state value.
func NewValidationError(message string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeValidation,
		Message: message,
	}
}

// IsUnreachable reports whether an error means the device could not be
// reached (timeout, refused connection, or other transport failure).
// Sessions use this to enter the degraded state.
func IsUnreachable(err error) bool {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Type == ErrTypeNetwork ||
			devErr.Type == ErrTypeTimeout ||
			devErr.Type == ErrTypeConnectionRefused
	}
	return false
}

// IsValidationError reports whether an error is a rejected state value.
func IsValidationError(err error) bool {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Type == ErrTypeValidation
	}
	return false
}

// IsHTTPError reports whether an error is a non-success device response.
func IsHTTPError(err error) bool {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Type == ErrTypeHTTP
	}
	return false
}

package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of a venue error.
type ErrorType int

// Error type constants categorize errors for proper handling by callers.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork indicates a transport-level failure with no venue response.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the request or correlation wait exceeded its deadline.
	ErrorTypeTimeout
	// ErrorTypeRateLimit indicates the venue rejected the request for rate limiting.
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates a missing or rejected signature.
	ErrorTypeAuthentication
	// ErrorTypeBadRequest indicates invalid request parameters.
	ErrorTypeBadRequest
	// ErrorTypeAPI indicates the venue returned a structured error envelope.
	ErrorTypeAPI
	// ErrorTypeServerError indicates a venue-side failure.
	ErrorTypeServerError
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"NETWORK",
		"TIMEOUT",
		"RATE_LIMIT",
		"AUTHENTICATION",
		"BAD_REQUEST",
		"API",
		"SERVER_ERROR",
	}[t]
}

// Sentinel errors for client state conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client. In-flight
	// websocket post requests are rejected with this error on shutdown.
	ErrClientClosed = errors.New("client is closed")
	// ErrNotConnected is returned when the websocket is not connected.
	ErrNotConnected = errors.New("websocket not connected")
	// ErrNoSigner is returned when an authenticated action is attempted without a
	// signer configured. It fails before any network activity.
	ErrNoSigner = errors.New("no signer configured")
	// ErrCircuitOpen is returned when the circuit breaker is rejecting requests.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrMappingCollision is returned by a registry refresh that produced two
	// listings with the same internal name or composite key. The refresh is
	// discarded rather than silently picking a winner.
	ErrMappingCollision = errors.New("symbol mapping collision")
)

// VenueError is a structured error surfaced from the venue or the transport.
type VenueError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code, when the error came over REST.
	StatusCode int `json:"status_code,omitempty"`
	// Code is the machine-readable venue error code.
	Code string `json:"code,omitempty"`
	// Message is the human-readable description.
	Message string `json:"message"`
	// Raw preserves the original error payload for debugging.
	Raw any `json:"raw,omitempty"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`

	cause error
}

// Error implements the error interface.
func (e *VenueError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *VenueError) Unwrap() error {
	return e.cause
}

// NewVenueError creates a VenueError with the current timestamp.
func NewVenueError(errorType ErrorType, message string) *VenueError {
	return &VenueError{
		Type:      errorType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithStatus sets the HTTP status code and returns the error for chaining.
func (e *VenueError) WithStatus(status int) *VenueError {
	e.StatusCode = status
	return e
}

// WithCode sets the machine-readable code and returns the error for chaining.
func (e *VenueError) WithCode(code string) *VenueError {
	e.Code = code
	return e
}

// WithRaw attaches the original payload and returns the error for chaining.
func (e *VenueError) WithRaw(raw any) *VenueError {
	e.Raw = raw
	return e
}

// WithCause attaches an underlying error and returns the error for chaining.
func (e *VenueError) WithCause(cause error) *VenueError {
	e.cause = cause
	return e
}

// IsNetworkError reports whether err is a transport-level failure.
func IsNetworkError(err error) bool {
	var ve *VenueError
	return errors.As(err, &ve) && ve.Type == ErrorTypeNetwork
}

// IsTimeoutError reports whether err is a deadline expiry.
func IsTimeoutError(err error) bool {
	var ve *VenueError
	return errors.As(err, &ve) && ve.Type == ErrorTypeTimeout
}

// IsAPIError reports whether err is a structured venue error envelope.
func IsAPIError(err error) bool {
	var ve *VenueError
	return errors.As(err, &ve) && ve.Type == ErrorTypeAPI
}

// IsAuthenticationError reports whether err is an authentication failure.
func IsAuthenticationError(err error) bool {
	if errors.Is(err, ErrNoSigner) {
		return true
	}
	var ve *VenueError
	return errors.As(err, &ve) && ve.Type == ErrorTypeAuthentication
}
